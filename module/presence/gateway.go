package presence

import (
	"context"
	"time"

	"RProject/logger"
)

// MembershipLookup is the external collaborator that says whether an
// identity belongs to a conversation. Lookup failure is treated the same as
// "not a member" (fail-closed) so presence never leaks on a flaky backend.
type MembershipLookup interface {
	IsParticipant(ctx context.Context, conversationID, userID string) (bool, error)
}

// Gateway validates live-channel presence events, mutates State and drives
// broadcasts. Live events are best-effort: anything malformed or
// unauthorized is dropped without an error to the peer.
type Gateway struct {
	st      *State
	members MembershipLookup
	b       Broadcaster
	clock   func() time.Time // injectable for tests; nil => time.Now
}

func NewGateway(st *State, members MembershipLookup, b Broadcaster, clock func() time.Time) *Gateway {
	if clock == nil {
		clock = time.Now
	}
	return &Gateway{st: st, members: members, b: b, clock: clock}
}

// State exposes the container for the transport layer (watcher resolution)
// and the roster endpoint.
func (g *Gateway) State() *State { return g.st }

// Subscribe registers a watcher and pushes the bulk snapshot to that one
// connection. No membership check here: authorization is enforced where
// presence is announced, not where it is watched.
func (g *Gateway) Subscribe(connID, conversationID string) {
	if connID == "" || conversationID == "" {
		return
	}
	states := g.st.Subscribe(connID, conversationID)
	g.b.EmitBulkSnapshot(connID, conversationID, states)
}

func (g *Gateway) Unsubscribe(connID, conversationID string) {
	if connID == "" || conversationID == "" {
		return
	}
	g.st.Unsubscribe(connID, conversationID)
}

// Here announces or refreshes liveness. Membership is verified first; the
// event is silently dropped for non-participants and on lookup failure.
// On success the entry is overwritten from any prior state and one
// presence-update broadcast goes out.
func (g *Gateway) Here(ctx context.Context, userID, conversationID string, status Status) {
	if userID == "" || conversationID == "" {
		return
	}
	if status == "" {
		status = StatusOnline
	}
	if !status.Valid() {
		logger.Debugf("[presence] drop here: bad status=%q user=%s conv=%s", status, userID, conversationID)
		return
	}

	ok, err := g.members.IsParticipant(ctx, conversationID, userID)
	if err != nil {
		logger.Debugf("[presence] drop here: membership lookup failed user=%s conv=%s err=%v", userID, conversationID, err)
		return
	}
	if !ok {
		logger.Debugf("[presence] drop here: not a participant user=%s conv=%s", userID, conversationID)
		return
	}

	e := g.st.Upsert(conversationID, userID, status, g.clock())
	g.b.EmitPresenceUpdate(conversationID, e)
}

// Ping refreshes LastSeen for every watched conversation in which the
// connection's identity currently has an entry. Status untouched, nothing
// broadcast: heartbeats stay cheap.
func (g *Gateway) Ping(connID string) {
	userID := g.st.UserOf(connID)
	if userID == "" {
		return
	}
	now := g.clock()
	for _, conv := range g.st.WatchedBy(connID) {
		g.st.Touch(conv, userID, now)
	}
}

// Disconnect is synchronous index cleanup only; presence entries are left
// for the sweeper.
func (g *Gateway) Disconnect(connID string) {
	g.st.DropConn(connID)
}

// Snapshot serves the collaborator-facing read interface (roster merge).
func (g *Gateway) Snapshot(conversationID string) []Entry {
	return g.st.Snapshot(conversationID)
}

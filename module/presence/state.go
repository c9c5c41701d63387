package presence

import (
	"sync"
	"time"
)

type Status string

const (
	StatusOnline  Status = "online"
	StatusAway    Status = "away"
	StatusBusy    Status = "busy"
	StatusOffline Status = "offline"
)

var validStatuses = map[Status]bool{
	StatusOnline: true, StatusAway: true, StatusBusy: true, StatusOffline: true,
}

func (s Status) Valid() bool { return validStatuses[s] }

// Entry is one identity's liveness inside one conversation. Ephemeral:
// lives only in process memory, rebuilt from announcements after restart.
type Entry struct {
	UserID   string
	Status   Status
	LastSeen time.Time
}

// ConvEntry pairs an Entry with its conversation, used by the sweeper.
type ConvEntry struct {
	ConversationID string
	Entry          Entry
}

// State is the single owned container for all live in-memory indices:
// presence map, bidirectional subscription index, connection registry.
// Handlers get it by reference; there is no package-level instance.
//
// Invariants:
//   - at most one Entry per (conversation, identity)
//   - connID appears in watchers[conv] iff conv appears in watched[connID]
//   - userByConn binding is set once at handshake and never rebound
type State struct {
	mu       sync.RWMutex
	presence map[string]map[string]*Entry   // conversation -> user -> entry
	watchers map[string]map[string]struct{} // conversation -> conn ids
	watched  map[string]map[string]struct{} // conn id -> conversations

	connsByUser map[string]map[string]struct{} // user -> conn ids
	userByConn  map[string]string              // conn id -> user
}

func NewState() *State {
	return &State{
		presence:    make(map[string]map[string]*Entry),
		watchers:    make(map[string]map[string]struct{}),
		watched:     make(map[string]map[string]struct{}),
		connsByUser: make(map[string]map[string]struct{}),
		userByConn:  make(map[string]string),
	}
}

// RegisterConn binds a connection to its authenticated identity.
func (st *State) RegisterConn(connID, userID string) {
	if connID == "" || userID == "" {
		return
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	st.userByConn[connID] = userID
	m := st.connsByUser[userID]
	if m == nil {
		m = make(map[string]struct{})
		st.connsByUser[userID] = m
	}
	m[connID] = struct{}{}
}

// DropConn removes every subscription and registry entry the connection
// held. It never touches presence entries: liveness decay is the sweeper's
// job, so a user with several connections doesn't flicker offline when one
// drops. Returns the identity the connection was bound to.
func (st *State) DropConn(connID string) string {
	st.mu.Lock()
	defer st.mu.Unlock()

	for conv := range st.watched[connID] {
		if ws := st.watchers[conv]; ws != nil {
			delete(ws, connID)
			if len(ws) == 0 {
				delete(st.watchers, conv)
			}
		}
	}
	delete(st.watched, connID)

	user := st.userByConn[connID]
	delete(st.userByConn, connID)
	if m := st.connsByUser[user]; m != nil {
		delete(m, connID)
		if len(m) == 0 {
			delete(st.connsByUser, user)
		}
	}
	return user
}

// Subscribe registers the connection as a watcher of the conversation and
// returns a snapshot of the conversation's presence, both under one lock
// window: the snapshot can't miss an update emitted after Subscribe returns.
// Idempotent; performs no authorization (announcing presence is what gets
// membership-checked, not watching it).
func (st *State) Subscribe(connID, conversationID string) []Entry {
	st.mu.Lock()
	defer st.mu.Unlock()

	ws := st.watchers[conversationID]
	if ws == nil {
		ws = make(map[string]struct{})
		st.watchers[conversationID] = ws
	}
	ws[connID] = struct{}{}

	wd := st.watched[connID]
	if wd == nil {
		wd = make(map[string]struct{})
		st.watched[connID] = wd
	}
	wd[conversationID] = struct{}{}

	return st.snapshotLocked(conversationID)
}

// Unsubscribe removes the pair from both index directions.
func (st *State) Unsubscribe(connID, conversationID string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if ws := st.watchers[conversationID]; ws != nil {
		delete(ws, connID)
		if len(ws) == 0 {
			delete(st.watchers, conversationID)
		}
	}
	if wd := st.watched[connID]; wd != nil {
		delete(wd, conversationID)
		if len(wd) == 0 {
			delete(st.watched, connID)
		}
	}
}

// Watchers lists the conn ids explicitly subscribed to a conversation.
func (st *State) Watchers(conversationID string) []string {
	st.mu.RLock()
	defer st.mu.RUnlock()
	ws := st.watchers[conversationID]
	if len(ws) == 0 {
		return nil
	}
	out := make([]string, 0, len(ws))
	for id := range ws {
		out = append(out, id)
	}
	return out
}

// WatchedBy lists the conversations a connection watches.
func (st *State) WatchedBy(connID string) []string {
	st.mu.RLock()
	defer st.mu.RUnlock()
	wd := st.watched[connID]
	if len(wd) == 0 {
		return nil
	}
	out := make([]string, 0, len(wd))
	for conv := range wd {
		out = append(out, conv)
	}
	return out
}

// UserOf returns the identity bound to a connection, "" if unknown.
func (st *State) UserOf(connID string) string {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.userByConn[connID]
}

// ConnsOf lists the live connections of an identity.
func (st *State) ConnsOf(userID string) []string {
	st.mu.RLock()
	defer st.mu.RUnlock()
	m := st.connsByUser[userID]
	if len(m) == 0 {
		return nil
	}
	out := make([]string, 0, len(m))
	for id := range m {
		out = append(out, id)
	}
	return out
}

// Upsert creates or overwrites the (conversation, identity) entry. This is
// an explicit override from any prior state, not a guarded transition.
func (st *State) Upsert(conversationID, userID string, status Status, now time.Time) Entry {
	st.mu.Lock()
	defer st.mu.Unlock()
	m := st.presence[conversationID]
	if m == nil {
		m = make(map[string]*Entry)
		st.presence[conversationID] = m
	}
	m[userID] = &Entry{UserID: userID, Status: status, LastSeen: now}
	return *m[userID]
}

// Touch refreshes LastSeen without changing status. No-op when the pair has
// no materialized entry (pings never create state).
func (st *State) Touch(conversationID, userID string, now time.Time) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	m := st.presence[conversationID]
	if m == nil {
		return false
	}
	e, ok := m[userID]
	if !ok {
		return false
	}
	e.LastSeen = now
	return true
}

// Snapshot returns copies of every entry in a conversation.
func (st *State) Snapshot(conversationID string) []Entry {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.snapshotLocked(conversationID)
}

func (st *State) snapshotLocked(conversationID string) []Entry {
	m := st.presence[conversationID]
	if len(m) == 0 {
		return nil
	}
	out := make([]Entry, 0, len(m))
	for _, e := range m {
		out = append(out, *e)
	}
	return out
}

// SnapshotAll returns a point-in-time copy of every (conversation, entry)
// pair. The sweeper iterates this instead of the live maps.
func (st *State) SnapshotAll() []ConvEntry {
	st.mu.RLock()
	defer st.mu.RUnlock()
	var out []ConvEntry
	for conv, m := range st.presence {
		for _, e := range m {
			out = append(out, ConvEntry{ConversationID: conv, Entry: *e})
		}
	}
	return out
}

// Demote re-checks staleness under the write lock and, if the entry is
// still non-offline and still stale, writes an offline entry that keeps the
// old LastSeen. Returns the demoted copy. The re-check makes the snapshot
// race with a concurrent Here harmless: a refreshed entry isn't demoted.
func (st *State) Demote(conversationID, userID string, ttl time.Duration, now time.Time) (Entry, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	m := st.presence[conversationID]
	if m == nil {
		return Entry{}, false
	}
	e, ok := m[userID]
	if !ok || e.Status == StatusOffline || now.Sub(e.LastSeen) <= ttl {
		return Entry{}, false
	}
	e.Status = StatusOffline
	return *e, true
}

package presence

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeMembers struct {
	members map[string]map[string]bool
	err     error
}

func newFakeMembers() *fakeMembers {
	return &fakeMembers{members: make(map[string]map[string]bool)}
}

func (f *fakeMembers) add(conv string, users ...string) {
	m := f.members[conv]
	if m == nil {
		m = make(map[string]bool)
		f.members[conv] = m
	}
	for _, u := range users {
		m[u] = true
	}
}

func (f *fakeMembers) IsParticipant(_ context.Context, conv, user string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.members[conv][user], nil
}

type recorder struct {
	mu      sync.Mutex
	updates []ConvEntry
	bulks   map[string][][]Entry // conn id -> snapshots received
}

func newRecorder() *recorder {
	return &recorder{bulks: make(map[string][][]Entry)}
}

func (r *recorder) EmitPresenceUpdate(conv string, e Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, ConvEntry{ConversationID: conv, Entry: e})
}

func (r *recorder) EmitBulkSnapshot(connID, conv string, states []Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bulks[connID] = append(r.bulks[connID], states)
}

func (r *recorder) updateCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.updates)
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestHereOverwritesFromAnyState(t *testing.T) {
	members := newFakeMembers()
	members.add("c1", "u1")
	rec := newRecorder()
	st := NewState()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	g := NewGateway(st, members, rec, fixedClock(now))

	ctx := context.Background()
	g.Here(ctx, "u1", "c1", StatusOnline)
	g.Here(ctx, "u1", "c1", StatusBusy)
	g.Here(ctx, "u1", "c1", StatusAway)

	snap := st.Snapshot("c1")
	if len(snap) != 1 {
		t.Fatalf("want 1 entry, got %d", len(snap))
	}
	if snap[0].Status != StatusAway {
		t.Fatalf("want last write %q, got %q", StatusAway, snap[0].Status)
	}
	if rec.updateCount() != 3 {
		t.Fatalf("want 3 broadcasts, got %d", rec.updateCount())
	}
}

func TestHereDropsNonParticipant(t *testing.T) {
	members := newFakeMembers()
	members.add("c1", "u1")
	rec := newRecorder()
	st := NewState()
	g := NewGateway(st, members, rec, nil)

	g.Here(context.Background(), "intruder", "c1", StatusOnline)

	if got := st.Snapshot("c1"); len(got) != 0 {
		t.Fatalf("non-participant created state: %+v", got)
	}
	if rec.updateCount() != 0 {
		t.Fatalf("non-participant triggered broadcast")
	}
}

func TestHereFailsClosedOnLookupError(t *testing.T) {
	members := newFakeMembers()
	members.add("c1", "u1")
	members.err = errors.New("backend down")
	rec := newRecorder()
	st := NewState()
	g := NewGateway(st, members, rec, nil)

	g.Here(context.Background(), "u1", "c1", StatusOnline)

	if got := st.Snapshot("c1"); len(got) != 0 {
		t.Fatalf("lookup error should drop the event, got %+v", got)
	}
}

func TestHereDropsInvalidStatusAndDefaultsEmpty(t *testing.T) {
	members := newFakeMembers()
	members.add("c1", "u1")
	rec := newRecorder()
	st := NewState()
	g := NewGateway(st, members, rec, nil)
	ctx := context.Background()

	g.Here(ctx, "u1", "c1", Status("lurking"))
	if got := st.Snapshot("c1"); len(got) != 0 {
		t.Fatalf("invalid status created state: %+v", got)
	}

	g.Here(ctx, "u1", "c1", "")
	snap := st.Snapshot("c1")
	if len(snap) != 1 || snap[0].Status != StatusOnline {
		t.Fatalf("empty status should default to online, got %+v", snap)
	}
}

func TestSubscribeDeliversSnapshotToOneConn(t *testing.T) {
	members := newFakeMembers()
	members.add("c1", "u1")
	rec := newRecorder()
	st := NewState()
	g := NewGateway(st, members, rec, nil)

	g.Here(context.Background(), "u1", "c1", StatusBusy)

	st.RegisterConn("conn-1", "u2")
	g.Subscribe("conn-1", "c1")

	snaps := rec.bulks["conn-1"]
	if len(snaps) != 1 {
		t.Fatalf("want 1 bulk snapshot, got %d", len(snaps))
	}
	if len(snaps[0]) != 1 || snaps[0][0].Status != StatusBusy {
		t.Fatalf("snapshot content wrong: %+v", snaps[0])
	}
	if len(rec.bulks) != 1 {
		t.Fatalf("snapshot leaked to other conns")
	}
}

func TestSubscribeThenUpdateNoGap(t *testing.T) {
	// a watcher registered by Subscribe must see every update emitted after
	// the snapshot it received
	members := newFakeMembers()
	members.add("c1", "u1")
	rec := newRecorder()
	st := NewState()
	g := NewGateway(st, members, rec, nil)

	st.RegisterConn("conn-1", "u2")
	g.Subscribe("conn-1", "c1")

	watchers := st.Watchers("c1")
	if len(watchers) != 1 || watchers[0] != "conn-1" {
		t.Fatalf("watcher not registered at snapshot time: %v", watchers)
	}

	g.Here(context.Background(), "u1", "c1", StatusOnline)
	if rec.updateCount() != 1 {
		t.Fatalf("update after subscribe not emitted")
	}
}

func TestPingTouchesWatchedConversationsOnly(t *testing.T) {
	members := newFakeMembers()
	members.add("c1", "u1")
	members.add("c2", "u1")
	rec := newRecorder()
	st := NewState()
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	now := t0
	g := NewGateway(st, members, rec, func() time.Time { return now })
	ctx := context.Background()

	st.RegisterConn("conn-1", "u1")
	g.Subscribe("conn-1", "c1")
	g.Here(ctx, "u1", "c1", StatusOnline)
	g.Here(ctx, "u1", "c2", StatusOnline)

	now = t0.Add(20 * time.Second)
	broadcastsBefore := rec.updateCount()
	g.Ping("conn-1")

	if rec.updateCount() != broadcastsBefore {
		t.Fatalf("ping must not broadcast")
	}
	if got := st.Snapshot("c1")[0]; !got.LastSeen.Equal(now) {
		t.Fatalf("watched conv not touched: %v", got.LastSeen)
	}
	if got := st.Snapshot("c2")[0]; !got.LastSeen.Equal(t0) {
		t.Fatalf("unwatched conv was touched: %v", got.LastSeen)
	}
	if got := st.Snapshot("c1")[0].Status; got != StatusOnline {
		t.Fatalf("ping changed status to %q", got)
	}
}

func TestPingNeverCreatesState(t *testing.T) {
	members := newFakeMembers()
	rec := newRecorder()
	st := NewState()
	g := NewGateway(st, members, rec, nil)

	st.RegisterConn("conn-1", "u1")
	g.Subscribe("conn-1", "c1")
	g.Ping("conn-1")

	if got := st.Snapshot("c1"); len(got) != 0 {
		t.Fatalf("ping materialized an entry: %+v", got)
	}
}

func TestDisconnectKeepsPresenceEntries(t *testing.T) {
	members := newFakeMembers()
	members.add("c1", "u1")
	rec := newRecorder()
	st := NewState()
	g := NewGateway(st, members, rec, nil)

	st.RegisterConn("conn-1", "u1")
	g.Subscribe("conn-1", "c1")
	g.Here(context.Background(), "u1", "c1", StatusOnline)

	g.Disconnect("conn-1")

	if got := st.Snapshot("c1"); len(got) != 1 || got[0].Status != StatusOnline {
		t.Fatalf("disconnect must not touch presence, got %+v", got)
	}
	if got := st.Watchers("c1"); len(got) != 0 {
		t.Fatalf("disconnect left watcher registered: %v", got)
	}
	if got := st.UserOf("conn-1"); got != "" {
		t.Fatalf("conn binding survived disconnect: %q", got)
	}
}

func TestMultiConnDisconnectOneKeepsBinding(t *testing.T) {
	st := NewState()
	st.RegisterConn("conn-1", "u1")
	st.RegisterConn("conn-2", "u1")

	st.DropConn("conn-1")

	if got := st.ConnsOf("u1"); len(got) != 1 || got[0] != "conn-2" {
		t.Fatalf("want surviving conn-2, got %v", got)
	}
}

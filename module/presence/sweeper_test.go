package presence

import (
	"context"
	"testing"
	"time"
)

func sweeperFixture(t *testing.T) (*State, *Gateway, *recorder, *fakeMembers) {
	t.Helper()
	members := newFakeMembers()
	members.add("c1", "u1", "u2")
	rec := newRecorder()
	st := NewState()
	g := NewGateway(st, members, rec, nil)
	return st, g, rec, members
}

func TestSweepDemotesStaleEntries(t *testing.T) {
	st, _, rec, _ := sweeperFixture(t)
	sw := NewSweeper(SweeperConf{TTL: 30 * time.Second}, st, rec)

	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	st.Upsert("c1", "u1", StatusOnline, t0)
	st.Upsert("c1", "u2", StatusBusy, t0.Add(25*time.Second))

	n := sw.SweepOnce(t0.Add(31 * time.Second))
	if n != 1 {
		t.Fatalf("want 1 demotion, got %d", n)
	}

	var u1, u2 Entry
	for _, e := range st.Snapshot("c1") {
		switch e.UserID {
		case "u1":
			u1 = e
		case "u2":
			u2 = e
		}
	}
	if u1.Status != StatusOffline {
		t.Fatalf("stale u1 not demoted: %q", u1.Status)
	}
	if u2.Status != StatusBusy {
		t.Fatalf("fresh u2 demoted: %q", u2.Status)
	}
	if !u1.LastSeen.Equal(t0) {
		t.Fatalf("demotion must keep LastSeen, got %v", u1.LastSeen)
	}
}

func TestSweepDemotesExactlyOnce(t *testing.T) {
	st, _, rec, _ := sweeperFixture(t)
	sw := NewSweeper(SweeperConf{TTL: 30 * time.Second}, st, rec)

	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	st.Upsert("c1", "u1", StatusOnline, t0)

	if n := sw.SweepOnce(t0.Add(31 * time.Second)); n != 1 {
		t.Fatalf("first sweep: want 1, got %d", n)
	}
	if n := sw.SweepOnce(t0.Add(60 * time.Second)); n != 0 {
		t.Fatalf("second sweep re-demoted an offline entry: %d", n)
	}
	if n := sw.SweepOnce(t0.Add(10 * time.Minute)); n != 0 {
		t.Fatalf("offline entries must never be re-swept: %d", n)
	}
	if rec.updateCount() != 1 {
		t.Fatalf("want exactly 1 offline broadcast, got %d", rec.updateCount())
	}
}

func TestSweepBoundaryNotStale(t *testing.T) {
	st, _, rec, _ := sweeperFixture(t)
	sw := NewSweeper(SweeperConf{TTL: 30 * time.Second}, st, rec)

	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	st.Upsert("c1", "u1", StatusOnline, t0)

	// exactly TTL old is still fresh
	if n := sw.SweepOnce(t0.Add(30 * time.Second)); n != 0 {
		t.Fatalf("entry at exactly TTL demoted")
	}
}

func TestHereRevivesSweptEntry(t *testing.T) {
	st, g, rec, _ := sweeperFixture(t)
	sw := NewSweeper(SweeperConf{TTL: 30 * time.Second}, st, rec)

	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	st.Upsert("c1", "u1", StatusOnline, t0)
	sw.SweepOnce(t0.Add(31 * time.Second))

	g.Here(context.Background(), "u1", "c1", StatusOnline)

	snap := st.Snapshot("c1")
	if len(snap) != 1 || snap[0].Status != StatusOnline {
		t.Fatalf("here did not revive swept entry: %+v", snap)
	}

	// and the revived entry decays again on the next stale sweep
	if n := sw.SweepOnce(snap[0].LastSeen.Add(31 * time.Second)); n != 1 {
		t.Fatalf("revived entry not swept again: %d", n)
	}
}

func TestPingDefersSweep(t *testing.T) {
	members := newFakeMembers()
	members.add("c1", "u1")
	rec := newRecorder()
	st := NewState()

	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	now := t0
	g := NewGateway(st, members, rec, func() time.Time { return now })
	sw := NewSweeper(SweeperConf{TTL: 30 * time.Second}, st, rec)
	ctx := context.Background()

	st.RegisterConn("conn-1", "u1")
	g.Subscribe("conn-1", "c1")
	g.Here(ctx, "u1", "c1", StatusBusy)

	now = t0.Add(25 * time.Second)
	g.Ping("conn-1")

	// 31s after announce but only 6s after the ping
	if n := sw.SweepOnce(t0.Add(31 * time.Second)); n != 0 {
		t.Fatalf("pinged entry swept: %d", n)
	}
	if got := st.Snapshot("c1")[0].Status; got != StatusBusy {
		t.Fatalf("status changed by ping+sweep: %q", got)
	}
}

func TestSweepAcrossConversations(t *testing.T) {
	st, _, rec, members := sweeperFixture(t)
	members.add("c2", "u1")
	sw := NewSweeper(SweeperConf{TTL: 30 * time.Second}, st, rec)

	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	st.Upsert("c1", "u1", StatusOnline, t0)
	st.Upsert("c2", "u1", StatusOnline, t0.Add(20*time.Second))

	// the same identity can be stale in one conversation and fresh in another
	if n := sw.SweepOnce(t0.Add(35 * time.Second)); n != 1 {
		t.Fatalf("want 1 demotion, got %d", n)
	}
	if got := st.Snapshot("c1")[0].Status; got != StatusOffline {
		t.Fatalf("stale c1 entry not demoted: %q", got)
	}
	if got := st.Snapshot("c2")[0].Status; got != StatusOnline {
		t.Fatalf("fresh c2 entry demoted: %q", got)
	}
}

func TestSweeperConfDefaults(t *testing.T) {
	c := SweeperConf{}
	c.norm()
	if c.Interval != 10*time.Second || c.TTL != 30*time.Second || c.Clock == nil {
		t.Fatalf("defaults wrong: %+v", c)
	}
}

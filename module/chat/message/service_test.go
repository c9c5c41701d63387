package message

import (
	"context"
	"errors"
	"testing"
	"time"

	chatmodel "RProject/module/chat/model"
	"RProject/module/presence"
	"RProject/tools/errs"
)

type fakeEmitter struct {
	emitted []*chatmodel.MessageModel
}

func (f *fakeEmitter) EmitNewMessage(_ string, m *chatmodel.MessageModel) {
	f.emitted = append(f.emitted, m)
}

type fakePresence struct {
	entries map[string][]presence.Entry
}

func (f *fakePresence) Snapshot(conv string) []presence.Entry { return f.entries[conv] }

// steppingClock returns a clock that advances 1s per call, so every message
// gets a distinct created_at.
func steppingClock(start time.Time) func() time.Time {
	t := start
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func newTestService(t *testing.T) (*Service, *MemStore, *MemMembership, *fakeEmitter) {
	t.Helper()
	store := NewMemStore()
	members := NewMemMembership()
	members.Add("c1", "alice", "bob", "carol")
	em := &fakeEmitter{}
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := NewService(store, members, &fakePresence{}, nil, em, nil, steppingClock(start))
	return svc, store, members, em
}

func TestSendCreatesStatusRowForEveryParticipant(t *testing.T) {
	svc, store, _, em := newTestService(t)
	ctx := context.Background()

	m, err := svc.Send(ctx, "alice", "c1", chatmodel.ContentTypeText, "hi", "")
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	rows, err := store.ListStatuses(ctx, m.MsgID)
	if err != nil {
		t.Fatalf("list statuses: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("want 3 status rows, got %d", len(rows))
	}
	for _, row := range rows {
		if row.UserID == "alice" {
			if row.DeliveredAt != m.CreatedAt || row.ReadAt != m.CreatedAt {
				t.Fatalf("sender row not pre-acked: %+v", row)
			}
			continue
		}
		if row.DeliveredAt != 0 || row.ReadAt != 0 {
			t.Fatalf("recipient row not zeroed: %+v", row)
		}
	}
	if len(em.emitted) != 1 || em.emitted[0].MsgID != m.MsgID {
		t.Fatalf("message not emitted to live channel")
	}
}

func TestSendRejectsNonParticipant(t *testing.T) {
	svc, store, _, em := newTestService(t)

	_, err := svc.Send(context.Background(), "mallory", "c1", 0, "hi", "")
	if errs.ECode(err) != errs.NotParticipantError {
		t.Fatalf("want NotParticipantError, got %v", err)
	}
	if msgs, _ := store.ListRecent(context.Background(), "c1", 10); len(msgs) != 0 {
		t.Fatalf("rejected send persisted a message")
	}
	if len(em.emitted) != 0 {
		t.Fatalf("rejected send emitted")
	}
}

func TestSendFailsClosedOnMembershipError(t *testing.T) {
	svc, _, members, _ := newTestService(t)
	members.LookupErr = errors.New("backend down")

	_, err := svc.Send(context.Background(), "alice", "c1", 0, "hi", "")
	if errs.ECode(err) != errs.ServerInternalError {
		t.Fatalf("want internal error, got %v", err)
	}
}

func TestSendRejectsEmptyBody(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	_, err := svc.Send(context.Background(), "alice", "c1", 0, "", "")
	if errs.ECode(err) != errs.ArgsError {
		t.Fatalf("want ArgsError, got %v", err)
	}
}

func TestSendAbortLeavesNoPartialRows(t *testing.T) {
	svc, store, _, em := newTestService(t)
	store.FailCreate = errors.New("tx aborted")
	ctx := context.Background()

	_, err := svc.Send(ctx, "alice", "c1", 0, "hi", "")
	if err == nil {
		t.Fatalf("want error from aborted create")
	}
	if msgs, _ := store.ListRecent(ctx, "c1", 10); len(msgs) != 0 {
		t.Fatalf("aborted create left a message")
	}
	if n, _ := store.UnreadCount(ctx, "bob", "c1"); n != 0 {
		t.Fatalf("aborted create left status rows: %d", n)
	}
	if len(em.emitted) != 0 {
		t.Fatalf("aborted create emitted")
	}
}

func TestMarkDeliveredFirstWriteWins(t *testing.T) {
	svc, store, _, _ := newTestService(t)
	ctx := context.Background()
	m, _ := svc.Send(ctx, "alice", "c1", 0, "hi", "")

	if err := svc.MarkDelivered(ctx, m.MsgID, "bob"); err != nil {
		t.Fatalf("mark delivered: %v", err)
	}
	first := deliveredAt(t, store, m.MsgID, "bob")
	if first == 0 {
		t.Fatalf("delivered not stamped")
	}

	if err := svc.MarkDelivered(ctx, m.MsgID, "bob"); err != nil {
		t.Fatalf("second mark delivered: %v", err)
	}
	if got := deliveredAt(t, store, m.MsgID, "bob"); got != first {
		t.Fatalf("delivered timestamp moved: %d -> %d", first, got)
	}
}

func TestMarkReadIsCumulative(t *testing.T) {
	svc, store, _, _ := newTestService(t)
	ctx := context.Background()

	m1, _ := svc.Send(ctx, "alice", "c1", 0, "one", "")
	m2, _ := svc.Send(ctx, "alice", "c1", 0, "two", "")
	m3, _ := svc.Send(ctx, "alice", "c1", 0, "three", "")

	// reading m2 acknowledges m1 and m2, not m3
	n, err := svc.MarkRead(ctx, m2.MsgID, "bob")
	if err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if n != 2 {
		t.Fatalf("want 2 rows updated, got %d", n)
	}

	for _, id := range []string{m1.MsgID, m2.MsgID} {
		if readAt(t, store, id, "bob") == 0 {
			t.Fatalf("msg %s not read", id)
		}
		// read implies delivered
		if deliveredAt(t, store, id, "bob") == 0 {
			t.Fatalf("msg %s read but not delivered", id)
		}
	}
	if readAt(t, store, m3.MsgID, "bob") != 0 {
		t.Fatalf("later message marked read")
	}

	// repeating is a no-op
	if n, _ := svc.MarkRead(ctx, m2.MsgID, "bob"); n != 0 {
		t.Fatalf("repeat mark read updated %d rows", n)
	}
}

func TestMarkReadDoesNotRegressDelivered(t *testing.T) {
	svc, store, _, _ := newTestService(t)
	ctx := context.Background()
	m, _ := svc.Send(ctx, "alice", "c1", 0, "hi", "")

	_ = svc.MarkDelivered(ctx, m.MsgID, "bob")
	first := deliveredAt(t, store, m.MsgID, "bob")

	if _, err := svc.MarkRead(ctx, m.MsgID, "bob"); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if got := deliveredAt(t, store, m.MsgID, "bob"); got != first {
		t.Fatalf("read regressed delivered: %d -> %d", first, got)
	}
	if readAt(t, store, m.MsgID, "bob") == 0 {
		t.Fatalf("read not stamped")
	}
}

func TestMarkReadUnknownMessage(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	_, err := svc.MarkRead(context.Background(), "no-such-id", "bob")
	if errs.ECode(err) != errs.RecordNotFoundError {
		t.Fatalf("want RecordNotFoundError, got %v", err)
	}
}

func TestUnreadCount(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	m1, _ := svc.Send(ctx, "alice", "c1", 0, "one", "")
	_, _ = svc.Send(ctx, "alice", "c1", 0, "two", "")

	if n, _ := svc.UnreadCount(ctx, "bob", "c1"); n != 2 {
		t.Fatalf("want 2 unread, got %d", n)
	}
	// sender's own rows are pre-read
	if n, _ := svc.UnreadCount(ctx, "alice", "c1"); n != 0 {
		t.Fatalf("sender has unread: %d", n)
	}

	_, _ = svc.MarkRead(ctx, m1.MsgID, "bob")
	if n, _ := svc.UnreadCount(ctx, "bob", "c1"); n != 1 {
		t.Fatalf("want 1 unread after partial read, got %d", n)
	}
}

func TestRosterMergesLivePresence(t *testing.T) {
	store := NewMemStore()
	members := NewMemMembership()
	members.Add("c1", "alice", "bob")
	seen := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	pr := &fakePresence{entries: map[string][]presence.Entry{
		"c1": {{UserID: "alice", Status: presence.StatusBusy, LastSeen: seen}},
	}}
	svc := NewService(store, members, pr, nil, nil, nil, nil)

	roster, err := svc.Roster(context.Background(), "c1")
	if err != nil {
		t.Fatalf("roster: %v", err)
	}
	if len(roster) != 2 {
		t.Fatalf("want 2 roster entries, got %d", len(roster))
	}
	byUser := map[string]RosterEntry{}
	for _, re := range roster {
		byUser[re.UserID] = re
	}
	if byUser["alice"].Status != presence.StatusBusy || byUser["alice"].LastActiveAt != seen.UnixMilli() {
		t.Fatalf("live entry not merged: %+v", byUser["alice"])
	}
	if byUser["bob"].Status != presence.StatusOffline || byUser["bob"].LastActiveAt != 0 {
		t.Fatalf("absent member must read offline: %+v", byUser["bob"])
	}
}

func TestHistoryNewestFirst(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()
	_, _ = svc.Send(ctx, "alice", "c1", 0, "one", "")
	_, _ = svc.Send(ctx, "alice", "c1", 0, "two", "")
	m3, _ := svc.Send(ctx, "alice", "c1", 0, "three", "")

	out, err := svc.History(ctx, "c1", 2)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(out) != 2 || out[0].MsgID != m3.MsgID {
		t.Fatalf("history order wrong: %+v", out)
	}
}

func deliveredAt(t *testing.T, store *MemStore, msgID, userID string) int64 {
	t.Helper()
	rows, err := store.ListStatuses(context.Background(), msgID)
	if err != nil {
		t.Fatalf("list statuses: %v", err)
	}
	for _, row := range rows {
		if row.UserID == userID {
			return row.DeliveredAt
		}
	}
	t.Fatalf("no status row for %s/%s", msgID, userID)
	return 0
}

func readAt(t *testing.T, store *MemStore, msgID, userID string) int64 {
	t.Helper()
	rows, err := store.ListStatuses(context.Background(), msgID)
	if err != nil {
		t.Fatalf("list statuses: %v", err)
	}
	for _, row := range rows {
		if row.UserID == userID {
			return row.ReadAt
		}
	}
	t.Fatalf("no status row for %s/%s", msgID, userID)
	return 0
}

package message

import (
	"context"
	"sort"
	"sync"

	chatmodel "RProject/module/chat/model"
	"RProject/tools/errs"
)

// MemStore is the in-memory Store used by tests and local runs without a
// replica set. Same contract as MongoStore, including all-or-nothing
// creation: rows are staged first and committed in one critical section.
type MemStore struct {
	mu       sync.RWMutex
	msgs     map[string]*chatmodel.MessageModel
	statuses map[string]*chatmodel.MessageStatusModel // msg_id + "\x00" + user_id

	// FailCreate makes the next CreateMessage fail before committing,
	// simulating a transaction abort.
	FailCreate error
}

func NewMemStore() *MemStore {
	return &MemStore{
		msgs:     make(map[string]*chatmodel.MessageModel),
		statuses: make(map[string]*chatmodel.MessageStatusModel),
	}
}

func statusKey(msgID, userID string) string { return msgID + "\x00" + userID }

func (s *MemStore) CreateMessage(_ context.Context, m *chatmodel.MessageModel, participantIDs []string) error {
	rows := buildStatusRows(m, participantIDs)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailCreate != nil {
		err := s.FailCreate
		s.FailCreate = nil
		return err
	}
	if _, dup := s.msgs[m.MsgID]; dup {
		return errs.New("duplicate msg id", "msgID", m.MsgID)
	}

	cp := *m
	s.msgs[m.MsgID] = &cp
	for _, row := range rows {
		rc := *row
		s.statuses[statusKey(row.MsgID, row.UserID)] = &rc
	}
	return nil
}

func (s *MemStore) MarkDelivered(_ context.Context, msgID, userID string, now int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.statuses[statusKey(msgID, userID)]
	if !ok {
		return nil
	}
	if st.DeliveredAt == 0 {
		st.DeliveredAt = now
	}
	return nil
}

func (s *MemStore) MarkRead(_ context.Context, msgID, userID string, now int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	target, ok := s.msgs[msgID]
	if !ok {
		return 0, ErrNotFound
	}
	var n int64
	for _, st := range s.statuses {
		if st.UserID != userID || st.ConversationID != target.ConversationID {
			continue
		}
		if st.MsgCreatedAt > target.CreatedAt || st.ReadAt != 0 {
			continue
		}
		if st.DeliveredAt == 0 {
			st.DeliveredAt = now
		}
		st.ReadAt = now
		n++
	}
	return n, nil
}

func (s *MemStore) UnreadCount(_ context.Context, userID, conversationID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, st := range s.statuses {
		if st.UserID == userID && st.ConversationID == conversationID && st.ReadAt == 0 {
			n++
		}
	}
	return n, nil
}

func (s *MemStore) GetMessage(_ context.Context, msgID string) (*chatmodel.MessageModel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.msgs[msgID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (s *MemStore) ListRecent(_ context.Context, conversationID string, limit int64) ([]*chatmodel.MessageModel, error) {
	if limit <= 0 {
		limit = 50
	}
	s.mu.RLock()
	var out []*chatmodel.MessageModel
	for _, m := range s.msgs {
		if m.ConversationID == conversationID {
			cp := *m
			out = append(out, &cp)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt > out[j].CreatedAt })
	if int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemStore) ListStatuses(_ context.Context, msgID string) ([]*chatmodel.MessageStatusModel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*chatmodel.MessageStatusModel
	for _, st := range s.statuses {
		if st.MsgID == msgID {
			cp := *st
			out = append(out, &cp)
		}
	}
	return out, nil
}

// MemMembership is the map-backed membership fake. LookupErr, when set, is
// returned from IsParticipant to exercise the fail-closed path.
type MemMembership struct {
	mu        sync.RWMutex
	members   map[string]map[string]struct{} // conversation -> users
	LookupErr error
}

func NewMemMembership() *MemMembership {
	return &MemMembership{members: make(map[string]map[string]struct{})}
}

func (m *MemMembership) Add(conversationID string, userIDs ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	set := m.members[conversationID]
	if set == nil {
		set = make(map[string]struct{})
		m.members[conversationID] = set
	}
	for _, uid := range userIDs {
		set[uid] = struct{}{}
	}
}

func (m *MemMembership) IsParticipant(_ context.Context, conversationID, userID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.LookupErr != nil {
		return false, m.LookupErr
	}
	_, ok := m.members[conversationID][userID]
	return ok, nil
}

func (m *MemMembership) ListParticipants(_ context.Context, conversationID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	set := m.members[conversationID]
	out := make([]string, 0, len(set))
	for uid := range set {
		out = append(out, uid)
	}
	sort.Strings(out)
	return out, nil
}

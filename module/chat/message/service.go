package message

import (
	"context"
	"encoding/json"
	"time"

	"RProject/logger"
	chatmodel "RProject/module/chat/model"
	"RProject/module/presence"
	"RProject/service/natsx"
	"RProject/service/storage"
	"RProject/tools/errs"
	"RProject/tools/ids"
)

// Emitter is the live fan-out seam the transport layer fills in. Room
// scoped, at-most-once, no retry: whoever misses it resyncs via History.
type Emitter interface {
	EmitNewMessage(conversationID string, m *chatmodel.MessageModel)
}

// PresenceReader is the collaborator-facing presence read interface used by
// the roster merge.
type PresenceReader interface {
	Snapshot(conversationID string) []presence.Entry
}

// RosterEntry merges durable membership with live presence. Members with no
// materialized presence entry read as offline with no last-active time.
type RosterEntry struct {
	UserID       string          `json:"userId"`
	Status       presence.Status `json:"status"`
	LastActiveAt int64           `json:"lastActiveAt,omitempty"` // unix ms
}

type Service struct {
	store    Store
	members  MembershipStore
	presence PresenceReader
	history  *storage.HistoryCache // nil-safe
	emitter  Emitter
	outbox   *natsx.Producer // nil-safe
	clock    func() time.Time
}

func NewService(store Store, members MembershipStore, pr PresenceReader, history *storage.HistoryCache, emitter Emitter, outbox *natsx.Producer, clock func() time.Time) *Service {
	if clock == nil {
		clock = time.Now
	}
	return &Service{
		store:    store,
		members:  members,
		presence: pr,
		history:  history,
		emitter:  emitter,
		outbox:   outbox,
		clock:    clock,
	}
}

// Send persists the message with its per-participant status rows in one
// transaction, then fans out: history cache, room broadcast, event outbox.
// Only the transactional part can fail the call; fan-out is best effort.
func (s *Service) Send(ctx context.Context, senderID, conversationID string, contentType int32, text, mediaURL string) (*chatmodel.MessageModel, error) {
	if senderID == "" || conversationID == "" {
		return nil, errs.ErrArgs.WrapMsg("sender/conversation required")
	}
	if text == "" && mediaURL == "" {
		return nil, errs.ErrArgs.WrapMsg("empty message body")
	}
	if contentType == 0 {
		contentType = chatmodel.ContentTypeText
	}

	ok, err := s.members.IsParticipant(ctx, conversationID, senderID)
	if err != nil {
		return nil, errs.ErrInternalServer.WrapMsg("membership lookup failed", "err", err)
	}
	if !ok {
		return nil, errs.ErrNotParticipant.Wrap()
	}

	participants, err := s.members.ListParticipants(ctx, conversationID)
	if err != nil {
		return nil, errs.ErrInternalServer.WrapMsg("list participants failed", "err", err)
	}

	m := &chatmodel.MessageModel{
		MsgID:          ids.GenerateString(),
		ConversationID: conversationID,
		SenderID:       senderID,
		ContentType:    contentType,
		Content:        text,
		MediaURL:       mediaURL,
		CreatedAt:      s.clock().UnixMilli(),
	}

	if err := s.store.CreateMessage(ctx, m, participants); err != nil {
		// the store guarantees no partial status rows survive a failure
		return nil, errs.ErrInternalServer.WrapMsg("create message failed", "err", err)
	}

	if err := s.history.Push(ctx, conversationID, m); err != nil {
		logger.Warnf("[message] history cache push failed conv=%s msg=%s err=%v", conversationID, m.MsgID, err)
	}
	if s.emitter != nil {
		s.emitter.EmitNewMessage(conversationID, m)
	}
	s.outbox.Publish(natsx.SubjectMessageCreated, m)

	return m, nil
}

// MarkDelivered records a delivery receipt. Duplicate calls are no-ops.
func (s *Service) MarkDelivered(ctx context.Context, msgID, userID string) error {
	if msgID == "" || userID == "" {
		return errs.ErrArgs.Wrap()
	}
	return s.store.MarkDelivered(ctx, msgID, userID, s.clock().UnixMilli())
}

// MarkRead records "read up to msgID" for the user; see Store.MarkRead.
func (s *Service) MarkRead(ctx context.Context, msgID, userID string) (int64, error) {
	if msgID == "" || userID == "" {
		return 0, errs.ErrArgs.Wrap()
	}
	n, err := s.store.MarkRead(ctx, msgID, userID, s.clock().UnixMilli())
	if err == ErrNotFound {
		return 0, errs.ErrRecordNotFound.Wrap()
	}
	return n, err
}

func (s *Service) UnreadCount(ctx context.Context, userID, conversationID string) (int64, error) {
	return s.store.UnreadCount(ctx, userID, conversationID)
}

// History serves the resync path: redis rolling window first, mongo on
// miss. Newest first.
func (s *Service) History(ctx context.Context, conversationID string, limit int64) ([]*chatmodel.MessageModel, error) {
	cached, err := s.history.Recent(ctx, conversationID, limit)
	if err != nil {
		logger.Warnf("[message] history cache read failed conv=%s err=%v", conversationID, err)
	}
	if len(cached) > 0 {
		out := make([]*chatmodel.MessageModel, 0, len(cached))
		for _, raw := range cached {
			var m chatmodel.MessageModel
			if err := json.Unmarshal(raw, &m); err != nil {
				out = nil
				break
			}
			out = append(out, &m)
		}
		if out != nil {
			return out, nil
		}
	}
	return s.store.ListRecent(ctx, conversationID, limit)
}

// Roster merges the durable participant list with the live presence
// snapshot. Participants without an entry read as offline.
func (s *Service) Roster(ctx context.Context, conversationID string) ([]RosterEntry, error) {
	participants, err := s.members.ListParticipants(ctx, conversationID)
	if err != nil {
		return nil, errs.ErrInternalServer.WrapMsg("list participants failed", "err", err)
	}

	live := make(map[string]presence.Entry)
	if s.presence != nil {
		for _, e := range s.presence.Snapshot(conversationID) {
			live[e.UserID] = e
		}
	}

	out := make([]RosterEntry, 0, len(participants))
	for _, uid := range participants {
		re := RosterEntry{UserID: uid, Status: presence.StatusOffline}
		if e, ok := live[uid]; ok {
			re.Status = e.Status
			re.LastActiveAt = e.LastSeen.UnixMilli()
		}
		out = append(out, re)
	}
	return out, nil
}

// Statuses exposes the raw acknowledgement rows of one message.
func (s *Service) Statuses(ctx context.Context, msgID string) ([]*chatmodel.MessageStatusModel, error) {
	return s.store.ListStatuses(ctx, msgID)
}

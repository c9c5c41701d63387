package chat

import (
	"encoding/json"

	chatmodel "RProject/module/chat/model"
	"RProject/module/presence"
	"RProject/tools/errs"
)

// Client -> server events.
const (
	EventPresenceSubscribe   = "presence:subscribe"
	EventPresenceUnsubscribe = "presence:unsubscribe"
	EventPresenceHere        = "presence:here"
	EventPresencePing        = "presence:ping"
	EventJoinConversation    = "join:conversation"
	EventLeaveConversation   = "leave:conversation"
)

// Server -> client events.
const (
	EventPresenceBulk   = "presence:bulk"
	EventPresenceUpdate = "presence:update"
	EventMessageNew     = "message:new"
)

// EventFrame is the single envelope both directions use.
type EventFrame struct {
	Event string         `json:"event"`
	Data  map[string]any `json:"data,omitempty"`
}

func ParseFrame(raw []byte) (*EventFrame, error) {
	var f EventFrame
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, errs.ErrArgs.WrapMsg("bad frame", "err", err)
	}
	if f.Event == "" {
		return nil, errs.ErrArgs.WrapMsg("frame missing event")
	}
	return &f, nil
}

// ConversationPayload is the shape of every conversation-scoped inbound
// event; Status is only meaningful for presence:here.
type ConversationPayload struct {
	ConversationID string `json:"conversationId"`
	Status         string `json:"status"`
}

// PresenceStateWire is a presence entry on the wire, timestamps unix ms.
type PresenceStateWire struct {
	UserID       string `json:"userId"`
	Status       string `json:"status"`
	LastActiveAt int64  `json:"lastActiveAt"`
}

func toWire(e presence.Entry) PresenceStateWire {
	return PresenceStateWire{
		UserID:       e.UserID,
		Status:       string(e.Status),
		LastActiveAt: e.LastSeen.UnixMilli(),
	}
}

func marshalFrame(event string, data any) []byte {
	raw, err := json.Marshal(struct {
		Event string `json:"event"`
		Data  any    `json:"data"`
	}{Event: event, Data: data})
	if err != nil {
		return nil
	}
	return raw
}

// BuildPresenceBulk is the one-shot snapshot pushed right after subscribe.
func BuildPresenceBulk(conversationID string, states []presence.Entry) []byte {
	wire := make([]PresenceStateWire, 0, len(states))
	for _, e := range states {
		wire = append(wire, toWire(e))
	}
	return marshalFrame(EventPresenceBulk, struct {
		ConversationID string              `json:"conversationId"`
		States         []PresenceStateWire `json:"states"`
	}{ConversationID: conversationID, States: wire})
}

// BuildPresenceUpdate is one entry change. Carries lastActiveAt so clients
// receiving it twice (watcher path + room path) can dedupe.
func BuildPresenceUpdate(conversationID string, e presence.Entry) []byte {
	return marshalFrame(EventPresenceUpdate, struct {
		ConversationID string `json:"conversationId"`
		PresenceStateWire
	}{ConversationID: conversationID, PresenceStateWire: toWire(e)})
}

func BuildMessageNew(m *chatmodel.MessageModel) []byte {
	return marshalFrame(EventMessageNew, m)
}

func presenceStatus(s string) presence.Status { return presence.Status(s) }

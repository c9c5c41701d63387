package chat

import (
	chatmodel "RProject/module/chat/model"
	"RProject/module/presence"
	"RProject/service/natsx"
)

// Emitter bridges the domain layers to the live transport. It implements
// both the presence Broadcaster and the message Emitter seams.
type Emitter struct {
	st     *presence.State
	mgr    *Manager
	rooms  *Rooms
	fanout *Fanout
	outbox *natsx.Producer // nil-safe
}

func NewEmitter(st *presence.State, mgr *Manager, rooms *Rooms, fanout *Fanout, outbox *natsx.Producer) *Emitter {
	return &Emitter{st: st, mgr: mgr, rooms: rooms, fanout: fanout, outbox: outbox}
}

// EmitPresenceUpdate fans one entry change out on two independent paths:
// the explicit presence watchers and the conversation room. Connections in
// both audiences get the frame twice; the payload's lastActiveAt lets
// clients collapse the duplicate. The change also goes to the event outbox
// for downstream consumers.
func (em *Emitter) EmitPresenceUpdate(conversationID string, e presence.Entry) {
	payload := BuildPresenceUpdate(conversationID, e)
	em.fanout.Broadcast(em.mgr.Resolve(em.st.Watchers(conversationID)), payload)
	em.fanout.Broadcast(em.mgr.Resolve(em.rooms.Members(conversationID)), payload)
	em.outbox.Publish(natsx.SubjectPresenceChanged, struct {
		ConversationID string `json:"conversationId"`
		PresenceStateWire
	}{ConversationID: conversationID, PresenceStateWire: toWire(e)})
}

// EmitBulkSnapshot targets exactly one connection, right after subscribe.
func (em *Emitter) EmitBulkSnapshot(connID, conversationID string, states []presence.Entry) {
	if c := em.mgr.Get(connID); c != nil {
		c.enqueue(BuildPresenceBulk(conversationID, states))
	}
}

// EmitNewMessage is room scoped only: message traffic goes to joined
// connections, never to presence-only watchers.
func (em *Emitter) EmitNewMessage(conversationID string, m *chatmodel.MessageModel) {
	em.fanout.Broadcast(em.mgr.Resolve(em.rooms.Members(conversationID)), BuildMessageNew(m))
}

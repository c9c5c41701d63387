package chat

import (
	"context"

	"RProject/logger"
	"RProject/tools/decode"
)

// handlerFunc processes one inbound frame for one connection. Errors are
// logged, never sent back: the live channel is fire and forget.
type handlerFunc func(ctx context.Context, c *Conn, f *EventFrame) error

// Dispatcher routes inbound frames by event name.
type Dispatcher struct {
	handlers map[string]handlerFunc
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[string]handlerFunc)}
}

func (d *Dispatcher) Register(event string, h handlerFunc) {
	d.handlers[event] = h
}

func (d *Dispatcher) Dispatch(ctx context.Context, c *Conn, f *EventFrame) {
	h, ok := d.handlers[f.Event]
	if !ok {
		logger.Debugf("[ws] unknown event %q conn=%s", f.Event, c.ID)
		return
	}
	if err := h(ctx, c, f); err != nil {
		logger.Debugf("[ws] event %q failed conn=%s err=%v", f.Event, c.ID, err)
	}
}

// registerHandlers wires the live-channel event set against the server.
func (s *Server) registerHandlers() {
	d := s.dispatcher

	d.Register(EventPresenceSubscribe, func(ctx context.Context, c *Conn, f *EventFrame) error {
		p, err := decode.DecodeMap[ConversationPayload](f.Data)
		if err != nil {
			return err
		}
		s.gateway.Subscribe(c.ID, p.ConversationID)
		return nil
	})

	d.Register(EventPresenceUnsubscribe, func(ctx context.Context, c *Conn, f *EventFrame) error {
		p, err := decode.DecodeMap[ConversationPayload](f.Data)
		if err != nil {
			return err
		}
		s.gateway.Unsubscribe(c.ID, p.ConversationID)
		return nil
	})

	d.Register(EventPresenceHere, func(ctx context.Context, c *Conn, f *EventFrame) error {
		p, err := decode.DecodeMap[ConversationPayload](f.Data)
		if err != nil {
			return err
		}
		s.gateway.Here(ctx, c.UserID, p.ConversationID, presenceStatus(p.Status))
		return nil
	})

	d.Register(EventPresencePing, func(ctx context.Context, c *Conn, f *EventFrame) error {
		s.gateway.Ping(c.ID)
		return nil
	})

	d.Register(EventJoinConversation, func(ctx context.Context, c *Conn, f *EventFrame) error {
		p, err := decode.DecodeMap[ConversationPayload](f.Data)
		if err != nil {
			return err
		}
		s.rooms.Join(c.ID, p.ConversationID)
		return nil
	})

	d.Register(EventLeaveConversation, func(ctx context.Context, c *Conn, f *EventFrame) error {
		p, err := decode.DecodeMap[ConversationPayload](f.Data)
		if err != nil {
			return err
		}
		s.rooms.Leave(c.ID, p.ConversationID)
		return nil
	})
}

package chat

import (
	"net/http"

	"RProject/module/presence"
	"RProject/service/natsx"
	"RProject/tools/security"

	"github.com/gorilla/websocket"
)

// Server owns the live channel: connection registry, rooms, fan-out pool,
// event dispatch and the presence gateway. REST lives elsewhere; this type
// only speaks websocket.
type Server struct {
	gateway *presence.Gateway
	emitter *Emitter

	mgr        *Manager
	rooms      *Rooms
	fanout     *Fanout
	dispatcher *Dispatcher
	jwtOpts    security.Options
	upgrader   websocket.Upgrader
}

// NewServer wires the transport around the shared presence state. outbox
// may be nil.
func NewServer(st *presence.State, members presence.MembershipLookup, jwtOpts security.Options, outbox *natsx.Producer) *Server {
	s := &Server{
		mgr:        NewManager(),
		rooms:      NewRooms(),
		fanout:     NewFanout(0, 0),
		dispatcher: NewDispatcher(),
		jwtOpts:    jwtOpts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(_ *http.Request) bool { return true },
		},
	}
	s.emitter = NewEmitter(st, s.mgr, s.rooms, s.fanout, outbox)
	s.gateway = presence.NewGateway(st, members, s.emitter, nil)
	s.registerHandlers()
	return s
}

// Emitter exposes the broadcast bridge: the message service uses it for the
// live fan-out seam, the sweeper for demotion broadcasts.
func (s *Server) Emitter() *Emitter { return s.emitter }

// Gateway exposes the presence gateway for the sweeper and REST roster.
func (s *Server) Gateway() *presence.Gateway { return s.gateway }

func (s *Server) Close() { s.fanout.Close() }

package chat

import "sync"

// Rooms is the conversation room index: which connections have joined a
// conversation's live feed. Kept bidirectional so a disconnect can clear
// every room the connection was in without scanning.
//
// Rooms and the presence watcher index are deliberately separate audiences:
// joining a room opts into message traffic, subscribing to presence opts
// into presence traffic.
type Rooms struct {
	mu     sync.RWMutex
	byConv map[string]map[string]struct{} // conversation -> conn ids
	byConn map[string]map[string]struct{} // conn id -> conversations
}

func NewRooms() *Rooms {
	return &Rooms{
		byConv: make(map[string]map[string]struct{}),
		byConn: make(map[string]map[string]struct{}),
	}
}

func (r *Rooms) Join(connID, conversationID string) {
	if connID == "" || conversationID == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	conv := r.byConv[conversationID]
	if conv == nil {
		conv = make(map[string]struct{})
		r.byConv[conversationID] = conv
	}
	conv[connID] = struct{}{}

	conns := r.byConn[connID]
	if conns == nil {
		conns = make(map[string]struct{})
		r.byConn[connID] = conns
	}
	conns[conversationID] = struct{}{}
}

func (r *Rooms) Leave(connID, conversationID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaveLocked(connID, conversationID)
}

func (r *Rooms) leaveLocked(connID, conversationID string) {
	if conv := r.byConv[conversationID]; conv != nil {
		delete(conv, connID)
		if len(conv) == 0 {
			delete(r.byConv, conversationID)
		}
	}
	if conns := r.byConn[connID]; conns != nil {
		delete(conns, conversationID)
		if len(conns) == 0 {
			delete(r.byConn, connID)
		}
	}
}

// DropConn leaves every room the connection joined.
func (r *Rooms) DropConn(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for conv := range r.byConn[connID] {
		r.leaveLocked(connID, conv)
	}
}

// Members lists the conn ids currently in a conversation's room.
func (r *Rooms) Members(conversationID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conv := r.byConv[conversationID]
	if len(conv) == 0 {
		return nil
	}
	out := make([]string, 0, len(conv))
	for id := range conv {
		out = append(out, id)
	}
	return out
}

package chat

import "sync"

// Manager is the live connection registry, indexed by conn id and by user.
type Manager struct {
	mu     sync.RWMutex
	byConn map[string]*Conn
	byUser map[string]map[string]*Conn
}

func NewManager() *Manager {
	return &Manager{
		byConn: make(map[string]*Conn),
		byUser: make(map[string]map[string]*Conn),
	}
}

func (m *Manager) Add(c *Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byConn[c.ID] = c
	conns := m.byUser[c.UserID]
	if conns == nil {
		conns = make(map[string]*Conn)
		m.byUser[c.UserID] = conns
	}
	conns[c.ID] = c
}

func (m *Manager) Remove(connID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.byConn[connID]
	if !ok {
		return
	}
	delete(m.byConn, connID)
	if conns := m.byUser[c.UserID]; conns != nil {
		delete(conns, connID)
		if len(conns) == 0 {
			delete(m.byUser, c.UserID)
		}
	}
}

func (m *Manager) Get(connID string) *Conn {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.byConn[connID]
}

// Resolve maps conn ids to live conns, skipping ones already gone.
func (m *Manager) Resolve(connIDs []string) []*Conn {
	if len(connIDs) == 0 {
		return nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Conn, 0, len(connIDs))
	for _, id := range connIDs {
		if c, ok := m.byConn[id]; ok {
			out = append(out, c)
		}
	}
	return out
}

func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byConn)
}

package presence

import (
	"sync"
	"time"

	"RProject/logger"
)

// SweeperConf mirrors the conn-manager TTL config: fixed interval, fixed
// TTL, injectable clock for tests.
type SweeperConf struct {
	Interval time.Duration // tick period (default 10s)
	TTL      time.Duration // staleness bound (default 30s)
	Clock    func() time.Time
}

func (c *SweeperConf) norm() {
	if c.Interval <= 0 {
		c.Interval = 10 * time.Second
	}
	if c.TTL <= 0 {
		c.TTL = 30 * time.Second
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}
}

// Sweeper demotes stale entries to offline on a fixed cadence, independent
// of connection events. Demotion is the only transition it performs and the
// only path into offline that isn't an explicit Here.
type Sweeper struct {
	conf SweeperConf
	st   *State
	b    Broadcaster

	stopOnce sync.Once
	stopCh   chan struct{}
}

func NewSweeper(conf SweeperConf, st *State, b Broadcaster) *Sweeper {
	conf.norm()
	return &Sweeper{conf: conf, st: st, b: b, stopCh: make(chan struct{})}
}

func (s *Sweeper) Start() {
	go func() {
		t := time.NewTicker(s.conf.Interval)
		defer t.Stop()
		for {
			select {
			case <-s.stopCh:
				return
			case <-t.C:
				s.SweepOnce(s.conf.Clock())
			}
		}
	}()
}

func (s *Sweeper) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

// SweepOnce walks a point-in-time snapshot, demotes everything non-offline
// whose staleness exceeds TTL, then emits exactly one update per demoted
// identity after the lock is released. Demote re-validates under the write
// lock, so entries refreshed between snapshot and demotion are skipped and
// already-offline entries are never re-broadcast. The demoted entry keeps
// its last known LastSeen rather than the sweep time.
func (s *Sweeper) SweepOnce(now time.Time) int {
	var demoted []ConvEntry
	for _, ce := range s.st.SnapshotAll() {
		if ce.Entry.Status == StatusOffline {
			continue
		}
		if now.Sub(ce.Entry.LastSeen) <= s.conf.TTL {
			continue
		}
		if e, ok := s.st.Demote(ce.ConversationID, ce.Entry.UserID, s.conf.TTL, now); ok {
			demoted = append(demoted, ConvEntry{ConversationID: ce.ConversationID, Entry: e})
		}
	}

	for _, ce := range demoted {
		s.b.EmitPresenceUpdate(ce.ConversationID, ce.Entry)
	}
	if len(demoted) > 0 {
		logger.Debugf("[presence] sweep demoted=%d", len(demoted))
	}
	return len(demoted)
}

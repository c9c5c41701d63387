package chat

import (
	"RProject/logger"
	"RProject/tools/safe"
)

type fanoutJob struct {
	conns   []*Conn
	payload []byte
}

// Fanout is a small worker pool that decouples broadcast enqueueing from
// the callers (presence gateway, message service). Jobs are dropped when
// the queue is full; live traffic is best effort.
type Fanout struct {
	jobs chan fanoutJob
	stop chan struct{}
}

func NewFanout(workers, queue int) *Fanout {
	if workers <= 0 {
		workers = 4
	}
	if queue <= 0 {
		queue = 1024
	}
	f := &Fanout{
		jobs: make(chan fanoutJob, queue),
		stop: make(chan struct{}),
	}
	for i := 0; i < workers; i++ {
		safe.Go(f.run)
	}
	return f
}

func (f *Fanout) run() {
	for {
		select {
		case <-f.stop:
			return
		case job := <-f.jobs:
			for _, c := range job.conns {
				c.enqueue(job.payload)
			}
		}
	}
}

// Broadcast enqueues one payload for a set of connections.
func (f *Fanout) Broadcast(conns []*Conn, payload []byte) {
	if len(conns) == 0 || payload == nil {
		return
	}
	select {
	case f.jobs <- fanoutJob{conns: conns, payload: payload}:
	case <-f.stop:
	default:
		logger.Warnf("[fanout] queue full, dropping broadcast to %d conns", len(conns))
	}
}

func (f *Fanout) Close() { close(f.stop) }

package natsx

import (
	"encoding/json"
	"time"

	"RProject/logger"

	"github.com/nats-io/nats.go"
)

// Subjects for the outbound event feed. Downstream consumers (push pipeline,
// analytics, persist workers) subscribe to these; this process never does.
const (
	SubjectMessageCreated  = "im.message.created"
	SubjectPresenceChanged = "im.presence.changed"
)

type Config struct {
	URL           string
	Name          string
	ReconnectWait time.Duration
}

// Producer is a fire-and-forget event outbox. A nil *Producer is valid and
// publishes nothing, so call sites never branch on whether NATS is wired.
type Producer struct {
	nc *nats.Conn
}

func NewProducer(cfg Config) (*Producer, error) {
	if cfg.ReconnectWait == 0 {
		cfg.ReconnectWait = 500 * time.Millisecond
	}
	nc, err := nats.Connect(cfg.URL,
		nats.Name(cfg.Name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(cfg.ReconnectWait),
	)
	if err != nil {
		return nil, err
	}
	return &Producer{nc: nc}, nil
}

// Publish marshals v and publishes it on subject. Errors are logged, never
// returned: the outbox must not affect the request path.
func (p *Producer) Publish(subject string, v any) {
	if p == nil || p.nc == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		logger.Errorf("[natsx] marshal subject=%s err=%v", subject, err)
		return
	}
	if err := p.nc.Publish(subject, data); err != nil {
		logger.Warnf("[natsx] publish subject=%s err=%v", subject, err)
	}
}

func (p *Producer) Close() {
	if p == nil || p.nc == nil {
		return
	}
	if err := p.nc.Drain(); err != nil {
		p.nc.Close()
	}
}

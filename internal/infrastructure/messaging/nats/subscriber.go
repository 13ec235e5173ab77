package nats

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dreschagin/plugin-performance-monitor/pkg/logger"
	"github.com/nats-io/nats.go"
)

// Handler processes one decoded event payload
type Handler func(data []byte) error

// Subscriber consumes plugin monitor events through a durable JetStream consumer
type Subscriber struct {
	nc      *nats.Conn
	js      nats.JetStreamContext
	durable string
	subs    []*nats.Subscription
	logger  *logger.Logger
}

// NewSubscriber connects to NATS; durable names the consumer so restarts resume where they stopped
func NewSubscriber(natsURL, durable string, log *logger.Logger) (*Subscriber, error) {
	nc, err := connect(natsURL, durable, log)
	if err != nil {
		return nil, err
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to get JetStream context: %w", err)
	}

	if err := ensureStream(js); err != nil {
		nc.Close()
		return nil, err
	}

	return &Subscriber{
		nc:      nc,
		js:      js,
		durable: durable,
		logger:  log,
	}, nil
}

// Subscribe registers handler for subject. Failed messages are redelivered after a delay.
func (s *Subscriber) Subscribe(subject string, handler Handler) error {
	sub, err := s.js.Subscribe(subject, func(msg *nats.Msg) {
		if err := handler(msg.Data); err != nil {
			s.logger.Warn("Event handler failed", "subject", msg.Subject, "error", err.Error())
			_ = msg.NakWithDelay(10 * time.Second)
			return
		}
		_ = msg.Ack()
	},
		nats.Durable(s.durable),
		nats.ManualAck(),
		nats.AckWait(30*time.Second),
		nats.DeliverNew(),
	)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}

	s.subs = append(s.subs, sub)
	s.logger.Info("Subscribed to events", "subject", subject, "durable", s.durable)
	return nil
}

// Close drains subscriptions and closes the connection
func (s *Subscriber) Close() error {
	for _, sub := range s.subs {
		_ = sub.Drain()
	}
	if s.nc != nil {
		s.nc.Close()
	}
	return nil
}

// Decode unmarshals an event payload
func Decode(data []byte, dest interface{}) error {
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("failed to decode event: %w", err)
	}
	return nil
}

// Package local is an in-process stand-in for Kafka: the outbox worker
// publishes into it and the consumer loop delivers to an event handler.
package local

import (
	"context"
	"log/slog"
	"time"

	"rentalcore/internal/infra/broker"
	"rentalcore/internal/pkg/errs"
)

const (
	defaultBuffer      = 256
	defaultMaxAttempts = 5
)

var ErrBufferFull = errs.Mark(errs.New("local broker: buffer full"), errs.ErrUpstreamUnavailable)

type message struct {
	topic    string
	payload  []byte
	attempts int
}

// Loopback buffers published messages and redelivers failed ones with backoff.
type Loopback struct {
	ch          chan message
	MaxAttempts int
	Backoff     time.Duration
	Logger      *slog.Logger
}

func NewLoopback(buffer int) *Loopback {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &Loopback{ch: make(chan message, buffer), MaxAttempts: defaultMaxAttempts, Backoff: time.Second}
}

// Publish never blocks; a full buffer fails so the outbox retries later.
func (l *Loopback) Publish(ctx context.Context, topic string, key string, payload []byte, headers map[string]string) error {
	msg := message{topic: topic, payload: append([]byte(nil), payload...)}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case l.ch <- msg:
		return nil
	default:
		return ErrBufferFull
	}
}

// Run delivers messages on the given topics to h until ctx is done. Other
// topics are dropped.
func (l *Loopback) Run(ctx context.Context, topics []string, h broker.EventHandler) error {
	wanted := make(map[string]bool, len(topics))
	for _, t := range topics {
		wanted[t] = true
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-l.ch:
			if len(wanted) > 0 && !wanted[msg.topic] {
				continue
			}
			l.deliver(ctx, h, msg)
		}
	}
}

func (l *Loopback) deliver(ctx context.Context, h broker.EventHandler, msg message) {
	err := broker.Dispatch(ctx, h, msg.payload)
	if err == nil {
		return
	}
	log := l.logger()
	if errs.Is(err, broker.ErrMalformedEnvelope) {
		log.ErrorContext(ctx, "malformed event dropped", "topic", msg.topic, "error", err)
		return
	}
	msg.attempts++
	if msg.attempts >= l.maxAttempts() {
		log.ErrorContext(ctx, "event dropped after retries", "topic", msg.topic, "attempts", msg.attempts, "error", err)
		return
	}
	log.WarnContext(ctx, "event handling failed, will retry", "topic", msg.topic, "attempts", msg.attempts, "error", err)
	time.AfterFunc(l.Backoff*time.Duration(msg.attempts), func() {
		select {
		case l.ch <- msg:
		default:
			log.Error("event dropped, buffer full on retry", "topic", msg.topic)
		}
	})
}

func (l *Loopback) maxAttempts() int {
	if l.MaxAttempts <= 0 {
		return defaultMaxAttempts
	}
	return l.MaxAttempts
}

func (l *Loopback) logger() *slog.Logger {
	if l.Logger != nil {
		return l.Logger
	}
	return slog.Default()
}

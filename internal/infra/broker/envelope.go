// Package broker holds what the Kafka and loopback transports share: the
// CloudEvents envelope and the handler they deliver to.
package broker

import (
	"context"
	"encoding/json"
	"time"

	"rentalcore/internal/pkg/errs"
)

var ErrMalformedEnvelope = errs.Mark(errs.New("broker: malformed cloudevent envelope"), errs.ErrValidation)

// Envelope is the CloudEvents structured-mode message.
type Envelope struct {
	SpecVersion     string          `json:"specversion"`
	ID              string          `json:"id"`
	Type            string          `json:"type"`
	Source          string          `json:"source"`
	Subject         string          `json:"subject,omitempty"`
	Time            time.Time       `json:"time"`
	DataContentType string          `json:"datacontenttype"`
	TraceParent     string          `json:"traceparent,omitempty"`
	Data            json.RawMessage `json:"data"`
}

// Decode parses a broker payload into an envelope.
func Decode(payload []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return Envelope{}, errs.WithSecondary(ErrMalformedEnvelope, err)
	}
	if env.ID == "" || env.Type == "" {
		return Envelope{}, ErrMalformedEnvelope
	}
	return env, nil
}

// EventHandler receives decoded events.
type EventHandler interface {
	Consume(ctx context.Context, eventID, eventType string, data []byte) error
}

// Dispatch decodes payload and hands it to h. Malformed envelopes are reported
// as ErrMalformedEnvelope so transports can drop them instead of retrying.
func Dispatch(ctx context.Context, h EventHandler, payload []byte) error {
	env, err := Decode(payload)
	if err != nil {
		return err
	}
	return h.Consume(ctx, env.ID, env.Type, env.Data)
}

package payments

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"rentalcore/internal/app/commands"
	domainrental "rentalcore/internal/domain/rental"
	"rentalcore/internal/pkg/errs"
)

// Inbox deduplicates deliveries by event id.
type Inbox interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Forget(ctx context.Context, eventID string) error
}

// ProofConsumer turns payment-proof events into reconciliation commands.
type ProofConsumer struct {
	Bus    commands.Bus
	Inbox  Inbox
	Logger *slog.Logger
}

// Consume handles one delivered event. Other event types are acknowledged and
// ignored. A failed reconciliation is forgotten by the inbox so redelivery retries it.
func (c *ProofConsumer) Consume(ctx context.Context, eventID, eventType string, data []byte) error {
	if strings.TrimSuffix(eventType, ".v1") != domainrental.EventPaymentProofSubmitted {
		return nil
	}
	if c.Inbox != nil && eventID != "" {
		seen, err := c.Inbox.Seen(ctx, eventID)
		if err != nil {
			return errs.Wrap(err, "inbox")
		}
		if seen {
			c.logger().DebugContext(ctx, "duplicate event skipped", "event_id", eventID)
			return nil
		}
	}

	var evt domainrental.PaymentProofSubmitted
	if err := json.Unmarshal(data, &evt); err != nil {
		c.logger().ErrorContext(ctx, "malformed payment proof event dropped", "event_id", eventID, "error", err)
		return nil
	}
	res, err := commands.Dispatch[ReconcilePaymentCommand, *ReconcileResult](ctx, c.Bus, ReconcilePaymentCommand{
		RentalID: string(evt.RentalID),
		ProofURL: evt.ProofURL,
	})
	if err != nil {
		if c.Inbox != nil && eventID != "" {
			_ = c.Inbox.Forget(ctx, eventID)
		}
		return errs.Wrapf(err, "reconcile rental %s", evt.RentalID)
	}
	c.logger().InfoContext(ctx, "payment proof reconciled", "rental_id", res.RentalID, "outcome", res.Outcome)
	return nil
}

func (c *ProofConsumer) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}

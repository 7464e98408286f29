package memory

import (
	"context"
	"sync"
	"time"

	appoutbox "rentalcore/internal/app/outbox"
	"rentalcore/internal/pkg/errs"
)

const (
	stateNew     = "NEW"
	stateClaimed = "CLAIMED"
	stateSent    = "SENT"
	stateFailed  = "FAILED"
)

var ErrOutboxRecordNotFound = errs.New("memory: outbox record not found")

type outboxEntry struct {
	record      appoutbox.EventRecord
	state       string
	attempts    int
	nextAttempt time.Time
	lastError   string
}

// Outbox keeps events in arrival order and serves them to the relay worker
// the same way the Mongo store does.
type Outbox struct {
	mu      sync.Mutex
	entries []*outboxEntry
	index   map[string]*outboxEntry
	now     func() time.Time
}

func NewOutbox() *Outbox {
	return &Outbox{index: make(map[string]*outboxEntry), now: func() time.Time { return time.Now().UTC() }}
}

func (o *Outbox) Add(ctx context.Context, record appoutbox.EventRecord) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, dup := o.index[record.ID]; dup {
		return errs.Newf("memory: duplicate outbox record %s", record.ID)
	}
	e := &outboxEntry{record: record, state: stateNew, nextAttempt: o.now()}
	o.entries = append(o.entries, e)
	o.index[record.ID] = e
	return nil
}

func (o *Outbox) Flush(context.Context) error {
	return nil
}

func (o *Outbox) Claim(ctx context.Context, workerID string) (*appoutbox.ClaimedRecord, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	now := o.now()
	for _, e := range o.entries {
		if (e.state == stateNew || e.state == stateFailed) && !e.nextAttempt.After(now) {
			e.state = stateClaimed
			return &appoutbox.ClaimedRecord{EventRecord: e.record, Attempts: e.attempts}, nil
		}
	}
	return nil, nil
}

func (o *Outbox) MarkSent(ctx context.Context, id string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	e, ok := o.index[id]
	if !ok {
		return ErrOutboxRecordNotFound
	}
	e.state = stateSent
	return nil
}

func (o *Outbox) MarkFailed(ctx context.Context, id string, next time.Time, errMsg string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	e, ok := o.index[id]
	if !ok {
		return ErrOutboxRecordNotFound
	}
	e.state = stateFailed
	e.attempts++
	e.nextAttempt = next
	e.lastError = errMsg
	return nil
}

// Pending counts records not yet sent.
func (o *Outbox) Pending() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	n := 0
	for _, e := range o.entries {
		if e.state != stateSent {
			n++
		}
	}
	return n
}

// Records returns a copy of every record added so far.
func (o *Outbox) Records() []appoutbox.EventRecord {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]appoutbox.EventRecord, 0, len(o.entries))
	for _, e := range o.entries {
		out = append(out, e.record)
	}
	return out
}

var (
	_ appoutbox.Outbox = (*Outbox)(nil)
	_ appoutbox.Relay  = (*Outbox)(nil)
)

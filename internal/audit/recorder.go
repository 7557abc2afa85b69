package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
)

const flushBatch = 100

// Recorder delivers records to a sink with bounded retries and parks what
// cannot be delivered in an outbox. Delivery is at-least-once: a parked record
// is written again by Flush.
type Recorder struct {
	sink     Sink
	outbox   Outbox
	log      logrus.FieldLogger
	now      func() time.Time
	retries  uint64
	interval time.Duration
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithClock sets the time source for records without a timestamp.
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) { r.now = now }
}

// WithRetry sets the number of retries and the initial backoff interval.
func WithRetry(retries uint64, interval time.Duration) Option {
	return func(r *Recorder) {
		r.retries = retries
		r.interval = interval
	}
}

// NewRecorder returns a Recorder. outbox may be nil, in which case
// undeliverable records are only logged.
func NewRecorder(sink Sink, outbox Outbox, log logrus.FieldLogger, opts ...Option) *Recorder {
	r := &Recorder{
		sink:     sink,
		outbox:   outbox,
		log:      log,
		now:      time.Now,
		retries:  3,
		interval: 20 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Recorder) deliver(ctx context.Context, rec Record) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.interval
	b.MaxElapsedTime = 0
	return backoff.Retry(func() error {
		return r.sink.Write(ctx, rec)
	}, backoff.WithContext(backoff.WithMaxRetries(b, r.retries), ctx))
}

// Emit delivers rec synchronously. It never fails the caller: when every
// attempt fails the record goes to the outbox, and when that fails too the
// loss is logged.
func (r *Recorder) Emit(ctx context.Context, rec Record) {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = r.now().UTC()
	}
	err := r.deliver(ctx, rec)
	if err == nil {
		return
	}

	log := r.log.WithFields(logrus.Fields{
		"tenant": rec.TenantID, "action": rec.Action, "entity_id": rec.EntityID,
	})
	if r.outbox == nil {
		log.WithError(err).Error("audit record dropped")
		return
	}
	payload, merr := json.Marshal(rec)
	if merr != nil {
		log.WithError(merr).Error("audit record dropped: encoding failed")
		return
	}
	// Parking must succeed even when the caller's context is done.
	if perr := r.outbox.ParkAudit(context.WithoutCancel(ctx), string(payload), err.Error()); perr != nil {
		log.WithError(perr).Error("audit record dropped: outbox unavailable")
		return
	}
	log.WithError(err).Warn("audit sink unavailable, record parked")
}

// Flush redelivers parked records in order and returns how many were
// delivered. It stops at the first record the sink still refuses.
func (r *Recorder) Flush(ctx context.Context) (int, error) {
	if r.outbox == nil {
		return 0, nil
	}
	delivered := 0
	for {
		items, err := r.outbox.PendingAudit(ctx, flushBatch)
		if err != nil {
			return delivered, fmt.Errorf("reading audit outbox: %w", err)
		}
		if len(items) == 0 {
			return delivered, nil
		}
		for _, it := range items {
			var rec Record
			if err := json.Unmarshal([]byte(it.Payload), &rec); err != nil {
				return delivered, fmt.Errorf("decoding outbox item %d: %w", it.ID, err)
			}
			if err := r.sink.Write(ctx, rec); err != nil {
				if rerr := r.outbox.RetryAudit(ctx, it.ID, err.Error()); rerr != nil {
					return delivered, fmt.Errorf("updating outbox item %d: %w", it.ID, rerr)
				}
				return delivered, fmt.Errorf("redelivering outbox item %d: %w", it.ID, err)
			}
			if err := r.outbox.AckAudit(ctx, it.ID); err != nil {
				return delivered, fmt.Errorf("acknowledging outbox item %d: %w", it.ID, err)
			}
			delivered++
		}
		if len(items) < flushBatch {
			return delivered, nil
		}
	}
}

// Package retry re-runs operations that failed with a transient store error.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"github.com/cleared-dev/ledger/internal/model"
)

// MaxRetries is the number of retries after the first attempt.
const MaxRetries = 3

// Policy controls the exponential backoff between attempts.
type Policy struct {
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// Default is three retries starting at 50ms.
var Default = Policy{MaxRetries: MaxRetries, InitialInterval: 50 * time.Millisecond, MaxInterval: time.Second}

func (p Policy) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialInterval
	b.MaxInterval = p.MaxInterval
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, p.MaxRetries), ctx)
}

// Do runs fn, retrying while it returns a *model.TransientStoreError. Any
// other error stops immediately and is returned unchanged.
func (p Policy) Do(ctx context.Context, log logrus.FieldLogger, op string, fn func() error) error {
	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		err := fn()
		if err == nil {
			return nil
		}
		if !model.IsTransient(err) {
			return backoff.Permanent(err)
		}
		log.WithFields(logrus.Fields{"op": op, "attempt": attempt}).WithError(err).Warn("transient store error, retrying")
		return err
	}, p.backOff(ctx))
}

// Do runs fn under the default policy.
func Do(ctx context.Context, log logrus.FieldLogger, op string, fn func() error) error {
	return Default.Do(ctx, log, op, fn)
}

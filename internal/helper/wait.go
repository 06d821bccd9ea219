package helper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog/log"
)

var ErrNotReady = errors.New("not ready")

// ReadyFunc reports whether a resource is ready. A returned error aborts the wait.
type ReadyFunc func(ctx context.Context) (bool, error)

// WaitUntil polls ready every interval until it reports true, the timeout
// elapses or ctx is done.
func WaitUntil(ctx context.Context, name string, interval, timeout time.Duration, ready ReadyFunc) error {
	attempts := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempts++
		ok, err := ready(ctx)
		if err != nil {
			return struct{}{}, backoff.Permanent(err)
		}
		if !ok {
			log.Debug().Str("resource", name).Int("attempt", attempts).Msg("Waiting for readiness")
			return struct{}{}, ErrNotReady
		}
		return struct{}{}, nil
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(interval)),
		backoff.WithMaxElapsedTime(timeout),
	)
	if err != nil {
		return fmt.Errorf("waiting for %s after %d attempts: %w", name, attempts, err)
	}
	return nil
}

// internal/retry/retry.go
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultDelay is the pause between attempts when none is configured
const DefaultDelay = 500 * time.Millisecond

// Config defines retry behavior with a fixed delay between attempts
type Config struct {
	Retries int           // Extra attempts after the first one
	Delay   time.Duration // Pause before each retry
}

// DefaultConfig returns the retry configuration used for static fetches
func DefaultConfig() Config {
	return Config{
		Retries: 2,
		Delay:   DefaultDelay,
	}
}

// Attempts returns the total number of attempts the config allows
func (c Config) Attempts() int {
	if c.Retries < 0 {
		return 1
	}
	return c.Retries + 1
}

// ErrExhausted matches the error returned once every attempt failed
var ErrExhausted = errors.New("retries exhausted")

// ExhaustedError reports that every attempt failed and keeps the last error
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("operation failed after %d attempts: %v", e.Attempts, e.Last)
}

// Unwrap returns the last attempt's error
func (e *ExhaustedError) Unwrap() error { return e.Last }

// Is makes errors.Is(err, ErrExhausted) true
func (e *ExhaustedError) Is(target error) bool { return target == ErrExhausted }

// permanent marks an error that must not be retried
type permanent struct {
	err error
}

func (p *permanent) Error() string { return p.err.Error() }
func (p *permanent) Unwrap() error { return p.err }

// Permanent wraps err so Do returns it immediately without further attempts
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanent{err: err}
}

// Do calls fn until it succeeds or the attempts are used up.
//
// Every error is treated as transient unless wrapped with Permanent or caused
// by ctx ending. When all attempts fail, the returned error wraps
// ErrExhausted and is an *ExhaustedError carrying the last attempt's error.
func Do(ctx context.Context, cfg Config, fn func(attempt int) error) error {
	if ctx == nil {
		ctx = context.Background()
	}

	attempts := cfg.Attempts()
	var lastErr error

	for attempt := 0; attempt < attempts; attempt++ {
		err := fn(attempt)
		if err == nil {
			if attempt > 0 {
				log.Debug().
					Int("attempts", attempt+1).
					Msg("Retry succeeded")
			}
			return nil
		}

		var p *permanent
		if errors.As(err, &p) {
			return p.err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		lastErr = err

		// Don't sleep after the last attempt
		if attempt < attempts-1 {
			log.Debug().
				Int("attempt", attempt+1).
				Int("max_attempts", attempts).
				Dur("delay", cfg.Delay).
				Err(err).
				Msg("Retrying after delay")

			if err := sleep(ctx, cfg.Delay); err != nil {
				return err
			}
		}
	}

	log.Debug().
		Int("attempts", attempts).
		Err(lastErr).
		Msg("Max retry attempts exceeded")

	return &ExhaustedError{Attempts: attempts, Last: lastErr}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

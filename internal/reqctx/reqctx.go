// Package reqctx carries per-call identity through a fetch for log correlation.
package reqctx

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type key int

const callKey key = 0

// Call describes one fetch-and-extract invocation
type Call struct {
	ID        string
	URL       string
	StartTime time.Time
}

// Elapsed returns the time since the call started
func (c *Call) Elapsed() time.Duration {
	return time.Since(c.StartTime)
}

// With returns a context carrying a new Call for rawURL. An existing call ID
// on ctx is kept so nested calls share it.
func With(ctx context.Context, rawURL string) (context.Context, *Call) {
	if ctx == nil {
		ctx = context.Background()
	}
	id := uuid.NewString()
	if parent, ok := ctx.Value(callKey).(*Call); ok {
		id = parent.ID
	}

	call := &Call{ID: id, URL: rawURL, StartTime: time.Now()}
	return context.WithValue(ctx, callKey, call), call
}

// From returns the Call on ctx, or a placeholder with ID "unknown"
func From(ctx context.Context) *Call {
	if ctx != nil {
		if c, ok := ctx.Value(callKey).(*Call); ok {
			return c
		}
	}
	return &Call{ID: "unknown", StartTime: time.Now()}
}

// Logger returns the global logger annotated with the call's ID and URL
func Logger(ctx context.Context) *zerolog.Logger {
	c := From(ctx)
	l := log.With().Str("request_id", c.ID).Str("url", c.URL).Logger()
	return &l
}

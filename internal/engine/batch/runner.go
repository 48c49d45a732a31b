// internal/engine/batch/runner.go
package batch

import (
	"context"
	"sync"

	"github.com/law-makers/pagefetch/pkg/models"
	"github.com/rs/zerolog/log"
)

// Fetcher is the single-URL pipeline a Runner fans out over
type Fetcher interface {
	FetchAndExtract(ctx context.Context, rawURL string, needScreenshot bool) *models.FetchResult
}

// Item is one finished URL. Index is its position in the input slice.
type Item struct {
	Index  int
	URL    string
	Result *models.FetchResult
}

// Runner fetches many URLs with bounded concurrency
type Runner struct {
	fetcher     Fetcher
	concurrency int
}

// New creates a Runner.
// If concurrency <= 0, it auto-tunes based on system resources
func New(fetcher Fetcher, concurrency int) *Runner {
	if concurrency <= 0 {
		concurrency = OptimalConcurrency()
	}
	return &Runner{
		fetcher:     fetcher,
		concurrency: concurrency,
	}
}

// Concurrency returns the number of fetches allowed in flight
func (r *Runner) Concurrency() int {
	return r.concurrency
}

// Run fetches every URL and emits one Item per URL in completion order.
// URLs are dispatched round-robin across hosts so a single slow host does
// not hold every slot. URLs not yet started when ctx ends are reported as
// failures carrying the context error. The channel closes when all are done.
func (r *Runner) Run(ctx context.Context, urls []string, needScreenshot bool) <-chan Item {
	results := make(chan Item, len(urls))
	order := Interleave(urls)

	go func() {
		defer close(results)

		sem := make(chan struct{}, r.concurrency)
		var wg sync.WaitGroup

		for _, idx := range order {
			select {
			case <-ctx.Done():
				results <- cancelled(idx, urls[idx], ctx.Err())
				continue
			case sem <- struct{}{}:
			}

			wg.Add(1)
			go func(i int, u string) {
				defer wg.Done()
				defer func() { <-sem }()

				results <- Item{
					Index:  i,
					URL:    u,
					Result: r.fetcher.FetchAndExtract(ctx, u, needScreenshot),
				}
			}(idx, urls[idx])
		}

		wg.Wait()
		log.Debug().Int("urls", len(urls)).Msg("Batch completed")
	}()

	return results
}

func cancelled(idx int, u string, err error) Item {
	return Item{
		Index: idx,
		URL:   u,
		Result: &models.FetchResult{
			URL:      u,
			FinalURL: u,
			Error:    err.Error(),
		},
	}
}

package pipeline

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/couchcryptid/buoy-data-etl/internal/domain"
)

// RateLimitedLoader throttles a BatchLoader to a number of observations per
// second, so a backfill of many monthly files does not flood the sink.
type RateLimitedLoader struct {
	loader  BatchLoader
	limiter *rate.Limiter
}

// NewRateLimitedLoader wraps loader. rps is observations per second (can be
// fractional); burst is the most observations released at once.
func NewRateLimitedLoader(loader BatchLoader, rps float64, burst int) *RateLimitedLoader {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimitedLoader{
		loader:  loader,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// LoadBatch waits for one token per observation, then forwards the batch.
func (r *RateLimitedLoader) LoadBatch(ctx context.Context, fb domain.FileBatch) error {
	remaining := len(fb.Batch.Values)
	burst := r.limiter.Burst()
	for remaining > 0 {
		n := min(remaining, burst)
		if err := r.limiter.WaitN(ctx, n); err != nil {
			return fmt.Errorf("rate limit wait canceled: %w", err)
		}
		remaining -= n
	}
	return r.loader.LoadBatch(ctx, fb)
}

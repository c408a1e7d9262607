// Package fetcher wraps feed retrieval with a global rate limit and a
// bounded retry policy.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"rag-toxiv/feed"
)

// ErrExhausted is returned when every trial has been consumed without a
// result. The final trial returns whatever was retrieved, so with Trials >= 1
// this is a termination guard rather than a branch callers should expect.
var ErrExhausted = errors.New("fetcher: trials exhausted")

// Config bounds a Fetcher. One call is admitted per Period across all
// categories; each admitted call makes up to Trials attempts, sleeping
// RetrySleep between attempts that came back empty.
type Config struct {
	Period     time.Duration
	Trials     int
	RetrySleep time.Duration
}

// Fetcher is a rate-limited, retrying front end over a feed Retriever.
type Fetcher struct {
	retriever feed.Retriever
	limiter   *rate.Limiter
	cfg       Config
	sleep     func(time.Duration)
}

// New creates a Fetcher. The limiter admits one Retrieve cycle per
// cfg.Period by blocking the caller, never by rejecting.
func New(retriever feed.Retriever, cfg Config) *Fetcher {
	if cfg.Trials < 1 {
		cfg.Trials = 1
	}
	return &Fetcher{
		retriever: retriever,
		limiter:   rate.NewLimiter(rate.Every(cfg.Period), 1),
		cfg:       cfg,
		sleep:     time.Sleep,
	}
}

// Fetch retrieves the daily feed for category, honoring the global rate
// limit. A malformed feed is logged and used as-is. An empty or failed
// attempt is retried after RetrySleep; the final attempt returns whatever
// it got, empty or not.
func (f *Fetcher) Fetch(ctx context.Context, category string, aliases map[string]string) (*feed.Feed, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("fetcher: waiting for rate limit: %w", err)
	}

	for trial := 0; trial < f.cfg.Trials; trial++ {
		result, err := f.retriever.Retrieve(ctx, category, aliases)
		last := trial == f.cfg.Trials-1

		if err != nil {
			if last {
				return nil, fmt.Errorf("fetcher: retrieving %s: %w", category, err)
			}
			slog.Warn("feed retrieval failed, will retry", "category", category, "trial", trial+1, "error", err)
		} else {
			if result.Bozo {
				slog.Warn("feed parse error", "category", category, "trial", trial+1)
			}
			if last || result.EntryCount() > 0 {
				return result, nil
			}
			slog.Warn("empty feed entries", "category", category, "trial", trial+1)
		}

		slog.Info("sleep and retry", "category", category, "sleep", f.cfg.RetrySleep)
		f.sleep(f.cfg.RetrySleep)
	}

	return nil, ErrExhausted
}

package sellfox

import (
	"context"
	"fmt"
	"iter"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"go.uber.org/zap"

	"github.com/Havoc420didi/didi-amazon-analyst-sub000/internal/apperr"
	"github.com/Havoc420didi/didi-amazon-analyst-sub000/internal/logger"
)

// PageFetcher retrieves one page, numbered from 1.
type PageFetcher[T any] func(ctx context.Context, pageNo int) (*Page[T], error)

type PageOptions struct {
	// PageDelay is the minimum pause between two page requests.
	PageDelay time.Duration
	// MaxPages stops iteration early when positive.
	MaxPages int
	// RateLimitPause is slept before retrying a page answered with code 40019.
	RateLimitPause time.Duration
	// RateLimitRetries bounds how often one page is retried after 40019.
	RateLimitRetries int

	Clock  clock.Clock
	Sleep  func(ctx context.Context, d time.Duration) error
	Logger logger.ZapLogger
}

// PageError is a page that could not be fetched. Iteration continues with
// the next page after it is yielded.
type PageError struct {
	Page int
	Err  error
}

func (e *PageError) Error() string { return fmt.Sprintf("page %d: %v", e.Page, e.Err) }
func (e *PageError) Unwrap() error { return e.Err }

// FetchPages adapts a POST endpoint whose body depends on the page number.
func FetchPages[T any](c Poster, path string, body func(pageNo int) any) PageFetcher[T] {
	return func(ctx context.Context, pageNo int) (*Page[T], error) {
		var page Page[T]
		if err := c.Post(ctx, path, body(pageNo), &page); err != nil {
			return nil, err
		}
		return &page, nil
	}
}

// Paginate walks pages 1..totalPage lazily. Rows are yielded with a nil
// error; a failed page yields a *PageError and the walk moves on, except
// for auth failures and cancellation which end it. An empty page or
// reaching MaxPages also ends the walk.
func Paginate[T any](ctx context.Context, fetch PageFetcher[T], opts PageOptions) iter.Seq2[T, error] {
	opts = opts.withDefaults()
	return func(yield func(T, error) bool) {
		var zero T
		// lastTotal is the page count reported by the newest successful page
		lastTotal := 0
		for pageNo := 1; ; pageNo++ {
			if opts.MaxPages > 0 && pageNo > opts.MaxPages {
				return
			}
			if pageNo > 1 && opts.PageDelay > 0 {
				if err := opts.Sleep(ctx, opts.PageDelay); err != nil {
					yield(zero, err)
					return
				}
			}

			page, err := fetchPage(ctx, fetch, pageNo, opts)
			if err != nil {
				if stopsWalk(ctx, err) || pageNo == 1 {
					yield(zero, &PageError{Page: pageNo, Err: err})
					return
				}
				opts.Logger.Warn("Skipping failed page", zap.Int("page", pageNo), zap.Error(err))
				if !yield(zero, &PageError{Page: pageNo, Err: err}) {
					return
				}
				if pageNo >= lastTotal {
					return
				}
				continue
			}

			if len(page.Rows) == 0 {
				return
			}
			for _, row := range page.Rows {
				if !yield(row, nil) {
					return
				}
			}

			total := int(page.TotalPage)
			opts.Logger.Debug("Fetched page",
				zap.Int("page", pageNo), zap.Int("total_pages", total), zap.Int("rows", len(page.Rows)))
			if total > 0 && pageNo >= total {
				return
			}
			lastTotal = total
		}
	}
}

func fetchPage[T any](ctx context.Context, fetch PageFetcher[T], pageNo int, opts PageOptions) (*Page[T], error) {
	for attempt := 0; ; attempt++ {
		page, err := fetch(ctx, pageNo)
		if err == nil {
			return page, nil
		}
		if !errors.Is(err, apperr.ErrRateLimit) || attempt >= opts.RateLimitRetries {
			return nil, err
		}
		opts.Logger.Warn("Rate limited, pausing before retrying page",
			zap.Int("page", pageNo), zap.Duration("pause", opts.RateLimitPause))
		if err := opts.Sleep(ctx, opts.RateLimitPause); err != nil {
			return nil, err
		}
	}
}

// Pages after the first can fail independently; auth and cancellation
// would fail every later page too.
func stopsWalk(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, apperr.ErrAuth) ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func (o PageOptions) withDefaults() PageOptions {
	if o.RateLimitPause <= 0 {
		o.RateLimitPause = 10 * time.Second
	}
	if o.RateLimitRetries <= 0 {
		o.RateLimitRetries = 3
	}
	if o.Clock == nil {
		o.Clock = clock.WallClock
	}
	if o.Sleep == nil {
		clk := o.Clock
		o.Sleep = func(ctx context.Context, d time.Duration) error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-clk.After(d):
				return nil
			}
		}
	}
	if o.Logger == nil {
		o.Logger = logger.NewNop()
	}
	return o
}

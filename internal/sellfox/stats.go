package sellfox

import (
	"context"
	"sync/atomic"
)

// CallStats counts HTTP attempts and retries for one job.
type CallStats struct {
	calls   atomic.Int64
	retries atomic.Int64
}

func (s *CallStats) Calls() int64   { return s.calls.Load() }
func (s *CallStats) Retries() int64 { return s.retries.Load() }

type statsKey struct{}

// WithCallStats attaches stats to ctx; every call made with the returned
// context is counted into it.
func WithCallStats(ctx context.Context, stats *CallStats) context.Context {
	return context.WithValue(ctx, statsKey{}, stats)
}

func statsFrom(ctx context.Context) *CallStats {
	s, _ := ctx.Value(statsKey{}).(*CallStats)
	return s
}

func countCall(ctx context.Context) {
	if s := statsFrom(ctx); s != nil {
		s.calls.Add(1)
	}
}

func countRetry(ctx context.Context) {
	if s := statsFrom(ctx); s != nil {
		s.retries.Add(1)
	}
}

package usecase

import (
	"context"
	"iter"
	"testing"
	"time"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Havoc420didi/didi-amazon-analyst-sub000/internal/analytics/repository"
	"github.com/Havoc420didi/didi-amazon-analyst-sub000/internal/apperr"
	"github.com/Havoc420didi/didi-amazon-analyst-sub000/internal/logger"
	"github.com/Havoc420didi/didi-amazon-analyst-sub000/internal/model"
	"github.com/Havoc420didi/didi-amazon-analyst-sub000/internal/postgres/postgrestest"
	"github.com/Havoc420didi/didi-amazon-analyst-sub000/internal/sellfox"
)

var day = time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)

type item struct {
	row model.ProductAnalytics
	err error
}

func seq(items ...item) iter.Seq2[model.ProductAnalytics, error] {
	return func(yield func(model.ProductAnalytics, error) bool) {
		for _, it := range items {
			if !yield(it.row, it.err) {
				return
			}
		}
	}
}

func ok(row model.ProductAnalytics) item { return item{row: row} }

func row(asin, sku string, qty int64, amount float64) model.ProductAnalytics {
	return model.ProductAnalytics{
		ASIN:          asin,
		SKU:           sku,
		DataDate:      day,
		ShopName:      "01 Store-US",
		SalesQuantity: qty,
		SalesAmount:   amount,
	}
}

// memRepo records upserted chunks and can fail on a given chunk.
type memRepo struct {
	chunks [][]model.ProductAnalytics
	failAt int
}

func (m *memRepo) UpsertProductAnalytics(_ context.Context, rows []model.ProductAnalytics) (int, error) {
	if m.failAt > 0 && len(m.chunks)+1 == m.failAt {
		return 0, &apperr.PersistenceError{Kind: apperr.PersistenceConnect, Cause: errors.New("connection reset")}
	}
	m.chunks = append(m.chunks, append([]model.ProductAnalytics(nil), rows...))
	return len(rows), nil
}

func (m *memRepo) FindByDate(context.Context, time.Time) ([]model.ProductAnalytics, error) {
	return nil, nil
}
func (m *memRepo) CountByDate(context.Context, time.Time) (int, error) { return 0, nil }
func (m *memRepo) Windows(context.Context, time.Time, int) ([]model.AnalyticsWindow, error) {
	return nil, nil
}
func (m *memRepo) DeleteBefore(context.Context, time.Time) (int64, error) { return 0, nil }

func TestDuplicatesAreSummed(t *testing.T) {
	a := row("B08DUP", "SKU-1", 3, 30)
	a.Impressions, a.Clicks, a.ACOS = 1000, 20, 0.10
	b := row("B08DUP", "SKU-1", 7, 90)
	b.Impressions, b.Clicks, b.ACOS, b.Title = 3000, 80, 0.30, "Late title"

	repo := &memRepo{}
	uc := NewAnalyticsUseCase(repo, 100, true, logger.NewNop())
	summary, err := uc.Process(context.Background(), day, seq(ok(a), ok(b), ok(row("B08OTHER", "SKU-2", 1, 5))))
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Processed)
	assert.Equal(t, 2, summary.Persisted)
	assert.Equal(t, 1, summary.Duplicates)

	merged := repo.chunks[0][0]
	assert.EqualValues(t, 10, merged.SalesQuantity)
	assert.Equal(t, 120.0, merged.SalesAmount)
	assert.EqualValues(t, 4000, merged.Impressions)
	assert.EqualValues(t, 100, merged.Clicks)
	assert.InDelta(t, 0.025, merged.CTR, 1e-9)
	assert.InDelta(t, 0.1, merged.ConversionRate, 1e-9)
	assert.InDelta(t, 1.2, merged.RevenuePerClick, 1e-9)
	// (0.10*30 + 0.30*90) / 120
	assert.InDelta(t, 0.25, merged.ACOS, 1e-9)
	assert.Equal(t, "Late title", merged.Title)
}

func TestInvalidRowsAreCounted(t *testing.T) {
	bad := row("B08BAD", "SKU-9", 1, 1)
	bad.Rating = 7
	rejected := apperr.Invalid("asin", "missing")

	repo := &memRepo{}
	uc := NewAnalyticsUseCase(repo, 100, true, logger.NewNop())
	summary, err := uc.Process(context.Background(), day, seq(
		ok(row("B08GOOD", "SKU-1", 2, 20)),
		ok(bad),
		item{err: rejected},
	))
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Processed)
	assert.Equal(t, 1, summary.Persisted)
	assert.Equal(t, 2, summary.Failed)
	assert.Equal(t, summary.Processed, summary.Persisted+summary.Failed)
	assert.Len(t, summary.Errors, 2)
}

func TestValidationDisabledKeepsOutOfRangeRows(t *testing.T) {
	odd := row("B08ODD", "SKU-9", 1, 1)
	odd.Rating = 7
	keyless := row("", "SKU-8", 1, 1)

	repo := &memRepo{}
	uc := NewAnalyticsUseCase(repo, 100, false, logger.NewNop())
	summary, err := uc.Process(context.Background(), day, seq(ok(odd), ok(keyless)))
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Persisted)
	assert.Equal(t, 1, summary.Failed, "rows without a key are still rejected")
	require.Len(t, repo.chunks, 1)
	assert.Equal(t, "B08ODD", repo.chunks[0][0].ASIN)
}

func TestDeriveRatios(t *testing.T) {
	p := row("B08", "S", 6, 123.456)
	p.Impressions, p.Clicks = 2000, 40
	Derive(&p)

	assert.InDelta(t, 0.15, p.ConversionRate, 1e-9)
	assert.InDelta(t, 0.02, p.CTR, 1e-9)
	assert.InDelta(t, 3.0864, p.RevenuePerClick, 1e-9)
	assert.Equal(t, 123.46, p.SalesAmount)

	given := row("B08", "S", 6, 10)
	given.Clicks, given.ConversionRate = 40, 0.5
	Derive(&given)
	assert.Equal(t, 0.5, given.ConversionRate, "supplied conversion rate is kept")

	none := row("B08", "S", 0, 0)
	Derive(&none)
	assert.Zero(t, none.CTR)
	assert.Zero(t, none.ConversionRate)
}

func TestRowsAreChunked(t *testing.T) {
	var items []item
	for i := 0; i < 7; i++ {
		items = append(items, ok(row("B08", string(rune('a'+i)), 1, 1)))
	}
	repo := &memRepo{}
	summary, err := NewAnalyticsUseCase(repo, 3, true, logger.NewNop()).Process(context.Background(), day, seq(items...))
	require.NoError(t, err)

	require.Len(t, repo.chunks, 3)
	assert.Len(t, repo.chunks[0], 3)
	assert.Len(t, repo.chunks[2], 1)
	assert.Equal(t, 7, summary.Persisted)
}

func TestPersistenceFailureAbortsRun(t *testing.T) {
	var items []item
	for i := 0; i < 6; i++ {
		items = append(items, ok(row("B08", string(rune('a'+i)), 1, 1)))
	}
	repo := &memRepo{failAt: 2}
	summary, err := NewAnalyticsUseCase(repo, 3, true, logger.NewNop()).Process(context.Background(), day, seq(items...))
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrPersistence))
	assert.Equal(t, 3, summary.Persisted)
}

func TestFailedPagesAreTolerated(t *testing.T) {
	pageErr := &sellfox.PageError{Page: 2, Err: &apperr.TransportError{Kind: apperr.Transport5xx, StatusCode: 503}}

	repo := &memRepo{}
	uc := NewAnalyticsUseCase(repo, 100, true, logger.NewNop())
	summary, err := uc.Process(context.Background(), day, seq(ok(row("B08", "S", 1, 1)), item{err: pageErr}))
	require.NoError(t, err)
	assert.Equal(t, 1, summary.PagesFailed)
	assert.Equal(t, 1, summary.Persisted)

	_, err = uc.Process(context.Background(), day, seq(item{err: pageErr}))
	assert.Error(t, err, "nothing fetched at all")
}

func TestAuthFailureIsFatal(t *testing.T) {
	uc := NewAnalyticsUseCase(&memRepo{}, 100, true, logger.NewNop())
	_, err := uc.Process(context.Background(), day, seq(item{err: &apperr.AuthError{Msg: "revoked"}}))
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrAuth))
}

func TestEmptyInput(t *testing.T) {
	repo := &memRepo{}
	summary, err := NewAnalyticsUseCase(repo, 100, true, logger.NewNop()).Process(context.Background(), day, seq())
	require.NoError(t, err)
	assert.Zero(t, summary.Processed)
	assert.Zero(t, summary.Persisted)
	assert.Empty(t, repo.chunks)
}

func TestReprocessingSameDayKeepsRowCount(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewPGRepository(postgrestest.NewDB(t), nil)
	uc := NewAnalyticsUseCase(repo, 2, true, logger.NewNop())

	input := func() iter.Seq2[model.ProductAnalytics, error] {
		return seq(ok(row("B08A", "S1", 1, 10)), ok(row("B08B", "S2", 2, 20)), ok(row("B08C", "S3", 3, 30)))
	}
	_, err := uc.Process(ctx, day, input())
	require.NoError(t, err)
	first, err := repo.CountByDate(ctx, day)
	require.NoError(t, err)

	_, err = uc.Process(ctx, day, input())
	require.NoError(t, err)
	second, err := repo.CountByDate(ctx, day)
	require.NoError(t, err)

	assert.Equal(t, 3, first)
	assert.Equal(t, first, second)
}

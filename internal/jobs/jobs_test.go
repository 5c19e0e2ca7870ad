package jobs

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/book-store/internal/metrics"
	"github.com/iliyamo/book-store/internal/model"
)

type fakeTokens struct {
	cutoff time.Time
	n      int64
	err    error
}

func (f *fakeTokens) PurgeBefore(_ context.Context, cutoff time.Time) (int64, error) {
	f.cutoff = cutoff
	return f.n, f.err
}

type fakeBooks struct {
	level int
	books []model.Book
	err   error
}

func (f *fakeBooks) LowStock(_ context.Context, level int) ([]model.Book, error) {
	f.level = level
	return f.books, f.err
}

func newRunner(t *testing.T) (*Runner, *logtest.Hook) {
	t.Helper()
	log, hook := logtest.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	return &Runner{Metrics: metrics.New(false), LowStockLevel: 3, Log: log}, hook
}

func TestPurgeTokens(t *testing.T) {
	r, hook := newRunner(t)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }
	tokens := &fakeTokens{n: 4}
	r.Tokens = tokens

	require.NoError(t, r.PurgeTokens(context.Background()))
	assert.Equal(t, now, tokens.cutoff)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, int64(4), hook.LastEntry().Data["removed"])
}

func TestPurgeTokensError(t *testing.T) {
	r, _ := newRunner(t)
	r.Tokens = &fakeTokens{err: errors.New("boom")}

	err := r.PurgeTokens(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestRefreshLowStock(t *testing.T) {
	r, hook := newRunner(t)
	books := &fakeBooks{books: []model.Book{
		{ID: 1, ISBN: "9780141439518", Stock: 0},
		{ID: 2, ISBN: "9780141439600", Stock: 2},
	}}
	r.Books = books

	require.NoError(t, r.RefreshLowStock(context.Background()))
	assert.Equal(t, 3, books.level)
	expected := `
# HELP bookstore_catalog_low_stock_books Books at or below the low stock level.
# TYPE bookstore_catalog_low_stock_books gauge
bookstore_catalog_low_stock_books 2
`
	require.NoError(t, testutil.GatherAndCompare(r.Metrics.Registry, strings.NewReader(expected), "bookstore_catalog_low_stock_books"))
	require.Len(t, hook.AllEntries(), 1)
	assert.Equal(t, uint64(1), hook.LastEntry().Data["book_id"])
}

func TestStartRejectsBadSpec(t *testing.T) {
	r, _ := newRunner(t)
	r.Tokens = &fakeTokens{}
	r.Books = &fakeBooks{}

	_, err := Start(context.Background(), r, "not a spec", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), JobTokenPurge)
}

func TestStartPrimesLowStock(t *testing.T) {
	r, _ := newRunner(t)
	r.Tokens = &fakeTokens{}
	books := &fakeBooks{books: []model.Book{{ID: 9, Stock: 1}}}
	r.Books = books

	c, err := Start(context.Background(), r, "@every 1h", "@every 1h")
	require.NoError(t, err)
	defer c.Stop()
	assert.Len(t, c.Entries(), 2)
	assert.Eventually(t, func() bool {
		n, err := testutil.GatherAndCount(r.Metrics.Registry, "bookstore_jobs_runs_total")
		return err == nil && n == 1
	}, time.Second, 10*time.Millisecond)
}

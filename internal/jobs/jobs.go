// Package jobs runs the periodic maintenance tasks of the server.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/book-store/internal/metrics"
	"github.com/iliyamo/book-store/internal/model"
)

const (
	JobTokenPurge = "token_purge"
	JobLowStock   = "low_stock"

	runTimeout = 30 * time.Second
)

// TokenPurger deletes refresh tokens that expired or were revoked before
// cutoff.
type TokenPurger interface {
	PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// StockReader lists books at or below a stock level.
type StockReader interface {
	LowStock(ctx context.Context, level int) ([]model.Book, error)
}

// Runner holds the dependencies of every job.
type Runner struct {
	Tokens        TokenPurger
	Books         StockReader
	Metrics       *metrics.Metrics
	LowStockLevel int
	Log           logrus.FieldLogger

	now func() time.Time
}

// PurgeTokens removes dead refresh tokens.
func (r *Runner) PurgeTokens(ctx context.Context) error {
	now := time.Now
	if r.now != nil {
		now = r.now
	}
	n, err := r.Tokens.PurgeBefore(ctx, now())
	r.record(JobTokenPurge, err)
	if err != nil {
		return fmt.Errorf("purge refresh tokens: %w", err)
	}
	if n > 0 {
		r.Log.WithField("removed", n).Info("refresh tokens purged")
	}
	return nil
}

// RefreshLowStock recomputes the low stock gauge and warns about sold out
// books.
func (r *Runner) RefreshLowStock(ctx context.Context) error {
	books, err := r.Books.LowStock(ctx, r.LowStockLevel)
	r.record(JobLowStock, err)
	if err != nil {
		return fmt.Errorf("low stock: %w", err)
	}
	if r.Metrics != nil {
		r.Metrics.SetLowStock(len(books))
	}
	for _, b := range books {
		if b.Stock == 0 {
			r.Log.WithFields(logrus.Fields{"book_id": b.ID, "isbn": b.ISBN}).Warn("book sold out")
		}
	}
	return nil
}

func (r *Runner) record(job string, err error) {
	if r.Metrics != nil {
		r.Metrics.JobRun(job, err)
	}
}

// Start schedules the jobs with the given cron specs and starts the
// scheduler.  An empty spec disables that job.  The low stock gauge is
// filled once immediately so it is meaningful before the first tick.
func Start(ctx context.Context, r *Runner, tokenSpec, stockSpec string) (*cron.Cron, error) {
	c := cron.New(cron.WithChain(cron.Recover(cronLogger{r.Log})))
	add := func(spec, name string, fn func(context.Context) error) error {
		if spec == "" {
			return nil
		}
		_, err := c.AddFunc(spec, func() { r.run(ctx, name, fn) })
		if err != nil {
			return fmt.Errorf("schedule %s %q: %w", name, spec, err)
		}
		return nil
	}
	if err := add(tokenSpec, JobTokenPurge, r.PurgeTokens); err != nil {
		return nil, err
	}
	if err := add(stockSpec, JobLowStock, r.RefreshLowStock); err != nil {
		return nil, err
	}
	if stockSpec != "" {
		go r.run(ctx, JobLowStock, r.RefreshLowStock)
	}
	c.Start()
	return c, nil
}

func (r *Runner) run(ctx context.Context, name string, fn func(context.Context) error) {
	if ctx.Err() != nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()
	if err := fn(ctx); err != nil {
		r.Log.WithError(err).WithField("job", name).Error("job failed")
	}
}

// cronLogger adapts logrus to cron.Logger.
type cronLogger struct{ log logrus.FieldLogger }

func (l cronLogger) Info(msg string, kv ...interface{}) {
	l.log.WithFields(fields(kv)).Debug("cron: " + msg)
}

func (l cronLogger) Error(err error, msg string, kv ...interface{}) {
	l.log.WithError(err).WithFields(fields(kv)).Error("cron: " + msg)
}

func fields(kv []interface{}) logrus.Fields {
	f := logrus.Fields{}
	for i := 0; i+1 < len(kv); i += 2 {
		f[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return f
}

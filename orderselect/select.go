package orderselect

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sartorproj/ridecast/sarima"
	"github.com/sartorproj/ridecast/timeseries"
)

var (
	// ErrInvalidInput is returned before any fit when the series or grid is
	// malformed.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNoViableModel is returned when every grid cell failed to fit.
	ErrNoViableModel = errors.New("no viable model")
)

// Fitter fits one candidate order and returns its AICc. Errors mark the
// cell unavailable; they never abort the search.
type Fitter interface {
	FitScore(ctx context.Context, series *timeseries.Series, order sarima.Order, seasonal sarima.SeasonalOrder) (float64, error)
}

// FitterFunc adapts a function to Fitter.
type FitterFunc func(ctx context.Context, series *timeseries.Series, order sarima.Order, seasonal sarima.SeasonalOrder) (float64, error)

// FitScore calls f.
func (f FitterFunc) FitScore(ctx context.Context, series *timeseries.Series, order sarima.Order, seasonal sarima.SeasonalOrder) (float64, error) {
	return f(ctx, series, order, seasonal)
}

// Observer is notified after every cell evaluation.
type Observer interface {
	ObserveCell(score Score, elapsed time.Duration)
}

// Selection is the result of a search.
type Selection struct {
	BestP int
	BestQ int
	Best  Score
	Table ScoreTable

	Order    sarima.Order
	Seasonal sarima.SeasonalOrder
}

type options struct {
	workers  int
	logger   *slog.Logger
	observer Observer
}

// Option configures SelectBestOrder.
type Option func(*options)

// WithWorkers evaluates up to n cells concurrently. The result does not
// depend on n.
func WithWorkers(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithLogger logs each cell at debug level and failed cells at warn level.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithObserver registers an observer for cell timings.
func WithObserver(obs Observer) Option {
	return func(o *options) {
		o.observer = obs
	}
}

// SelectBestOrder fits every (p, q) of grid against the fixed seasonal order
// and returns the pair with the smallest AICc. Cells whose fit fails, or
// whose score is not finite, are recorded as unavailable. Ties go to the
// first cell in row-major order.
//
// Input problems are reported as ErrInvalidInput before fitter is called.
// If every cell is unavailable the error wraps ErrNoViableModel and the
// returned Selection still carries the table.
func SelectBestOrder(ctx context.Context, series *timeseries.Series, grid Grid, fitter Fitter, opts ...Option) (*Selection, error) {
	o := options{workers: 1, logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(&o)
	}

	if err := validateInput(series, grid, fitter); err != nil {
		return nil, err
	}

	table := newScoreTable(grid)
	eval := func(ctx context.Context, i int) {
		p := grid.PValues[i/len(grid.QValues)]
		q := grid.QValues[i%len(grid.QValues)]
		table.Scores[i] = evaluate(ctx, series, grid, fitter, p, q, &o)
	}

	if err := run(ctx, grid.Size(), o.workers, eval); err != nil {
		return nil, err
	}

	sel := &Selection{Table: table, Seasonal: grid.Seasonal}
	bestIdx := -1
	for i, s := range table.Scores {
		if !s.Available {
			continue
		}
		if bestIdx < 0 || s.AICc < table.Scores[bestIdx].AICc {
			bestIdx = i
		}
	}

	if bestIdx < 0 {
		return sel, fmt.Errorf("%w: all %d candidate orders failed", ErrNoViableModel, grid.Size())
	}

	sel.Best = table.Scores[bestIdx]
	sel.BestP, sel.BestQ = sel.Best.P, sel.Best.Q
	sel.Order = grid.Order(sel.BestP, sel.BestQ)

	o.logger.Info("order selected",
		"order", sarima.Spec(sel.Order, sel.Seasonal),
		"aicc", sel.Best.AICc,
		"available", table.Available(),
		"cells", grid.Size())
	return sel, nil
}

func validateInput(series *timeseries.Series, grid Grid, fitter Fitter) error {
	if fitter == nil {
		return fmt.Errorf("%w: nil fitter", ErrInvalidInput)
	}
	if series == nil || series.Len() == 0 {
		return fmt.Errorf("%w: empty series", ErrInvalidInput)
	}
	if err := series.Validate(grid.Periods); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return grid.validate()
}

func evaluate(ctx context.Context, series *timeseries.Series, grid Grid, fitter Fitter, p, q int, o *options) Score {
	order := grid.Order(p, q)
	spec := sarima.Spec(order, grid.Seasonal)

	start := time.Now()
	aicc, err := fitter.FitScore(ctx, series, order, grid.Seasonal)
	elapsed := time.Since(start)

	var score Score
	switch {
	case err != nil:
		score = unavailable(p, q, err)
	case math.IsNaN(aicc) || math.IsInf(aicc, 0):
		score = unavailable(p, q, fmt.Errorf("%s: non-finite AICc %v", spec, aicc))
	default:
		score = Score{P: p, Q: q, AICc: aicc, Available: true}
	}

	if score.Available {
		o.logger.Debug("order evaluated", "order", spec, "aicc", aicc, "elapsed", elapsed)
	} else if ctx.Err() == nil {
		o.logger.Warn("order unavailable", "order", spec, "error", score.Err)
	}
	if o.observer != nil {
		o.observer.ObserveCell(score, elapsed)
	}
	return score
}

// run calls eval for indices [0, n) with at most workers in flight and
// reports cancellation of ctx.
func run(ctx context.Context, n, workers int, eval func(context.Context, int)) error {
	if workers <= 1 {
		for i := 0; i < n; i++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			eval(ctx, i)
		}
		return ctx.Err()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := 0; i < n; i++ {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			eval(gctx, i)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

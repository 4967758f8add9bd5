package orderselect

import (
	"fmt"
	"math"
	"strings"
	"text/tabwriter"

	"github.com/sartorproj/ridecast/sarima"
)

// Grid is the set of candidate non-seasonal orders (p, D, q) evaluated
// against one fixed seasonal order.
type Grid struct {
	PValues  []int
	QValues  []int
	D        int
	Seasonal sarima.SeasonalOrder

	// Periods is the expected series length. Zero skips the length check.
	Periods int
}

// DefaultGrid is p in {0,1,2}, q in {0,1} with seasonal order (1,1,0,12).
func DefaultGrid() Grid {
	return Grid{
		PValues:  []int{0, 1, 2},
		QValues:  []int{0, 1},
		Seasonal: sarima.SeasonalOrder{P: 1, D: 1, Q: 0, M: 12},
	}
}

// Size is the number of cells in the grid.
func (g Grid) Size() int {
	return len(g.PValues) * len(g.QValues)
}

// Order returns the candidate order for cell (p, q).
func (g Grid) Order(p, q int) sarima.Order {
	return sarima.Order{P: p, D: g.D, Q: q}
}

func (g Grid) validate() error {
	if len(g.PValues) == 0 || len(g.QValues) == 0 {
		return fmt.Errorf("%w: empty order range", ErrInvalidInput)
	}
	for _, p := range g.PValues {
		if p < 0 {
			return fmt.Errorf("%w: negative p %d", ErrInvalidInput, p)
		}
	}
	for _, q := range g.QValues {
		if q < 0 {
			return fmt.Errorf("%w: negative q %d", ErrInvalidInput, q)
		}
	}
	if g.D < 0 {
		return fmt.Errorf("%w: negative d %d", ErrInvalidInput, g.D)
	}
	s := g.Seasonal
	if s.P < 0 || s.D < 0 || s.Q < 0 {
		return fmt.Errorf("%w: negative seasonal order %s", ErrInvalidInput, s)
	}
	if s.M <= 0 {
		return fmt.Errorf("%w: seasonal period %d", ErrInvalidInput, s.M)
	}
	if s.M < 2 && (s.P > 0 || s.D > 0 || s.Q > 0) {
		return fmt.Errorf("%w: seasonal order %s needs a period of at least 2", ErrInvalidInput, s)
	}
	if g.Periods < 0 {
		return fmt.Errorf("%w: negative expected length %d", ErrInvalidInput, g.Periods)
	}
	return nil
}

// Score is the outcome of one grid cell. AICc is NaN when the cell is
// unavailable, in which case Err holds the reason.
type Score struct {
	P         int
	Q         int
	AICc      float64
	Available bool
	Err       error
}

func unavailable(p, q int, err error) Score {
	return Score{P: p, Q: q, AICc: math.NaN(), Err: err}
}

// ScoreTable holds one score per cell in row-major order: p outer, q inner.
type ScoreTable struct {
	PValues []int
	QValues []int
	Scores  []Score
}

func newScoreTable(g Grid) ScoreTable {
	return ScoreTable{
		PValues: append([]int(nil), g.PValues...),
		QValues: append([]int(nil), g.QValues...),
		Scores:  make([]Score, g.Size()),
	}
}

// At returns the score at row i, column j.
func (t ScoreTable) At(i, j int) Score {
	return t.Scores[i*len(t.QValues)+j]
}

// Lookup returns the first score for the pair (p, q).
func (t ScoreTable) Lookup(p, q int) (Score, bool) {
	for _, s := range t.Scores {
		if s.P == p && s.Q == q {
			return s, true
		}
	}
	return Score{}, false
}

// Available counts the cells that produced a score.
func (t ScoreTable) Available() int {
	n := 0
	for _, s := range t.Scores {
		if s.Available {
			n++
		}
	}
	return n
}

// String renders the table with p as rows and q as columns.
func (t ScoreTable) String() string {
	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 0, 2, ' ', tabwriter.AlignRight)

	fmt.Fprint(w, "\t")
	for _, q := range t.QValues {
		fmt.Fprintf(w, "q=%d\t", q)
	}
	fmt.Fprintln(w)

	for i, p := range t.PValues {
		fmt.Fprintf(w, "p=%d\t", p)
		for j := range t.QValues {
			if s := t.At(i, j); s.Available {
				fmt.Fprintf(w, "%.2f\t", s.AICc)
			} else {
				fmt.Fprint(w, "n/a\t")
			}
		}
		fmt.Fprintln(w)
	}
	w.Flush()
	return b.String()
}

package timeseries

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrInvalidSeries is wrapped by every validation and loading failure caused
// by the data itself (as opposed to I/O).
var ErrInvalidSeries = errors.New("invalid series")

// Epoch is the first period of a series built with New.
var Epoch = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)

// Series is a sequence of observations indexed by consecutive calendar months.
type Series struct {
	Name       string
	Timestamps []time.Time // first instant of each month, UTC
	Values     []float64
}

// New creates a monthly series starting at Epoch.
func New(values []float64) *Series {
	return NewMonthly(Epoch, values)
}

// NewMonthly creates a series whose first observation belongs to start's month.
func NewMonthly(start time.Time, values []float64) *Series {
	return &Series{
		Timestamps: MonthRange(start, len(values)),
		Values:     values,
	}
}

// MonthStart truncates t to the first instant of its month in UTC.
func MonthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// MonthRange returns n consecutive month starts beginning at start's month.
func MonthRange(start time.Time, n int) []time.Time {
	if n <= 0 {
		return []time.Time{}
	}
	first := MonthStart(start)
	out := make([]time.Time, n)
	for i := range out {
		out[i] = first.AddDate(0, i, 0)
	}
	return out
}

// ParseMonth parses "2013-01", "2013-01-15" or "1/1/2013" into a month start.
func ParseMonth(s string) (time.Time, error) {
	for _, layout := range []string{"2006-01", "2006-01-02", "1/2/2006", "1/2006", "Jan 2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return MonthStart(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("parse month %q: unrecognised format", s)
}

// Validate checks the series is non-empty, finite, gapless monthly and, when
// periods > 0, exactly periods long.
func (s *Series) Validate(periods int) error {
	if s == nil || len(s.Values) == 0 {
		return fmt.Errorf("%w: empty series", ErrInvalidSeries)
	}
	if periods > 0 && len(s.Values) != periods {
		return fmt.Errorf("%w: got %d observations, want %d periods", ErrInvalidSeries, len(s.Values), periods)
	}
	if len(s.Timestamps) != len(s.Values) {
		return fmt.Errorf("%w: %d timestamps for %d values", ErrInvalidSeries, len(s.Timestamps), len(s.Values))
	}
	for i, v := range s.Values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite value at %s", ErrInvalidSeries, s.Timestamps[i].Format("2006-01"))
		}
	}
	for i, ts := range s.Timestamps {
		if !ts.Equal(MonthStart(ts)) {
			return fmt.Errorf("%w: index %d (%s) is not a month start", ErrInvalidSeries, i, ts)
		}
		if i == 0 {
			continue
		}
		if want := s.Timestamps[i-1].AddDate(0, 1, 0); !ts.Equal(want) {
			return fmt.Errorf("%w: index %d is %s, want %s", ErrInvalidSeries, i, ts.Format("2006-01"), want.Format("2006-01"))
		}
	}
	return nil
}

// Len returns the length of the series.
func (s *Series) Len() int {
	return len(s.Values)
}

// Start returns the first period, or the zero time for an empty series.
func (s *Series) Start() time.Time {
	if len(s.Timestamps) == 0 {
		return time.Time{}
	}
	return s.Timestamps[0]
}

// End returns the last period, or the zero time for an empty series.
func (s *Series) End() time.Time {
	if len(s.Timestamps) == 0 {
		return time.Time{}
	}
	return s.Timestamps[len(s.Timestamps)-1]
}

// Future returns the h periods following the end of the series.
func (s *Series) Future(h int) []time.Time {
	if len(s.Timestamps) == 0 || h <= 0 {
		return []time.Time{}
	}
	return MonthRange(s.End().AddDate(0, 1, 0), h)
}

// Diff calculates the first difference of the series.
func (s *Series) Diff() *Series {
	return s.lagDiff(1, "_diff")
}

// SeasonalDiff calculates the difference at lag m.
func (s *Series) SeasonalDiff(m int) *Series {
	return s.lagDiff(m, "_sdiff")
}

func (s *Series) lagDiff(lag int, suffix string) *Series {
	if lag <= 0 || len(s.Values) <= lag {
		return &Series{Name: s.Name + suffix, Timestamps: []time.Time{}, Values: []float64{}}
	}

	values := make([]float64, len(s.Values)-lag)
	for i := lag; i < len(s.Values); i++ {
		values[i-lag] = s.Values[i] - s.Values[i-lag]
	}

	timestamps := make([]time.Time, len(values))
	if len(s.Timestamps) == len(s.Values) {
		copy(timestamps, s.Timestamps[lag:])
	}

	return &Series{
		Name:       s.Name + suffix,
		Timestamps: timestamps,
		Values:     values,
	}
}

package sarima

import "fmt"

// Order is the non-seasonal (p, d, q) order.
type Order struct {
	P int // AR order
	D int // differencing order
	Q int // MA order
}

// SeasonalOrder is the seasonal (P, D, Q, m) order.
type SeasonalOrder struct {
	P int // seasonal AR order
	D int // seasonal differencing order
	Q int // seasonal MA order
	M int // period, 12 for monthly data with yearly seasonality
}

func (o Order) String() string {
	return fmt.Sprintf("(%d,%d,%d)", o.P, o.D, o.Q)
}

func (s SeasonalOrder) String() string {
	return fmt.Sprintf("(%d,%d,%d)[%d]", s.P, s.D, s.Q, s.M)
}

// Spec returns the conventional SARIMA(p,d,q)(P,D,Q)[m] label.
func Spec(o Order, s SeasonalOrder) string {
	return "SARIMA" + o.String() + s.String()
}

func validateOrder(o Order, s SeasonalOrder) error {
	if o.P < 0 || o.D < 0 || o.Q < 0 || s.P < 0 || s.D < 0 || s.Q < 0 {
		return fmt.Errorf("%w: negative order in %s", ErrInvalidOrder, Spec(o, s))
	}
	seasonalTerms := s.P + s.D + s.Q
	if seasonalTerms > 0 && s.M < 2 {
		return fmt.Errorf("%w: seasonal terms need a period >= 2, got %d", ErrInvalidOrder, s.M)
	}
	return nil
}

// lagSpan is the number of differenced observations consumed before the
// first conditional prediction.
func lagSpan(o Order, s SeasonalOrder) int {
	return max(o.P, o.Q, s.P*s.M, s.Q*s.M)
}

// numParams counts ARMA coefficients plus the mean and the innovation variance.
func numParams(o Order, s SeasonalOrder) int {
	return o.P + o.Q + s.P + s.Q + 2
}

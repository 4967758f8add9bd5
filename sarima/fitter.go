package sarima

import (
	"context"

	"github.com/sartorproj/ridecast/timeseries"
)

// Fitter scores a candidate order by the AICc of its fit. It is the fitter
// used by the order selector.
type Fitter struct{}

// FitScore fits the model and returns its AICc.
func (Fitter) FitScore(ctx context.Context, series *timeseries.Series, order Order, seasonal SeasonalOrder) (float64, error) {
	r, err := Fit(ctx, series, order, seasonal)
	if err != nil {
		return 0, err
	}
	return r.AICc, nil
}

// Package orderselect searches a grid of non-seasonal (p, q) orders for the
// seasonal ARIMA model with the lowest AICc.
//
//	sel, err := orderselect.SelectBestOrder(ctx, series, orderselect.DefaultGrid(), sarima.Fitter{})
//	switch {
//	case errors.Is(err, orderselect.ErrInvalidInput):
//	    // nothing was fitted
//	case errors.Is(err, orderselect.ErrNoViableModel):
//	    // every cell failed; sel.Table holds the reasons
//	case err != nil:
//	    return err
//	}
//	fmt.Println(sel.Table)
//
// A cell whose fit fails is kept in the table as unavailable and never
// selected. Among available cells the smallest AICc wins, and equal scores
// resolve to the cell visited first with p as the outer loop.
//
// WithWorkers fits cells concurrently without changing the outcome.
package orderselect

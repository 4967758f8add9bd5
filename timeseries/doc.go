// Package timeseries provides the monthly Series type used by the fitters and
// the order selector.
//
// A Series pairs observations with a gapless monthly index:
//
//	start, _ := timeseries.ParseMonth("2013-01")
//	series := timeseries.NewMonthly(start, values)
//	if err := series.Validate(84); err != nil {
//	    // errors.Is(err, timeseries.ErrInvalidSeries)
//	}
//
// # Loading from CSV
//
// The default options read the second column of a headed file, matching an
// export of monthly aggregates with an unnamed index column:
//
//	opts := timeseries.DefaultCSVOptions()
//	opts.Start = start
//	series, err := timeseries.LoadCSV("rides_monthly_aggregate.csv", opts)
//
// Select a column by header name instead:
//
//	opts.ValueColumn = "rides"
//
// # Transformations
//
//	diff := series.Diff()             // first difference
//	sdiff := series.SeasonalDiff(12)  // seasonal difference
//	next := series.Future(12)         // month labels for a 12-step forecast
package timeseries

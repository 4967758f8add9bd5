// ridecast - monthly ride count analysis
//
// Usage:
//
//	ridecast [--config ridecast.yaml] [run]
//	ridecast grid --data rides.csv
//	ridecast history --db runs.db
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/urfave/cli/v2"

	"github.com/sartorproj/ridecast/analysis"
	"github.com/sartorproj/ridecast/config"
	"github.com/sartorproj/ridecast/logging"
	"github.com/sartorproj/ridecast/metrics"
	"github.com/sartorproj/ridecast/orderselect"
	"github.com/sartorproj/ridecast/sarima"
	"github.com/sartorproj/ridecast/store"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "ridecast",
		Usage:   "Holt-Winters and seasonal ARIMA analysis of monthly ride counts",
		Version: fmt.Sprintf("%s (commit: %s)", version, commit),

		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "ridecast.yaml",
				Usage:   "Path to YAML config (missing file uses defaults)",
				EnvVars: []string{"RIDECAST_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level (debug, info, warn, error)",
			},
			&cli.StringFlag{
				Name:  "data",
				Usage: "CSV file with the monthly series",
			},
			&cli.StringFlag{
				Name:  "out",
				Usage: "Directory for charts",
			},
			&cli.StringFlag{
				Name:  "db",
				Usage: "SQLite database for run history",
			},
		},

		Action: runAnalysis,
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "Run the full analysis (default)",
				Action: runAnalysis,
			},
			{
				Name:   "grid",
				Usage:  "Load the series and print the order selection table",
				Action: runGrid,
			},
			{
				Name:  "history",
				Usage: "List past runs from the database",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Value: 20,
						Usage: "Number of runs to show",
					},
					&cli.StringFlag{
						Name:  "run",
						Usage: "Show the grid and forecast of one run",
					},
				},
				Action: runHistory,
			},
		},
	}
}

// setup loads config, applies global flag overrides and builds the logger.
func setup(c *cli.Context) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, nil, err
	}
	if v := c.String("data"); v != "" {
		cfg.Data.Path = v
	}
	if v := c.String("out"); v != "" {
		cfg.Output.Dir = v
	}
	if v := c.String("db"); v != "" {
		cfg.Output.Database = v
	}
	if v := c.String("log-level"); v != "" {
		cfg.Log.Level = v
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format, c.App.ErrWriter)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func openStore(c *cli.Context, cfg *config.Config, logger *slog.Logger) (*store.Store, error) {
	if cfg.Output.Database == "" {
		return nil, nil
	}
	return store.Open(c.Context, cfg.Output.Database, logger)
}

func runAnalysis(c *cli.Context) error {
	cfg, logger, err := setup(c)
	if err != nil {
		return err
	}

	st, err := openStore(c, cfg, logger)
	if err != nil {
		return err
	}
	if st != nil {
		defer st.Close()
	}

	rep, err := analysis.Run(c.Context, cfg, analysis.Deps{
		Logger:  logger,
		Metrics: metrics.New(),
		Store:   st,
	})
	if errors.Is(err, orderselect.ErrNoViableModel) && rep != nil && rep.Selection != nil {
		printReport(c.App.Writer, rep)
	}
	if err != nil {
		return err
	}

	printReport(c.App.Writer, rep)
	return nil
}

func runGrid(c *cli.Context) error {
	cfg, logger, err := setup(c)
	if err != nil {
		return err
	}

	series, err := analysis.LoadSeries(cfg)
	if err != nil {
		return err
	}

	sel, err := analysis.Select(c.Context, cfg, series, analysis.Deps{Logger: logger})
	if errors.Is(err, orderselect.ErrNoViableModel) && sel != nil {
		fmt.Fprint(c.App.Writer, sel.Table)
	}
	if err != nil {
		return err
	}

	fmt.Fprintln(c.App.Writer, "AICc by (p, q), seasonal order", sel.Seasonal)
	fmt.Fprint(c.App.Writer, sel.Table)
	fmt.Fprintf(c.App.Writer, "\nbest: %s AICc=%.2f\n", sarima.Spec(sel.Order, sel.Seasonal), sel.Best.AICc)
	return nil
}

func runHistory(c *cli.Context) error {
	cfg, logger, err := setup(c)
	if err != nil {
		return err
	}
	if cfg.Output.Database == "" {
		return errors.New("no database configured (use --db or output.database)")
	}

	st, err := openStore(c, cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	w := tabwriter.NewWriter(c.App.Writer, 0, 0, 2, ' ', 0)
	defer w.Flush()

	if id := c.String("run"); id != "" {
		run, err := st.GetRun(c.Context, id)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "run\t%s\nmodel\t%s\nstarted\t%s\n\n", run.ID, run.Model, run.StartedAt.Format("2006-01-02 15:04:05"))
		fmt.Fprintln(w, "p\tq\tAICc\terror")
		for _, s := range run.Scores {
			fmt.Fprintf(w, "%d\t%d\t%s\t%s\n", s.P, s.Q, formatFloat(s.AICc), s.Error)
		}
		fmt.Fprintln(w, "\nperiod\tpoint\tlower\tupper")
		for _, f := range run.Forecasts {
			fmt.Fprintf(w, "%s\t%.0f\t%.0f\t%.0f\n", f.Period.Format("2006-01"), f.Point, f.Lower, f.Upper)
		}
		return nil
	}

	runs, err := st.ListRuns(c.Context, c.Int("limit"))
	if err != nil {
		return err
	}
	fmt.Fprintln(w, "ID\tSTARTED\tOBS\tMODEL\tAICc\tLJUNG-BOX p\tADF p\tKPSS p\tDURATION")
	for _, r := range runs {
		model := r.Model
		if model == "" {
			model = "none"
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.StartedAt.Format("2006-01-02 15:04"), r.NObs, model,
			formatFloat(r.BestAICc), formatFloat(r.LjungBoxP),
			formatFloat(r.ADFP), formatFloat(r.KPSSP), r.Duration)
	}
	return nil
}

func printReport(w io.Writer, rep *analysis.Report) {
	hw := rep.HoltWinters.Params
	fmt.Fprintf(w, "run %s: %d months %s to %s\n\n", rep.RunID, rep.Series.Len(),
		rep.Series.Start().Format("2006-01"), rep.Series.End().Format("2006-01"))

	printStationarity(w, rep.Stationarity)

	fmt.Fprintf(w, "Holt-Winters: alpha=%.4f beta=%.4f gamma=%.4f AICc=%.2f\n\n",
		hw.Alpha, hw.Beta, hw.Gamma, rep.HoltWinters.AICc)

	fmt.Fprintln(w, "AICc by (p, q), seasonal order", rep.Selection.Seasonal)
	fmt.Fprint(w, rep.Selection.Table)

	sum := rep.Summary
	if sum == nil {
		fmt.Fprintln(w, "\nno viable order")
		return
	}
	fmt.Fprintf(w, "\nselected %s AICc=%.2f BIC=%.2f\n", sum.Spec, sum.AICc, sum.BIC)
	if lb := sum.LjungBox; lb != nil {
		fmt.Fprintf(w, "Ljung-Box Q(%d)=%.2f p=%.3f\n", lb.Lags, lb.Statistic, lb.PValue)
	}
	fmt.Fprintf(w, "residual ACF significant lags: %s\n", formatLags(rep.ResidualACF.SignificantLags()))
	fmt.Fprintf(w, "residual PACF significant lags: %s\n", formatLags(rep.ResidualPACF.SignificantLags()))

	fc := rep.Forecast
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "\nperiod\tforecast\t%.0f%% lower\tupper\t\n", fc.Confidence*100)
	for i := range fc.Point {
		fmt.Fprintf(tw, "%s\t%.0f\t%.0f\t%.0f\t\n", fc.Periods[i].Format("2006-01"), fc.Point[i], fc.Lower[i], fc.Upper[i])
	}
	tw.Flush()

	if len(rep.Charts) > 0 {
		fmt.Fprintf(w, "\ncharts:\n  %s\n", strings.Join(rep.Charts, "\n  "))
	}
}

func printStationarity(w io.Writer, s analysis.Stationarity) {
	if adf := s.ADF; adf != nil {
		fmt.Fprintf(w, "ADF  stat=%.3f p=%.3f stationary=%t\n", adf.Statistic, adf.PValue, adf.IsStationary)
	}
	if kpss := s.KPSS; kpss != nil {
		fmt.Fprintf(w, "KPSS stat=%.3f p=%.3f stationary=%t\n", kpss.Statistic, kpss.PValue, kpss.IsStationary)
	}
	fmt.Fprintf(w, "ndiffs=%d nsdiffs=%d seasonal strength=%.2f\n\n", s.NDiffs, s.NSDiffs, s.SeasonalStrength)
}

func formatLags(lags []int) string {
	if len(lags) == 0 {
		return "none"
	}
	parts := make([]string, len(lags))
	for i, l := range lags {
		parts[i] = strconv.Itoa(l)
	}
	return strings.Join(parts, " ")
}

func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", v)
}

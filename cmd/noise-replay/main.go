package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ducminhle1904/noise-engine/internal/engine"
	coreerrors "github.com/ducminhle1904/noise-engine/internal/errors"
	"github.com/ducminhle1904/noise-engine/internal/logger"
	"github.com/ducminhle1904/noise-engine/internal/monitoring"
	"github.com/ducminhle1904/noise-engine/pkg/config"
	"github.com/ducminhle1904/noise-engine/pkg/data"
	"github.com/ducminhle1904/noise-engine/pkg/reporting"
	"github.com/ducminhle1904/noise-engine/pkg/types"
)

func main() {
	os.Exit(execute(os.Args[1:], os.Stdout))
}

// execute runs the replay and returns the process exit code. Every exit path
// returns through here so deferred cleanup always runs.
func execute(args []string, stdout io.Writer) int {
	fs := flag.NewFlagSet("noise-replay", flag.ContinueOnError)
	var (
		configFile = fs.String("config", "", "Path to a YAML/JSON config file")
		envFile    = fs.String("env", ".env", "Path to a .env file (optional)")
		dataFile   = fs.String("data", "", "CSV bars file (overrides replay.data_file)")
		symbol     = fs.String("symbol", "", "Symbol to replay (overrides replay.symbol)")
		reportFile = fs.String("report", "", "Write an xlsx report to this path")
		quiet      = fs.Bool("quiet", false, "Skip the console tables")
	)
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if err := config.LoadEnv(*envFile); err != nil {
		if !coreerrors.IsNotFound(err) || *envFile != ".env" {
			log.Printf("Failed to load env file: %v", err)
			return 1
		}
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Printf("Failed to load config: %v", err)
		return 1
	}
	if *dataFile != "" {
		cfg.Replay.DataFile = *dataFile
	}
	if *symbol != "" {
		cfg.Replay.Symbol = *symbol
	}
	if *reportFile != "" {
		cfg.Replay.ReportFile = *reportFile
	}
	if cfg.Replay.DataFile == "" {
		log.Print("No data file given: set replay.data_file or pass -data")
		return 1
	}

	lg := logger.New(cfg.Logging)
	defer lg.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Metrics.Enabled {
		srv := startMetricsServer(cfg.Metrics.Listen, lg)
		defer shutdown(srv)
	}

	rep, err := run(ctx, cfg, lg)
	if err != nil {
		lg.LogError("replay", err)
		log.Printf("Replay failed: %v", err)
		return 1
	}

	if !*quiet {
		reporting.NewConsoleReporter(stdout).Render(rep)
	}
	if cfg.Replay.ReportFile != "" {
		if err := reporting.WriteWorkbook(cfg.Replay.ReportFile, rep); err != nil {
			lg.LogError("report", err)
			log.Printf("Failed to write report: %v", err)
			return 1
		}
		fmt.Fprintf(stdout, "Report saved to %s\n", cfg.Replay.ReportFile)
	}
	return 0
}

// run walks the bars in order, feeding the engine one bar at a time and
// executing admitted signals against a paper book
func run(ctx context.Context, cfg config.Config, lg *logger.Logger) (reporting.Report, error) {
	rc := cfg.Replay
	assetClass, _ := types.ParseAssetClass(rc.AssetClass)

	bars, err := data.NewCSVProvider(data.DefaultCSVFormat, lg.Component("data")).LoadBars(rc.DataFile)
	if err != nil {
		return reporting.Report{}, err
	}

	var now time.Time
	eng, err := engine.New(cfg.Engine(),
		engine.WithClock(func() time.Time { return now }),
		engine.WithLogger(lg))
	if err != nil {
		return reporting.Report{}, err
	}
	paper := engine.NewPaperBook(rc.InitialCash)

	lg.Status("replay started",
		"symbol", rc.Symbol,
		"timeframe", rc.Timeframe,
		"bars", len(bars),
		"from", bars[0].Timestamp,
		"to", bars[len(bars)-1].Timestamp)

	var decisions []engine.Decision
	for i, bar := range bars {
		if ctx.Err() != nil {
			lg.Warning("replay interrupted", "bar", i)
			break
		}
		now = bar.Timestamp
		prices := map[string]float64{rc.Symbol: bar.Close}

		for _, exit := range eng.OnPrices(prices) {
			if _, err := paper.Close(exit.PositionID, exit.Price, now); err != nil {
				lg.LogError("paper close", err)
				continue
			}
			if _, err := eng.Close(exit.PositionID, exit.Price); err != nil {
				lg.LogError("engine close", err)
			}
		}
		paper.Mark(prices, now)

		batch := eng.OnBars(rc.Symbol, assetClass, rc.Timeframe, data.Window(bars, i, rc.Window), paper.Account())
		decisions = append(decisions, batch...)

		// Only the first admitted signal fills; the rest were sized against the
		// pre-fill account
		for _, d := range batch {
			if !d.Evaluation.Allowed() {
				continue
			}
			pos, err := paper.Open(d.Signal, *d.Evaluation.PositionSize, now)
			if err != nil {
				lg.LogError("paper open", err)
				break
			}
			if err := eng.OnFill(pos, d.Signal.StopLoss); err != nil {
				lg.LogError("engine fill", err)
				break
			}
			if err := eng.MarkExecuted(d.Signal.ID); err != nil {
				lg.LogError("mark executed", err)
			}
			break
		}
	}

	account := paper.Account()
	results := paper.Results()
	lg.Status("replay finished",
		"signals", len(decisions),
		"trades", len(results.Trades),
		"end_equity", results.EndEquity)

	return reporting.Report{
		Symbol:    rc.Symbol,
		Timeframe: rc.Timeframe,
		Decisions: decisions,
		Stops:     eng.Stops().GetRecords(),
		Analysis:  eng.Analyze(account),
		Risk:      eng.Risk().Breaker().State(),
		Results:   results,
	}, nil
}

func startMetricsServer(addr string, lg *logger.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", monitoring.NewMetricsHandler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		lg.Info("metrics server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.LogError("metrics server", err)
		}
	}()
	return srv
}

func shutdown(srv *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
}

/*
main.go - Application entry point

PURPOSE:
  Command-line front end of the margin engine: runs the HTTP server, seeds
  demo datasets, runs ad hoc queries and prints ranked risk alerts.

COMMANDS:
  serve    Start the HTTP API (optionally the periodic risk scanner)
  seed     Replace database contents with an embedded dataset
  query    Run one read-only SELECT and print the rows
  alerts   Print ranked risk alerts

GLOBAL FLAGS (override config file and MARGIN_* environment):
  --config      Config file (yaml, json or toml)
  --db-driver   sqlite3 | postgres
  --db-dsn      SQLite path (":memory:" for in-memory) or postgres URL
  --log-level   debug, info, warn, error
  --log-format  json | text

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the risk scanner
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection

EXAMPLES:
  # Demo server on an in-memory database
  ./server --db-dsn=":memory:" serve --scenario morrison-portfolio

  # Production
  MARGIN_DB_DRIVER=postgres MARGIN_DB_DSN=postgres://... ./server serve --scan

  # One-off queries
  ./server query "SELECT project_id, status FROM change_orders"
  ./server alerts --format table

SEE ALSO:
  - api/server.go: Router configuration
  - config/config.go: Configuration keys
  - store/sqlstore/sqlstore.go: Database implementation
*/
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"github.com/warp/margin-engine/api"
	"github.com/warp/margin-engine/config"
	"github.com/warp/margin-engine/fixture"
	"github.com/warp/margin-engine/margin"
	"github.com/warp/margin-engine/store/sqlstore"
)

var version = "dev"

func main() {
	// Amounts are JSON numbers, not strings, in API responses and CLI output.
	decimal.MarshalJSONWithoutQuotes = true

	app := &cli.App{
		Name:    "margin",
		Usage:   "Margin analytics and risk detection for construction projects",
		Version: version,

		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file",
			},
			&cli.StringFlag{
				Name:  "db-driver",
				Usage: "Database driver (sqlite3, postgres)",
			},
			&cli.StringFlag{
				Name:  "db-dsn",
				Usage: "Database path or connection URL",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level (debug, info, warn, error)",
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "Log format (json, text)",
			},
		},

		Commands: []*cli.Command{
			serveCommand(),
			seedCommand(),
			queryCommand(),
			alertsCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// =============================================================================
// SETUP
// =============================================================================

type runtime struct {
	cfg   *config.Config
	log   *logrus.Logger
	store *sqlstore.Store
}

// setup loads config, applies flag overrides and opens the store.
func setup(c *cli.Context) (*runtime, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	if c.IsSet("db-driver") {
		cfg.DB.Driver = c.String("db-driver")
	}
	if c.IsSet("db-dsn") {
		cfg.DB.DSN = c.String("db-dsn")
	}
	if c.IsSet("log-level") {
		cfg.Log.Level = c.String("log-level")
	}
	if c.IsSet("log-format") {
		cfg.Log.Format = c.String("log-format")
	}
	if c.IsSet("port") {
		cfg.HTTP.Port = c.Int("port")
	}
	if c.IsSet("scan") {
		cfg.Scanner.Enabled = c.Bool("scan")
	}
	if c.IsSet("scan-interval") {
		cfg.Scanner.Interval = c.Duration("scan-interval")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logg, err := config.NewLogger(cfg.Log)
	if err != nil {
		return nil, err
	}

	dialect, err := sqlstore.ParseDialect(cfg.DB.Driver)
	if err != nil {
		return nil, err
	}
	store, err := sqlstore.Open(dialect, cfg.DB.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	ctx, cancel := context.WithTimeout(c.Context, 5*time.Second)
	defer cancel()
	if err := store.Ping(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("database unreachable: %w", err)
	}
	return &runtime{cfg: cfg, log: logg, store: store}, nil
}

func (rt *runtime) engine() *margin.Engine {
	return margin.NewEngine(rt.store, margin.WithLogger(rt.log))
}

// =============================================================================
// SERVE COMMAND
// =============================================================================

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the HTTP API server",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "HTTP server port",
			},
			&cli.BoolFlag{
				Name:  "scan",
				Usage: "Run the periodic risk scanner",
			},
			&cli.DurationFlag{
				Name:  "scan-interval",
				Usage: "Risk scanner interval",
			},
			&cli.StringFlag{
				Name:  "scenario",
				Usage: "Load an embedded dataset before serving",
			},
		},
		Action: runServe,
	}
}

func runServe(c *cli.Context) error {
	rt, err := setup(c)
	if err != nil {
		return err
	}
	defer rt.store.Close()

	if id := c.String("scenario"); id != "" {
		if _, err := fixture.Load(c.Context, rt.store, id); err != nil {
			return err
		}
		rt.log.WithField("scenario", id).Info("scenario loaded")
	}

	engine := rt.engine()
	handler := api.NewHandler(engine, rt.store, rt.log)
	router := api.NewRouter(handler, rt.cfg.HTTP.CORSOrigins)

	scanner := api.NewRiskScanner(engine, rt.log)
	scanner.Enabled = rt.cfg.Scanner.Enabled
	scanner.Interval = rt.cfg.Scanner.Interval
	handler.Scanner = scanner
	scanner.Start()
	defer scanner.Stop()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", rt.cfg.HTTP.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	serveErr := make(chan error, 1)
	go func() {
		rt.log.WithFields(logrus.Fields{
			"port":   rt.cfg.HTTP.Port,
			"driver": rt.store.Dialect(),
		}).Info("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err, ok := <-serveErr:
		if ok {
			return fmt.Errorf("server failed: %w", err)
		}
	}

	rt.log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	rt.log.Info("server stopped")
	return nil
}

// =============================================================================
// SEED COMMAND
// =============================================================================

func seedCommand() *cli.Command {
	return &cli.Command{
		Name:      "seed",
		Usage:     "Replace database contents with an embedded dataset",
		ArgsUsage: "[scenario]",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "list",
				Usage: "List available datasets",
			},
		},
		Action: runSeed,
	}
}

func runSeed(c *cli.Context) error {
	if c.Bool("list") {
		scenarios, err := fixture.List()
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(c.App.Writer, 0, 0, 2, ' ', 0)
		for _, s := range scenarios {
			fmt.Fprintf(w, "%s\t%s\n", s.ID, s.Description)
		}
		return w.Flush()
	}

	id := c.Args().First()
	if id == "" {
		id = "morrison-portfolio"
	}

	rt, err := setup(c)
	if err != nil {
		return err
	}
	defer rt.store.Close()

	ds, err := fixture.Load(c.Context, rt.store, id)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Loaded %s: %d projects, %d labor entries, %d change orders\n",
		ds.ID, len(ds.Records.Contracts), len(ds.Records.LaborEntries), len(ds.Records.ChangeOrders))
	return nil
}

// =============================================================================
// QUERY COMMAND
// =============================================================================

func queryCommand() *cli.Command {
	return &cli.Command{
		Name:      "query",
		Usage:     "Run one read-only SELECT",
		ArgsUsage: "<sql>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Value:   "table",
				Usage:   "Output format (table, json)",
			},
		},
		Action: runQuery,
	}
}

func runQuery(c *cli.Context) error {
	q := strings.Join(c.Args().Slice(), " ")

	rt, err := setup(c)
	if err != nil {
		return err
	}
	defer rt.store.Close()

	res, err := rt.engine().Query(c.Context, q)
	if err != nil {
		return err
	}

	if c.String("format") == "json" {
		return writeJSON(c.App.Writer, res)
	}
	w := tabwriter.NewWriter(c.App.Writer, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join(res.Columns, "\t"))
	for _, row := range res.Rows {
		cells := make([]string, len(res.Columns))
		for i, col := range res.Columns {
			cells[i] = fmt.Sprint(row[col])
		}
		fmt.Fprintln(w, strings.Join(cells, "\t"))
	}
	fmt.Fprintf(w, "(%d rows)\n", res.RowCount)
	return w.Flush()
}

// =============================================================================
// ALERTS COMMAND
// =============================================================================

func alertsCommand() *cli.Command {
	return &cli.Command{
		Name:  "alerts",
		Usage: "Print ranked risk alerts",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "project",
				Usage: "Only alerts for this project",
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Value:   "table",
				Usage:   "Output format (table, json)",
			},
		},
		Action: runAlerts,
	}
}

func runAlerts(c *cli.Context) error {
	rt, err := setup(c)
	if err != nil {
		return err
	}
	defer rt.store.Close()

	alerts, err := rt.engine().RiskAlerts(c.Context)
	if err != nil {
		return err
	}
	if p := margin.ProjectID(c.String("project")); p != "" {
		kept := alerts[:0]
		for _, a := range alerts {
			if a.ProjectID == p {
				kept = append(kept, a)
			}
		}
		alerts = kept
	}

	if c.String("format") == "json" {
		return writeJSON(c.App.Writer, alerts)
	}
	summary := api.Summarize(alerts)
	w := tabwriter.NewWriter(c.App.Writer, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SEVERITY\tTYPE\tPROJECT\tAMOUNT\tMESSAGE")
	for _, a := range alerts {
		amount, _ := a.Amount.Round(2).Float64()
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			a.Severity, a.Type, a.ProjectID, humanize.CommafWithDigits(amount, 2), a.Message)
	}
	fmt.Fprintf(w, "\n%d alerts (%d high, %d medium, %d low)\n", summary.Total,
		summary.BySeverity[margin.SeverityHigh], summary.BySeverity[margin.SeverityMedium],
		summary.BySeverity[margin.SeverityLow])
	return w.Flush()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

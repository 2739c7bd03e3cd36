// taxcalc CLI - progressive slab income tax calculator
//
// Usage:
//
//	taxcalc compute --income 1200000 --regime new --salaried
//	taxcalc compare --income 1500000 --regime old --itemized 150000
//	taxcalc schedules import --file schedules.yaml --store postgres
//	taxcalc serve --port 8080
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"income-tax/internal/logging"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	// A missing .env is fine; real environment variables still apply
	_ = godotenv.Load()

	app := newApp(os.Stdin, os.Stdout, os.Stderr)
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newApp(stdin io.Reader, stdout, stderr io.Writer) *cli.App {
	return &cli.App{
		Name:      "taxcalc",
		Usage:     "Progressive slab-based income tax calculator",
		Version:   fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		Reader:    stdin,
		Writer:    stdout,
		ErrWriter: stderr,

		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				Usage:   "Log level (trace, debug, info, warn, error)",
				EnvVars: []string{"TAXCALC_LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "log-format",
				Value:   "auto",
				Usage:   "Log format (auto, console, json)",
				EnvVars: []string{"TAXCALC_LOG_FORMAT"},
			},
			&cli.StringFlag{
				Name:    "schedule-source",
				Value:   sourceBuiltin,
				Usage:   "Where tax schedules come from (builtin, file, clickhouse, postgres)",
				EnvVars: []string{"TAXCALC_SCHEDULE_SOURCE"},
			},
			&cli.StringFlag{
				Name:    "schedule-file",
				Usage:   "YAML schedule document, used with --schedule-source file",
				EnvVars: []string{"TAXCALC_SCHEDULE_FILE"},
			},
			&cli.StringFlag{
				Name:    "clickhouse-host",
				Value:   "localhost",
				Usage:   "ClickHouse host",
				EnvVars: []string{"CLICKHOUSE_HOST"},
			},
			&cli.IntFlag{
				Name:    "clickhouse-port",
				Value:   9000,
				Usage:   "ClickHouse native port",
				EnvVars: []string{"CLICKHOUSE_PORT"},
			},
			&cli.StringFlag{
				Name:    "clickhouse-database",
				Value:   "taxcalc",
				Usage:   "ClickHouse database",
				EnvVars: []string{"CLICKHOUSE_DATABASE"},
			},
			&cli.StringFlag{
				Name:    "clickhouse-user",
				Value:   "default",
				Usage:   "ClickHouse user",
				EnvVars: []string{"CLICKHOUSE_USER"},
			},
			&cli.StringFlag{
				Name:    "clickhouse-password",
				Value:   "",
				Usage:   "ClickHouse password",
				EnvVars: []string{"CLICKHOUSE_PASSWORD"},
			},
			&cli.StringFlag{
				Name:    "postgres-dsn",
				Usage:   "PostgreSQL DSN for the schedule store",
				EnvVars: []string{"POSTGRES_DSN"},
			},
		},

		Before: func(c *cli.Context) error {
			return logging.Setup(c.String("log-level"), c.String("log-format"))
		},

		Commands: []*cli.Command{
			computeCommand(),
			compareCommand(),
			regimesCommand(),
			schedulesCommand(),
			serveCommand(),
		},
	}
}

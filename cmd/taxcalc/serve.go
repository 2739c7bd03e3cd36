package main

import (
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"income-tax/api"
	"income-tax/decision/tax"
)

// =============================================================================
// SERVE COMMAND (API SERVER)
// =============================================================================

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the tax calculator API server",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Value:   8080,
				Usage:   "API server port",
				EnvVars: []string{"TAXCALC_PORT"},
			},
			&cli.StringFlag{
				Name:    "cors-origins",
				Value:   "*",
				Usage:   "Comma-separated list of allowed CORS origins",
				EnvVars: []string{"TAXCALC_CORS_ORIGINS"},
			},
			&cli.DurationFlag{
				Name:    "request-timeout",
				Value:   30 * time.Second,
				Usage:   "Per-request timeout",
				EnvVars: []string{"TAXCALC_REQUEST_TIMEOUT"},
			},
			&cli.StringFlag{
				Name:    "currency-code",
				Usage:   "Print amounts with a currency code instead of the rupee sign, e.g. INR",
				EnvVars: []string{"TAXCALC_CURRENCY_CODE"},
			},
		},
		Action: runServe,
	}
}

func runServe(c *cli.Context) error {
	registry, store, err := loadRegistry(c)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	// Parse CORS origins
	corsOrigins := strings.Split(c.String("cors-origins"), ",")
	for i := range corsOrigins {
		corsOrigins[i] = strings.TrimSpace(corsOrigins[i])
	}

	config := api.DefaultConfig()
	config.Port = c.Int("port")
	config.CORSOrigins = corsOrigins
	config.RequestTimeout = c.Duration("request-timeout")
	if sym := reportOptions(c).CurrencySymbol; sym != "" {
		config.CurrencySymbol = sym
	}

	server, err := api.NewServer(tax.NewCalculator(registry), config)
	if err != nil {
		return err
	}
	if store != nil {
		server.WithStore(store)
	}

	return server.StartWithGracefulShutdown()
}

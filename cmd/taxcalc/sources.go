package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"income-tax/db"
	"income-tax/db/clickhouse"
	"income-tax/db/postgres"
	"income-tax/decision/schedule"
	"income-tax/decision/tax"
)

const (
	sourceBuiltin    = "builtin"
	sourceFile       = "file"
	sourceClickHouse = "clickhouse"
	sourcePostgres   = "postgres"
)

// scheduleStore is a snapshot backend the CLI can manage
type scheduleStore interface {
	db.Store
	EnsureSchema(ctx context.Context) error
	Load(ctx context.Context) ([]tax.Schedule, error)
	Ping(ctx context.Context) error
	Close() error
}

// openStore connects to a snapshot backend by name
func openStore(c *cli.Context, backend string) (scheduleStore, error) {
	switch strings.ToLower(backend) {
	case sourceClickHouse:
		store, err := clickhouse.NewStore(&clickhouse.Config{
			Host:     c.String("clickhouse-host"),
			Port:     c.Int("clickhouse-port"),
			Database: c.String("clickhouse-database"),
			Username: c.String("clickhouse-user"),
			Password: c.String("clickhouse-password"),
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	case sourcePostgres:
		cfg := postgres.DefaultConfig()
		if dsn := c.String("postgres-dsn"); dsn != "" {
			cfg.DSN = dsn
		}
		store, err := postgres.Open(cfg)
		if err != nil {
			return nil, err
		}
		return store, nil
	}
	return nil, fmt.Errorf("unknown schedule store %q (clickhouse, postgres)", backend)
}

// loadRegistry builds the schedule registry from --schedule-source. The returned
// store is non-nil for database sources and must be closed by the caller.
func loadRegistry(c *cli.Context) (*tax.Registry, scheduleStore, error) {
	ctx := c.Context
	source := strings.ToLower(c.String("schedule-source"))

	var (
		src   schedule.Source
		store scheduleStore
	)
	switch source {
	case sourceBuiltin, "":
		return tax.DefaultRegistry(), nil, nil
	case sourceFile:
		path := c.String("schedule-file")
		if path == "" {
			return nil, nil, fmt.Errorf("--schedule-file is required with --schedule-source file")
		}
		src = schedule.FileSource{Path: path}
	case sourceClickHouse, sourcePostgres:
		var err error
		store, err = openStore(c, source)
		if err != nil {
			return nil, nil, err
		}
		src = store
	default:
		return nil, nil, fmt.Errorf("unknown schedule source %q (builtin, file, clickhouse, postgres)", source)
	}

	registry, err := schedule.Registry(ctx, src)
	if err != nil {
		if store != nil {
			store.Close()
		}
		return nil, nil, err
	}

	log.Debug().Str("source", source).Int("schedules", len(registry.Schedules())).Msg("Loaded tax schedules")
	return registry, store, nil
}

package schedule

import (
	"context"
	"fmt"
	"os"

	"income-tax/decision/tax"
)

// Source provides the schedules a registry is built from
type Source interface {
	Load(ctx context.Context) ([]tax.Schedule, error)
}

// SourceFunc adapts a function to Source
type SourceFunc func(ctx context.Context) ([]tax.Schedule, error)

// Load calls f
func (f SourceFunc) Load(ctx context.Context) ([]tax.Schedule, error) {
	return f(ctx)
}

// Builtin returns the schedules shipped with the engine
func Builtin() Source {
	return SourceFunc(func(context.Context) ([]tax.Schedule, error) {
		return tax.BuiltinSchedules(), nil
	})
}

// Static serves a fixed set of schedules
func Static(schedules ...tax.Schedule) Source {
	return SourceFunc(func(context.Context) ([]tax.Schedule, error) {
		return schedules, nil
	})
}

// FileSource reads schedules from a YAML document on disk
type FileSource struct {
	Path string
}

// Load reads and decodes the document
func (f FileSource) Load(ctx context.Context) ([]tax.Schedule, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	file, err := os.Open(f.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open schedule file: %w", err)
	}
	defer file.Close()

	schedules, err := Decode(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", f.Path, err)
	}
	return schedules, nil
}

// Registry loads the source and indexes its schedules
func Registry(ctx context.Context, src Source) (*tax.Registry, error) {
	schedules, err := src.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load schedules: %w", err)
	}
	registry, err := tax.NewRegistry(schedules...)
	if err != nil {
		return nil, fmt.Errorf("failed to build schedule registry: %w", err)
	}
	return registry, nil
}

package di

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/screener/internal/config"
	"github.com/aristath/screener/internal/screener"
)

// Wire initializes all dependencies and returns a fully configured container.
// Order of operations:
// 1. Catalog
// 2. Parser and compiler
// 3. Storage backend
// 4. Screener service
func Wire(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container := &Container{}

	if err := InitializeCatalog(container, cfg, log); err != nil {
		return nil, err
	}

	InitializeParser(container, cfg, log)

	if err := InitializeCompiler(container, cfg); err != nil {
		return nil, err
	}

	if err := InitializeStore(ctx, container, cfg, log); err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}

	container.Service = screener.NewService(container.Parser, container.Compiler, container.Store, log)

	log.Info().
		Str("backend", container.Store.Backend()).
		Str("dialect", string(container.Compiler.Dialect())).
		Bool("model_parser", container.Model != nil).
		Msg("Dependencies wired")

	return container, nil
}

package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/screener/internal/catalog"
	"github.com/aristath/screener/internal/clients/llm"
	"github.com/aristath/screener/internal/compiler"
	"github.com/aristath/screener/internal/config"
	"github.com/aristath/screener/internal/parser"
)

// InitializeCatalog loads the field catalog, from a YAML file when one is configured
func InitializeCatalog(container *Container, cfg *config.Config, log zerolog.Logger) error {
	if cfg.CatalogFile == "" {
		container.Catalog = catalog.Default()
		return nil
	}

	cat, err := catalog.LoadYAML(cfg.CatalogFile)
	if err != nil {
		return fmt.Errorf("failed to load catalog %s: %w", cfg.CatalogFile, err)
	}
	container.Catalog = cat
	log.Info().Str("file", cfg.CatalogFile).Int("fields", len(cat.Fields())).Msg("Catalog loaded")
	return nil
}

// InitializeParser builds the rule tier and, when enabled, the model tier
func InitializeParser(container *Container, cfg *config.Config, log zerolog.Logger) {
	rules := parser.NewRuleParser(container.Catalog, log)

	if cfg.LLM.Enabled {
		client := llm.NewClient(llm.Config{
			BaseURL: cfg.LLM.BaseURL,
			APIKey:  cfg.LLM.APIKey,
			Model:   cfg.LLM.Model,
			Timeout: cfg.LLM.Timeout,
		}, log)
		container.Model = parser.NewModelParser(client, container.Catalog, log)
		log.Info().Str("model", cfg.LLM.Model).Msg("Model parser enabled")
	}

	container.Parser = parser.NewLayeredParser(rules, container.Model, cfg.LLM.Timeout, log)
}

// InitializeCompiler picks the compiler matching the backend's dialect
func InitializeCompiler(container *Container, cfg *config.Config) error {
	dialect := compiler.DialectSQLite
	switch cfg.Backend {
	case config.BackendPostgres:
		dialect = compiler.DialectPostgres
	case config.BackendLive:
		dialect = compiler.DialectLive
	}

	c, err := compiler.New(container.Catalog, dialect)
	if err != nil {
		return fmt.Errorf("failed to create %s compiler: %w", dialect, err)
	}
	container.Compiler = c
	return nil
}

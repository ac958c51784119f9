// Package di provides dependency injection type definitions.
package di

import (
	"context"

	"github.com/aristath/screener/internal/catalog"
	"github.com/aristath/screener/internal/clients/alphavantage"
	"github.com/aristath/screener/internal/compiler"
	"github.com/aristath/screener/internal/database"
	"github.com/aristath/screener/internal/parser"
	"github.com/aristath/screener/internal/ratelimit"
	"github.com/aristath/screener/internal/screener"
	"github.com/aristath/screener/internal/store"
)

// Pinger reports whether a backend is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// Container holds all dependencies for the application.
// It is created by Wire() and handed to the HTTP server and the CLI.
type Container struct {
	Catalog *catalog.Catalog

	// Parsing
	Parser *parser.LayeredParser
	Model  parser.Parser // nil unless the model tier is enabled

	Compiler compiler.Compiler

	// Storage. Exactly one backend is populated.
	FundamentalsDB *database.DB         // sqlite backend
	Postgres       *store.PostgresStore // postgres backend
	LiveClient     *alphavantage.Client // live backend
	Limiter        *ratelimit.Limiter   // live backend; shared by every provider call
	Store          store.Executor
	Health         Pinger // nil when the backend has no cheap reachability check

	Service *screener.Service
}

// Close releases backend resources
func (c *Container) Close() error {
	if c.Postgres != nil {
		c.Postgres.Close()
	}
	if c.FundamentalsDB != nil {
		return c.FundamentalsDB.Close()
	}
	return nil
}

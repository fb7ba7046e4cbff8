// Package main provides the entry point for the Pangloss graph server.
package main

import (
	"log/slog"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/richardhadden/pangloss/domain/graph"
	"github.com/richardhadden/pangloss/domain/schema"
	"github.com/richardhadden/pangloss/domain/search"
	"github.com/richardhadden/pangloss/internal/config"
	"github.com/richardhadden/pangloss/internal/database"
	"github.com/richardhadden/pangloss/internal/server"
	"github.com/richardhadden/pangloss/pkg/logger"
)

func main() {
	// Load .env if present (for local development). Load() won't
	// overwrite existing vars, Overload() will.
	_ = godotenv.Load(".env")
	_ = godotenv.Overload(".env.local")

	fx.New(
		fx.WithLogger(func(log *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: log}
		}),

		// Infrastructure modules
		logger.Module,
		config.Module,
		database.Module,
		server.Module,

		// Domain modules. Schema loads and finalizes before anything
		// compiles a query; a malformed schema aborts startup.
		schema.Module,
		graph.Module,
		search.Module,
	).Run()
}

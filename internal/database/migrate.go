package database

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"

	"github.com/uptrace/bun"

	"github.com/richardhadden/pangloss/pkg/logger"
)

//go:embed schema.sql
var schemaDDL string

// EnsureSchema applies the store DDL at startup. Every statement is
// idempotent (IF NOT EXISTS), so repeated boots are no-ops.
func EnsureSchema(ctx context.Context, db bun.IDB, log *slog.Logger) error {
	if _, err := db.ExecContext(ctx, schemaDDL); err != nil {
		return fmt.Errorf("apply store schema: %w", err)
	}
	log.Info("store schema ensured", logger.Scope("database"))
	return nil
}

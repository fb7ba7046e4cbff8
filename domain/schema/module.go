package schema

import (
	"log/slog"

	"go.uber.org/fx"

	"github.com/richardhadden/pangloss/internal/config"
)

// Module provides the finalized schema registry, loaded from the configured
// model directory. A malformed schema fails app startup.
var Module = fx.Module("schema",
	fx.Provide(func(cfg *config.Config, log *slog.Logger) (*Registry, error) {
		if cfg.Schema.ModelDir == "" {
			reg := NewRegistry()
			if err := reg.Finalize(); err != nil {
				return nil, err
			}
			return reg, nil
		}
		return LoadDir(cfg.Schema.ModelDir, log)
	}),
)

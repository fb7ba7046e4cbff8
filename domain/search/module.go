package search

import (
	"go.uber.org/fx"
)

// Module provides the full-text search engine.
var Module = fx.Module("search",
	fx.Provide(
		NewRepository,
		NewService,
		NewHandler,
	),
	fx.Invoke(RegisterRoutes),
)

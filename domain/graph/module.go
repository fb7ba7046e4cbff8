package graph

import (
	"go.uber.org/fx"
)

// Module provides the graph store layer: repository, service, deferred
// shortcut worker, and HTTP handlers.
var Module = fx.Module("graph",
	fx.Provide(
		NewRepository,
		NewService,
		NewShortcutWorker,
		NewHandler,
		NewSchemaHandler,
	),
	fx.Invoke(
		RegisterRoutes,
		registerWorkerLifecycle,
	),
)

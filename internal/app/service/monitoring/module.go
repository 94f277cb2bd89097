package monitoring

import "go.uber.org/fx"

// Module exposes the monitoring service via Fx.
var Module = fx.Options(
	fx.Provide(New),
)

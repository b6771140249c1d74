package config

import "go.uber.org/fx"

// Module wires application configuration and the tally policy holder.
var Module = fx.Module("config",
	fx.Provide(
		Load,
		NewTallyPolicyHolder,
	),
)

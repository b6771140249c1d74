package telegram

import "go.uber.org/fx"

var Module = fx.Module("telegram.transport",
	fx.Invoke(Register),
)

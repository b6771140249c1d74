package tally

import (
	"github.com/hivelabs/hivetally/internal/tally/service"
	"go.uber.org/fx"
)

var Module = fx.Module("tally.service",
	fx.Provide(service.New),
)

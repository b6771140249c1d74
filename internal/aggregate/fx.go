package aggregate

import (
	"github.com/hivelabs/hivetally/internal/aggregate/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("aggregate",
	fx.Provide(repository.Provide),
)

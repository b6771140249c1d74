package query

import (
	"github.com/hivelabs/hivetally/internal/query/service"
	"go.uber.org/fx"
)

var Module = fx.Module("query.service",
	fx.Provide(service.New),
)

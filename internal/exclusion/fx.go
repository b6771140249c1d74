package exclusion

import (
	"github.com/hivelabs/hivetally/internal/exclusion/repository"
	"github.com/hivelabs/hivetally/internal/exclusion/service"
	"go.uber.org/fx"
)

var Module = fx.Module("exclusion.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)

package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/hivelabs/hivetally/internal/config"
	"github.com/hivelabs/hivetally/internal/migration"
	"github.com/hivelabs/hivetally/internal/observability"
	"github.com/hivelabs/hivetally/internal/server"
	"github.com/hivelabs/hivetally/internal/telegram"
	"github.com/hivelabs/hivetally/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,

		// Transports and domains
		server.Module,
		telegram.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}

package migration

import (
	aggregatedomain "github.com/hivelabs/hivetally/internal/aggregate/domain"
	"github.com/hivelabs/hivetally/internal/config"
	exclusiondomain "github.com/hivelabs/hivetally/internal/exclusion/domain"
	ledgerdomain "github.com/hivelabs/hivetally/internal/ledger/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType == "postgres" {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			return RunMigrations(sqlDB)
		}

		// mysql and sqlite deployments rely on the model definitions.
		return conn.AutoMigrate(
			&ledgerdomain.MessageRecord{},
			&aggregatedomain.Entry{},
			&exclusiondomain.FrozenUser{},
			&exclusiondomain.Proposal{},
		)
	}),
)

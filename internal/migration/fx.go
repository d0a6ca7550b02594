package migration

import (
	"github.com/bwmarrin/snowflake"
	analyticsdomain "github.com/edgebank/assist/internal/analytics/domain"
	"github.com/edgebank/assist/internal/config"
	convmemdomain "github.com/edgebank/assist/internal/convmem/domain"
	directorydomain "github.com/edgebank/assist/internal/directory/domain"
	feeruledomain "github.com/edgebank/assist/internal/feerule/domain"
	"github.com/edgebank/assist/internal/seed"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Module applies schema migrations on startup and, when enabled, loads the
// demo dataset into an empty database.
var Module = fx.Module("migrations",
	fx.Invoke(Run),
)

func Run(conn *gorm.DB, cfg config.Config, node *snowflake.Node, log *zap.Logger) error {
	if cfg.DBType == "postgres" {
		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		if err := RunMigrations(sqlDB); err != nil {
			return err
		}
	} else {
		// sqlite and mysql deployments skip the versioned SQL and let gorm
		// build the schema. The overlap and duplicate invariants on fee rules
		// are enforced in the repository for every dialect.
		if err := conn.AutoMigrate(
			&feeruledomain.FeeRule{},
			&convmemdomain.Turn{},
			&analyticsdomain.TurnRecord{},
			&directorydomain.Employee{},
		); err != nil {
			return err
		}
	}
	log.Info("schema up to date", zap.String("db_type", cfg.DBType))

	if cfg.SeedDemoData {
		if err := seed.EnsureDemoData(conn, node, log); err != nil {
			return err
		}
	}
	return nil
}

package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/edgebank/assist/internal/analytics"
	"github.com/edgebank/assist/internal/cache"
	"github.com/edgebank/assist/internal/classifier"
	"github.com/edgebank/assist/internal/clock"
	"github.com/edgebank/assist/internal/config"
	"github.com/edgebank/assist/internal/convmem"
	"github.com/edgebank/assist/internal/directory"
	"github.com/edgebank/assist/internal/disambig"
	"github.com/edgebank/assist/internal/feecalc"
	"github.com/edgebank/assist/internal/feerule"
	"github.com/edgebank/assist/internal/llm"
	"github.com/edgebank/assist/internal/logger"
	"github.com/edgebank/assist/internal/migration"
	"github.com/edgebank/assist/internal/observability"
	"github.com/edgebank/assist/internal/orchestrator"
	"github.com/edgebank/assist/internal/ratelimit"
	"github.com/edgebank/assist/internal/retrieval"
	"github.com/edgebank/assist/internal/server"
	"github.com/edgebank/assist/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		logger.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		cache.Module,
		ratelimit.Module,
		migration.Module,

		// Assistant domains
		feerule.Module,
		feecalc.Module,
		disambig.Module,
		retrieval.Module,
		directory.Module,
		classifier.Module,
		convmem.Module,
		analytics.Module,
		llm.Module,
		orchestrator.Module,

		server.Module,
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

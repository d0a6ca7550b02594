package analytics

import (
	"github.com/edgebank/assist/internal/analytics/repository"
	"github.com/edgebank/assist/internal/analytics/service"
	"go.uber.org/fx"
)

var Module = fx.Module("analytics",
	fx.Provide(
		repository.Provide,
		service.New,
	),
)

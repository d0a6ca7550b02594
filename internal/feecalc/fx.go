package feecalc

import (
	"github.com/edgebank/assist/internal/feecalc/service"
	"go.uber.org/fx"
)

var Module = fx.Module("feecalc.service",
	fx.Provide(service.New),
)

package feerule

import (
	"github.com/edgebank/assist/internal/feerule/repository"
	"github.com/edgebank/assist/internal/feerule/service"
	"go.uber.org/fx"
)

var Module = fx.Module("feerule.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)

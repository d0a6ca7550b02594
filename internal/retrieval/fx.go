package retrieval

import (
	"github.com/edgebank/assist/internal/retrieval/client"
	"github.com/edgebank/assist/internal/retrieval/domain"
	"github.com/edgebank/assist/internal/retrieval/service"
	"go.uber.org/fx"
)

var Module = fx.Module("retrieval",
	fx.Provide(
		fx.Annotate(client.NewHTTPClient, fx.As(new(domain.Client))),
		fx.Annotate(
			service.New,
			fx.ParamTags("", `name:"retrieval_kv"`),
			fx.As(new(domain.Service)),
		),
	),
)

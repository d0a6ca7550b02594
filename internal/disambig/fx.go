package disambig

import (
	"context"
	"time"

	"go.uber.org/fx"
)

var Module = fx.Module("disambig",
	fx.Provide(
		fx.Annotate(NewStore, fx.ParamTags(`name:"disambig_kv"`)),
	),
	fx.Invoke(startSweeper),
)

func startSweeper(lc fx.Lifecycle, store *Store) {
	ticker := time.NewTicker(time.Minute)
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				for {
					select {
					case <-ticker.C:
						store.Sweep()
					case <-done:
						return
					}
				}
			}()
			return nil
		},
		OnStop: func(context.Context) error {
			ticker.Stop()
			close(done)
			return nil
		},
	})
}

package main

import (
	"time"

	"go.uber.org/fx"

	"github.com/curia-network/curia-cg-sub000/internal/application"
	"github.com/curia-network/curia-cg-sub000/internal/bootstrap"
	"github.com/curia-network/curia-cg-sub000/internal/database"
	"github.com/curia-network/curia-cg-sub000/internal/module/gating"
	"github.com/curia-network/curia-cg-sub000/internal/module/gating/service"
	"github.com/curia-network/curia-cg-sub000/internal/module/scheduler"

	"github.com/curia-network/curia-cg-sub000/internal/module/shared"
	"github.com/curia-network/curia-cg-sub000/internal/router"
	fxzerolog "github.com/efectn/fx-zerolog"
	_ "go.uber.org/automaxprocs"
)

func main() {
	fx.New(
		/* provide patterns */
		// basic
		shared.NewSharedModule,
		scheduler.NewSchedulerModule,
		// application
		fx.Provide(application.NewApplication),
		// database
		fx.Provide(database.NewDatabase),
		// router
		fx.Provide(router.NewRouter),
		//rate limit
		fx.Provide(service.NewRateLimiterService),
		/* provide modules */
		gating.NewGatingModule,
		// start aplication
		fx.Invoke(bootstrap.Start),
		// define logger
		fx.WithLogger(fxzerolog.Init()),
		// invoke scheduler tasks
		fx.Invoke(func(s *scheduler.Scheduler) {
			go s.StartProcessVerificationLogs()
			go s.StartProcessSlackNotifications()
			go s.StartProcessTopNotifications()
			go s.StartProcessDeleteOldData()
			go s.StartSweepFollowWatches()
		}),
	).Run()

	fx.StartTimeout(10 * time.Minute)
}

package gating

import (
	"github.com/curia-network/curia-cg-sub000/internal/application"
	"github.com/curia-network/curia-cg-sub000/internal/module/gating/controller"
	"github.com/curia-network/curia-cg-sub000/internal/module/gating/middleware"
	"github.com/curia-network/curia-cg-sub000/internal/module/gating/repository"
	"github.com/curia-network/curia-cg-sub000/internal/module/gating/service"
	"github.com/curia-network/curia-cg-sub000/internal/module/shared"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

// struct of GatingRouter
type GatingRouter struct {
	App                *application.Application
	Controller         *controller.Controller
	RateLimiterService *service.RateLimiterService
	Logger             zerolog.Logger
}

// register bulky of gating module
var NewGatingModule = fx.Options(
	// register repository of gating module
	fx.Provide(repository.NewLockRepository),
	fx.Provide(repository.NewAppTokenRepository),
	fx.Provide(repository.NewVerificationLogRepository),
	fx.Provide(repository.NewSlackNotificationRepository),

	fx.Provide(service.NewChainRegistry),
	fx.Provide(service.NewMetadataService),
	fx.Provide(service.NewClassifierService),
	fx.Provide(service.NewVerifierService),
	fx.Provide(service.NewFollowerService),
	fx.Provide(service.NewVerificationService),
	fx.Provide(service.NewAppTokenService),

	// register controller of gating module
	fx.Provide(controller.NewController),

	fx.Provide(NewGatingRouter),

	fx.Provide(func(registry *service.ChainRegistry) service.ChainProvider {
		return registry
	}),
	fx.Provide(func(repo repository.LockRepository) shared.LockChecker {
		return repo
	}),
)

// init GatingRouter
func NewGatingRouter(app *application.Application, controller *controller.Controller, rateLimiterService *service.RateLimiterService, logger zerolog.Logger) *GatingRouter {
	return &GatingRouter{
		App:                app,
		Controller:         controller,
		RateLimiterService: rateLimiterService,
		Logger:             logger,
	}
}

// register routes of gating module
func (_i *GatingRouter) RegisterVerificationRoutes() {
	verificationController := _i.Controller.Verification

	rateLimitMiddleware := middleware.RateLimitMiddleware(_i.RateLimiterService, _i.Logger)

	_i.App.Router.POST("/api/v1/verify/{lockId}", rateLimitMiddleware(verificationController.VerifyLock))
	_i.App.Router.POST("/api/v1/verify", rateLimitMiddleware(verificationController.VerifyConfig))
}

func (_i *GatingRouter) RegisterTokenRoutes() {
	tokenController := _i.Controller.Token

	rateLimitMiddleware := middleware.RateLimitMiddleware(_i.RateLimiterService, _i.Logger)

	_i.App.Router.POST("/api/v1/tokens/metadata", rateLimitMiddleware(tokenController.GetBatchTokenMetadata))
	_i.App.Router.POST("/api/v1/profiles/metadata", rateLimitMiddleware(tokenController.GetBatchProfileMetadata))
	_i.App.Router.GET("/api/v1/tokens/{chain}/{address}/classify", rateLimitMiddleware(tokenController.ClassifyToken))
}

func (_i *GatingRouter) RegisterFollowRoutes() {
	followController := _i.Controller.Follow

	rateLimitMiddleware := middleware.RateLimitMiddleware(_i.RateLimiterService, _i.Logger)

	_i.App.Router.POST("/api/v1/follow/preflight", rateLimitMiddleware(followController.PreflightFollow))
	_i.App.Router.POST("/api/v1/follow/watch", rateLimitMiddleware(followController.StartWatch))
	_i.App.Router.GET("/api/v1/follow/watch/{id}", rateLimitMiddleware(followController.GetWatch))
	_i.App.Router.POST("/api/v1/follow/watch/cancel/{id}", rateLimitMiddleware(followController.CancelWatch))
}

func (_i *GatingRouter) RegisterLockRoutes() {
	lockController := _i.Controller.Lock

	_i.App.Router.POST("/locks/add", lockController.CreateLock)
	_i.App.Router.POST("/locks/update/{id}", lockController.UpdateLock)
	_i.App.Router.POST("/locks/delete/{id}", lockController.DeleteLock)
	_i.App.Router.GET("/locks/{id}", lockController.GetLockByID)
	_i.App.Router.GET("/locks", lockController.ListLocks)
	_i.App.Router.POST("/locks/refreshList", lockController.RefreshLockCache)
}

func (_i *GatingRouter) RegisterAppTokenRoutes() {
	appTokenController := _i.Controller.AppToken

	_i.App.Router.POST("/appToken/add", appTokenController.AddAppToken)
	_i.App.Router.POST("/appToken/update/{token}", appTokenController.UpdateAppToken)
	_i.App.Router.POST("/appToken/delete/{token}", appTokenController.DeleteAppToken)
	_i.App.Router.GET("/appToken/{token}", appTokenController.GetAppToken)
	_i.App.Router.GET("/appToken", appTokenController.GetAllAppTokens)

	_i.App.Router.GET("/k8s/healthz", appTokenController.CheckHealthz)
}

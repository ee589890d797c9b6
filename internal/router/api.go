package router

import (
	"github.com/curia-network/curia-cg-sub000/internal/module/gating"
)

type Router struct {
	GatingRouter *gating.GatingRouter
}

func NewRouter(
	gatingRouter *gating.GatingRouter,

) *Router {
	return &Router{
		GatingRouter: gatingRouter,
	}
}

// Register routes
func (r *Router) Register() {
	// Register routes of modules
	r.GatingRouter.RegisterVerificationRoutes()
	r.GatingRouter.RegisterTokenRoutes()
	r.GatingRouter.RegisterFollowRoutes()
	r.GatingRouter.RegisterLockRoutes()
	r.GatingRouter.RegisterAppTokenRoutes()

}

package controller

import (
	"github.com/curia-network/curia-cg-sub000/internal/module/gating/repository"
	"github.com/curia-network/curia-cg-sub000/internal/module/gating/service"
	"github.com/rs/zerolog"
)

type Controller struct {
	Verification VerificationController
	Lock         LockController
	Token        TokenController
	Follow       FollowController
	AppToken     AppTokenController
}

func NewController(
	verificationService service.VerificationService,
	metadataService service.MetadataService,
	classifierService service.ClassifierService,
	followerService service.FollowerService,
	appTokenService service.AppTokenService,
	lockRepo repository.LockRepository,
	logger zerolog.Logger) *Controller {
	return &Controller{
		Verification: NewVerificationController(verificationService, logger),
		Lock:         NewLockController(lockRepo),
		Token:        NewTokenController(metadataService, classifierService, logger),
		Follow:       NewFollowController(followerService, logger),
		AppToken:     NewAppTokenController(appTokenService),
	}
}

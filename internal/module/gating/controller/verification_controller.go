package controller

import (
	"context"
	"encoding/json"
	"time"

	"github.com/curia-network/curia-cg-sub000/internal/database/schema"
	"github.com/curia-network/curia-cg-sub000/internal/module/gating/service"
	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"
)

type verificationController struct {
	verificationService service.VerificationService
	logger              zerolog.Logger
}

type VerificationController interface {
	VerifyLock(ctx *fasthttp.RequestCtx)
	VerifyConfig(ctx *fasthttp.RequestCtx)
}

func NewVerificationController(verificationService service.VerificationService, logger zerolog.Logger) VerificationController {
	return &verificationController{
		verificationService: verificationService,
		logger:              logger,
	}
}

func (_i *verificationController) respond(ctx *fasthttp.RequestCtx, code int, data interface{}, message string) {
	response := map[string]interface{}{
		"code":    code,
		"data":    data,
		"message": message,
	}

	responseBody, err := json.Marshal(response)
	if err != nil {
		ctx.Error("failed to serialize response ", fasthttp.StatusInternalServerError)
		return
	}
	ctx.Response.Header.Set("Content-Type", "application/json; charset=utf-8")
	ctx.Response.SetBody(responseBody)
	ctx.Response.SetStatusCode(fasthttp.StatusOK)
}

func (_i *verificationController) withTimeout(ctx *fasthttp.RequestCtx, fn func(context.Context) error) {
	c, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- fn(c)
	}()

	select {
	case <-c.Done():
		if c.Err() == context.DeadlineExceeded {
			_i.respond(ctx, 504, nil, "Request timed out")
		} else {
			_i.respond(ctx, 500, nil, "Request canceled")
		}
	case err := <-done:
		if err != nil {
			_i.logger.Err(err).Msg("verification failed")
			_i.respond(ctx, 500, nil, err.Error())
		}
	}
}

func (_i *verificationController) VerifyLock(ctx *fasthttp.RequestCtx) {
	_i.withTimeout(ctx, func(c context.Context) error {
		startTime := time.Now()
		lockID := ctx.UserValue("lockId").(string)

		var requestData struct {
			UPAddress  string `json:"upAddress"`
			EthAddress string `json:"ethAddress"`
		}
		if err := json.Unmarshal(ctx.PostBody(), &requestData); err != nil {
			return err
		}

		addresses := service.VerificationAddresses{
			UPAddress:  requestData.UPAddress,
			EthAddress: requestData.EthAddress,
		}

		status, err := _i.verificationService.VerifyLock(c, lockID, addresses, ctx.RemoteIP().String())
		if err != nil {
			return err
		}

		_i.logger.Debug().Dur("execution_time", time.Since(startTime)).Msg("VerifyLock executed")
		_i.respond(ctx, 0, status, "Request successful")
		return nil
	})
}

func (_i *verificationController) VerifyConfig(ctx *fasthttp.RequestCtx) {
	_i.withTimeout(ctx, func(c context.Context) error {
		var requestData struct {
			Config     schema.GatingConfig `json:"config"`
			UPAddress  string              `json:"upAddress"`
			EthAddress string              `json:"ethAddress"`
		}
		if err := json.Unmarshal(ctx.PostBody(), &requestData); err != nil {
			return err
		}
		if err := requestData.Config.Validate(); err != nil {
			_i.respond(ctx, 400, nil, err.Error())
			return nil
		}

		addresses := service.VerificationAddresses{
			UPAddress:  requestData.UPAddress,
			EthAddress: requestData.EthAddress,
		}

		status := _i.verificationService.VerifyConfig(c, &requestData.Config, addresses)
		_i.respond(ctx, 0, status, "Request successful")
		return nil
	})
}

package controller

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/curia-network/curia-cg-sub000/internal/module/gating/service"
	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"
)

type FollowController interface {
	PreflightFollow(ctx *fasthttp.RequestCtx)
	StartWatch(ctx *fasthttp.RequestCtx)
	GetWatch(ctx *fasthttp.RequestCtx)
	CancelWatch(ctx *fasthttp.RequestCtx)
}

type followController struct {
	followerService service.FollowerService
	logger          zerolog.Logger
}

func NewFollowController(followerService service.FollowerService, logger zerolog.Logger) FollowController {
	return &followController{
		followerService: followerService,
		logger:          logger,
	}
}

func (_i *followController) respond(ctx *fasthttp.RequestCtx, code int, data interface{}, message string) {
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

func (_i *followController) PreflightFollow(ctx *fasthttp.RequestCtx) {
	var requestData struct {
		Follower string `json:"follower"`
		Target   string `json:"target"`
	}
	if err := json.Unmarshal(ctx.PostBody(), &requestData); err != nil {
		_i.respond(ctx, 400, nil, "Failed to parse request body")
		return
	}

	c, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := _i.followerService.PreflightFollow(c, requestData.Follower, requestData.Target); err != nil {
		var followErr *service.FollowError
		if errors.As(err, &followErr) {
			_i.respond(ctx, 400, followErr, followErr.Message)
			return
		}
		_i.respond(ctx, 500, nil, err.Error())
		return
	}

	_i.respond(ctx, 0, nil, "Preflight passed")
}

func (_i *followController) StartWatch(ctx *fasthttp.RequestCtx) {
	var requestData struct {
		Follower string `json:"follower"`
		Target   string `json:"target"`
	}
	if err := json.Unmarshal(ctx.PostBody(), &requestData); err != nil {
		_i.respond(ctx, 400, nil, "Failed to parse request body")
		return
	}

	watch, err := _i.followerService.WatchFollow(requestData.Follower, requestData.Target)
	if err != nil {
		_i.respond(ctx, 500, nil, err.Error())
		return
	}

	_i.respond(ctx, 0, watch, "Watch started")
}

func (_i *followController) GetWatch(ctx *fasthttp.RequestCtx) {
	id := ctx.UserValue("id").(string)

	watch, ok := _i.followerService.GetWatch(id)
	if !ok {
		_i.respond(ctx, 404, nil, "Watch not found")
		return
	}

	_i.respond(ctx, 0, watch, "Request successful")
}

func (_i *followController) CancelWatch(ctx *fasthttp.RequestCtx) {
	id := ctx.UserValue("id").(string)

	if !_i.followerService.CancelWatch(id) {
		_i.respond(ctx, 404, nil, "Watch not found")
		return
	}

	watch, _ := _i.followerService.GetWatch(id)
	_i.respond(ctx, 0, watch, "Watch cancelled")
}

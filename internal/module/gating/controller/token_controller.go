package controller

import (
	"context"
	"encoding/json"
	"time"

	"github.com/curia-network/curia-cg-sub000/internal/module/gating/service"
	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"
)

type TokenController interface {
	GetBatchTokenMetadata(ctx *fasthttp.RequestCtx)
	GetBatchProfileMetadata(ctx *fasthttp.RequestCtx)
	ClassifyToken(ctx *fasthttp.RequestCtx)
}

type tokenController struct {
	metadataService   service.MetadataService
	classifierService service.ClassifierService
	logger            zerolog.Logger
}

func NewTokenController(metadataService service.MetadataService, classifierService service.ClassifierService, logger zerolog.Logger) TokenController {
	return &tokenController{
		metadataService:   metadataService,
		classifierService: classifierService,
		logger:            logger,
	}
}

func (_i *tokenController) respond(ctx *fasthttp.RequestCtx, code int, data interface{}, message string) {
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

func (_i *tokenController) GetBatchTokenMetadata(ctx *fasthttp.RequestCtx) {
	startTime := time.Now()
	var requestData struct {
		Chain     string   `json:"chain"`
		Addresses []string `json:"addresses"`
	}
	if err := json.Unmarshal(ctx.PostBody(), &requestData); err != nil {
		_i.respond(ctx, 400, nil, "Failed to parse request body")
		return
	}
	if requestData.Chain == "" {
		requestData.Chain = "lukso"
	}

	c, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	metadata := _i.metadataService.BatchFetchTokenMetadata(c, requestData.Chain, requestData.Addresses)
	_i.logger.Debug().Dur("execution_time", time.Since(startTime)).Msg("GetBatchTokenMetadata executed")
	_i.respond(ctx, 0, metadata, "Request successful")
}

func (_i *tokenController) GetBatchProfileMetadata(ctx *fasthttp.RequestCtx) {
	var requestData struct {
		Chain     string   `json:"chain"`
		Addresses []string `json:"addresses"`
	}
	if err := json.Unmarshal(ctx.PostBody(), &requestData); err != nil {
		_i.respond(ctx, 400, nil, "Failed to parse request body")
		return
	}
	if requestData.Chain == "" {
		requestData.Chain = "lukso"
	}

	c, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	metadata := _i.metadataService.BatchFetchProfileMetadata(c, requestData.Chain, requestData.Addresses)
	_i.respond(ctx, 0, metadata, "Request successful")
}

func (_i *tokenController) ClassifyToken(ctx *fasthttp.RequestCtx) {
	chain := ctx.UserValue("chain").(string)
	address := ctx.UserValue("address").(string)

	c, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	classification := _i.classifierService.ClassifyLsp7(c, chain, address)
	_i.respond(ctx, 0, classification, "Request successful")
}

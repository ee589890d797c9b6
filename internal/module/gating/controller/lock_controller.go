package controller

import (
	"encoding/json"

	"github.com/curia-network/curia-cg-sub000/internal/database/schema"
	"github.com/curia-network/curia-cg-sub000/internal/module/gating/repository"
	"github.com/valyala/fasthttp"
)

type LockController interface {
	CreateLock(ctx *fasthttp.RequestCtx)
	GetLockByID(ctx *fasthttp.RequestCtx)
	ListLocks(ctx *fasthttp.RequestCtx)
	UpdateLock(ctx *fasthttp.RequestCtx)
	DeleteLock(ctx *fasthttp.RequestCtx)
	RefreshLockCache(ctx *fasthttp.RequestCtx)
}

type lockController struct {
	lockRepo repository.LockRepository
}

func NewLockController(lockRepo repository.LockRepository) LockController {
	return &lockController{
		lockRepo: lockRepo,
	}
}

func (c *lockController) respond(ctx *fasthttp.RequestCtx, code int, data interface{}, message string) {
	response := map[string]interface{}{
		"code":    code,
		"data":    data,
		"message": message,
	}

	responseBody, err := json.Marshal(response)
	if err != nil {
		ctx.Error("Failed to serialize response ", fasthttp.StatusInternalServerError)
		return
	}

	ctx.Response.Header.Set("Content-Type", "application/json; charset=utf-8")
	ctx.Response.SetBody(responseBody)
	ctx.Response.SetStatusCode(fasthttp.StatusOK)
}

func (c *lockController) CreateLock(ctx *fasthttp.RequestCtx) {
	var lock schema.Lock
	if err := json.Unmarshal(ctx.PostBody(), &lock); err != nil {
		c.respond(ctx, 400, nil, "Failed to parse request body")
		return
	}

	if err := c.lockRepo.CreateLock(&lock); err != nil {
		c.respond(ctx, 500, nil, err.Error())
		return
	}

	c.respond(ctx, 0, lock, "Lock created successfully")
}

func (c *lockController) GetLockByID(ctx *fasthttp.RequestCtx) {
	id := ctx.UserValue("id").(string)

	lock, err := c.lockRepo.GetLockByID(id)
	if err != nil {
		c.respond(ctx, 404, nil, "Lock not found")
		return
	}

	c.respond(ctx, 0, lock, "Request successful")
}

func (c *lockController) ListLocks(ctx *fasthttp.RequestCtx) {
	communityID := string(ctx.QueryArgs().Peek("communityId"))
	if communityID == "" {
		c.respond(ctx, 400, nil, "communityId is required")
		return
	}

	locks, err := c.lockRepo.GetLocksByCommunity(communityID)
	if err != nil {
		c.respond(ctx, 500, nil, "Failed to retrieve locks")
		return
	}

	c.respond(ctx, 0, locks, "Request successful")
}

func (c *lockController) UpdateLock(ctx *fasthttp.RequestCtx) {
	id := ctx.UserValue("id").(string)

	var lock schema.Lock
	if err := json.Unmarshal(ctx.PostBody(), &lock); err != nil {
		c.respond(ctx, 400, nil, "Failed to parse request body")
		return
	}
	lock.ID = id

	if err := c.lockRepo.UpdateLock(&lock); err != nil {
		c.respond(ctx, 500, nil, err.Error())
		return
	}

	c.respond(ctx, 0, lock, "Lock updated successfully")
}

func (c *lockController) DeleteLock(ctx *fasthttp.RequestCtx) {
	id := ctx.UserValue("id").(string)

	if err := c.lockRepo.DeleteLock(id); err != nil {
		c.respond(ctx, 500, nil, "Failed to delete lock")
		return
	}

	c.respond(ctx, 0, nil, "Lock deleted successfully")
}

func (c *lockController) RefreshLockCache(ctx *fasthttp.RequestCtx) {
	var requestData struct {
		Ids []string `json:"ids"`
	}
	if err := json.Unmarshal(ctx.PostBody(), &requestData); err != nil {
		c.respond(ctx, 500, nil, "Failed to refresh cache due to parameter parsing error.")
		return
	}
	if err := c.lockRepo.RefreshLockCache(requestData.Ids); err != nil {
		c.respond(ctx, 500, nil, "Failed to refresh cache")
		return
	}
	c.respond(ctx, 0, nil, "Cache refreshed successfully")
}

package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"

	"github.com/lumachat/luma-backend/internal/data/stores"
	"github.com/lumachat/luma-backend/internal/domain/conversation"
	"github.com/lumachat/luma-backend/internal/http/response"
	"github.com/lumachat/luma-backend/internal/pkg/dbctx"
	apperrs "github.com/lumachat/luma-backend/internal/pkg/errors"
)

type MemoHandler struct {
	memos stores.MemoStore
}

func NewMemoHandler(memos stores.MemoStore) *MemoHandler {
	return &MemoHandler{memos: memos}
}

// GET /api/sessions/:id/memo
func (h *MemoHandler) Get(c *gin.Context) {
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	memo, err := h.memos.Get(dbc, trimmedParam(c, "id"))
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	if memo == nil {
		response.RespondError(c, http.StatusNotFound, "not_found", fmt.Errorf("%w: memo", apperrs.ErrNotFound))
		return
	}
	response.RespondOK(c, gin.H{"memo": memo})
}

type putMemoReq struct {
	Summary    string         `json:"summary"`
	Structured map[string]any `json:"structured"`
}

// PUT /api/sessions/:id/memo
func (h *MemoHandler) Put(c *gin.Context) {
	var req putMemoReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	memo := &conversation.Memo{
		SessionID: trimmedParam(c, "id"),
		Summary:   req.Summary,
		UpdatedAt: time.Now().UTC(),
	}
	if len(req.Structured) > 0 {
		memo.Structured = datatypes.JSONMap(req.Structured)
	}
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	if err := h.memos.Upsert(dbc, memo); err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"memo": memo})
}

// DELETE /api/sessions/:id/memo
func (h *MemoHandler) Delete(c *gin.Context) {
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	if err := h.memos.Delete(dbc, trimmedParam(c, "id")); err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"deleted": true})
}

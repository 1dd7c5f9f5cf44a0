package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/lumachat/luma-backend/internal/http/response"
	"github.com/lumachat/luma-backend/internal/pkg/dbctx"
	apperrs "github.com/lumachat/luma-backend/internal/pkg/errors"
	"github.com/lumachat/luma-backend/internal/services"
)

type SessionHandler struct {
	conv services.ConversationService
}

func NewSessionHandler(conv services.ConversationService) *SessionHandler {
	return &SessionHandler{conv: conv}
}

// GET /api/sessions?user_id=u1&limit=50
func (h *SessionHandler) List(c *gin.Context) {
	limit := 50
	if v := strings.TrimSpace(c.Query("limit")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	sessions, err := h.conv.ListSessions(dbc, strings.TrimSpace(c.Query("user_id")), limit)
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"sessions": sessions})
}

// GET /api/sessions/:id
func (h *SessionHandler) Get(c *gin.Context) {
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	sess, err := h.conv.GetSession(dbc, trimmedParam(c, "id"))
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	if sess == nil {
		response.RespondError(c, http.StatusNotFound, "not_found", fmt.Errorf("%w: session", apperrs.ErrNotFound))
		return
	}
	response.RespondOK(c, gin.H{"session": sess})
}

// GET /api/sessions/:id/messages
func (h *SessionHandler) ListMessages(c *gin.Context) {
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	msgs, err := h.conv.ListMessages(dbc, trimmedParam(c, "id"))
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"messages": msgs})
}

// DELETE /api/sessions/:id
func (h *SessionHandler) Delete(c *gin.Context) {
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	if err := h.conv.DeleteSession(dbc, trimmedParam(c, "id")); err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"deleted": true})
}

package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/lumachat/luma-backend/internal/domain/conversation"
	"github.com/lumachat/luma-backend/internal/http/response"
	"github.com/lumachat/luma-backend/internal/pkg/dbctx"
	"github.com/lumachat/luma-backend/internal/services"
)

type ChatHandler struct {
	conv services.ConversationService
}

func NewChatHandler(conv services.ConversationService) *ChatHandler {
	return &ChatHandler{conv: conv}
}

type chatReq struct {
	SessionID   string         `json:"session_id"`
	UserID      string         `json:"user_id"`
	TenantID    string         `json:"tenant_id"`
	Channel     string         `json:"channel"`
	Title       string         `json:"title"`
	Message     string         `json:"message"`
	UIMessageID string         `json:"ui_message_id"`
	Metadata    map[string]any `json:"metadata"`
	Stream      bool           `json:"stream"`
}

// POST /api/chat
func (h *ChatHandler) Chat(c *gin.Context) {
	var req chatReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	in := services.TurnInput{
		SessionID:   req.SessionID,
		UserID:      req.UserID,
		TenantID:    req.TenantID,
		Channel:     conversation.Channel(req.Channel),
		Title:       req.Title,
		UserText:    req.Message,
		UIMessageID: req.UIMessageID,
		Metadata:    req.Metadata,
	}
	dbc := dbctx.Context{Ctx: c.Request.Context()}

	if req.Stream {
		h.chatStream(c, dbc, in)
		return
	}

	res, err := h.conv.RunTurn(dbc, in)
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, turnPayload(res))
}

// chatStream relays generation deltas as server-sent events, then a final
// "done" event carrying the full turn result.
func (h *ChatHandler) chatStream(c *gin.Context, dbc dbctx.Context, in services.TurnInput) {
	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		response.RespondError(c, http.StatusInternalServerError, "stream_unsupported", fmt.Errorf("response writer does not support streaming"))
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Writer.WriteHeader(http.StatusOK)
	flusher.Flush()

	writeEvent := func(event string, payload any) {
		raw, err := json.Marshal(payload)
		if err != nil {
			return
		}
		fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", event, raw)
		flusher.Flush()
	}

	in.OnDelta = func(delta string) {
		writeEvent("delta", gin.H{"text": delta})
	}

	res, err := h.conv.RunTurn(dbc, in)
	if err != nil {
		writeEvent("error", gin.H{"message": err.Error()})
		return
	}
	writeEvent("done", turnPayload(res))
}

func turnPayload(res *services.TurnResult) gin.H {
	payload := gin.H{
		"session":      res.Session,
		"user_message": res.UserMessage,
		"aborted":      res.Aborted,
	}
	if res.AssistantMessage != nil {
		payload["assistant_message"] = res.AssistantMessage
	}
	return payload
}

func trimmedParam(c *gin.Context, name string) string {
	return strings.TrimSpace(c.Param(name))
}

package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"findash/internal/app"
	"findash/internal/transport/http/middleware"
	"findash/internal/transport/http/response"
)

type ChatHandler struct {
	chatService *app.ChatService
}

type ChatRequest struct {
	Prompt         string `json:"prompt"`
	ConversationID string `json:"conversation_id" binding:"max=64"`
}

func NewChatHandler(chatService *app.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

// Chat answers one prompt. The body is the bare chat payload rather than the
// envelope, which browsers consume directly.
func (h *ChatHandler) Chat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	result, err := h.chatService.Chat(c.Request.Context(), app.ChatInput{
		UserID:         middleware.UserID(c),
		ConversationID: req.ConversationID,
		Prompt:         req.Prompt,
	})
	if err != nil {
		writeServiceError(c, err, "chat failed")
		return
	}
	c.JSON(http.StatusOK, result)
}

// Stream sends the reply as server-sent events: "chunk" events carrying text, then one
// "done" event with the full chat payload, or an "error" event.
func (h *ChatHandler) Stream(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeServiceError(c, app.ErrPromptEmpty, "")
		return
	}

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "stream not supported")
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	result, err := h.chatService.StreamChat(c.Request.Context(), app.ChatInput{
		UserID:         middleware.UserID(c),
		ConversationID: req.ConversationID,
		Prompt:         req.Prompt,
	}, func(chunk string) error {
		if err := writeEvent(c, "chunk", sanitizeSSE(chunk)); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	})
	if err != nil {
		_ = c.Error(err)
		if writeEvent(c, "error", sanitizeSSE(err.Error())) == nil {
			flusher.Flush()
		}
		return
	}

	payload, err := json.Marshal(result)
	if err != nil {
		_ = c.Error(err)
		return
	}
	if writeEvent(c, "done", string(payload)) == nil {
		flusher.Flush()
	}
}

func writeEvent(c *gin.Context, event, data string) error {
	_, err := c.Writer.Write([]byte("event: " + event + "\ndata: " + data + "\n\n"))
	return err
}

func sanitizeSSE(input string) string {
	replaced := strings.ReplaceAll(input, "\r\n", "\\n")
	return strings.ReplaceAll(replaced, "\n", "\\n")
}

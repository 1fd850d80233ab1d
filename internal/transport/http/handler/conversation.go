package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"findash/internal/app"
	"findash/internal/transport/http/middleware"
	"findash/internal/transport/http/response"
)

type ConversationHandler struct {
	service *app.ConversationService
}

type CreateConversationRequest struct {
	ID    string `json:"id" binding:"max=64"`
	Title string `json:"title" binding:"max=128"`
}

func NewConversationHandler(service *app.ConversationService) *ConversationHandler {
	return &ConversationHandler{service: service}
}

func (h *ConversationHandler) Create(c *gin.Context) {
	var req CreateConversationRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
			return
		}
	}

	conversation, err := h.service.Create(c.Request.Context(), app.CreateConversationInput{
		UserID: middleware.UserID(c),
		ID:     req.ID,
		Title:  req.Title,
	})
	if err != nil {
		writeServiceError(c, err, "create conversation failed")
		return
	}
	response.OK(c, conversation)
}

func (h *ConversationHandler) List(c *gin.Context) {
	conversations, err := h.service.List(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		writeServiceError(c, err, "list conversations failed")
		return
	}
	response.OK(c, conversations)
}

func (h *ConversationHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	if err := h.service.Delete(c.Request.Context(), middleware.UserID(c), id); err != nil {
		writeServiceError(c, err, "delete conversation failed")
		return
	}
	response.OK(c, gin.H{"deleted_conversation_id": id})
}

func (h *ConversationHandler) UploadFile(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "multipart field \"file\" is required")
		return
	}
	f, err := header.Open()
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "open uploaded file failed")
		return
	}
	defer f.Close()

	file, err := h.service.UploadFile(c.Request.Context(), app.UploadFileInput{
		UserID:         middleware.UserID(c),
		ConversationID: c.Param("id"),
		Name:           header.Filename,
		Reader:         f,
	})
	if err != nil {
		writeServiceError(c, err, "upload file failed")
		return
	}
	response.OK(c, file)
}

func (h *ConversationHandler) ListFiles(c *gin.Context) {
	files, err := h.service.ListFiles(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		writeServiceError(c, err, "list files failed")
		return
	}
	response.OK(c, files)
}

func (h *ConversationHandler) Messages(c *gin.Context) {
	limit := 100
	if raw := c.Query("limit"); raw != "" {
		if parsed, parseErr := strconv.Atoi(raw); parseErr == nil {
			limit = parsed
		}
	}

	messages, err := h.service.History(c.Request.Context(), middleware.UserID(c), c.Param("id"), limit)
	if err != nil {
		writeServiceError(c, err, "get history failed")
		return
	}
	response.OK(c, messages)
}

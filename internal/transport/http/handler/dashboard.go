package handler

import (
	"bytes"
	"net/http"

	"github.com/gin-gonic/gin"

	"findash/internal/app"
	"findash/internal/dashboard"
	"findash/internal/transport/http/middleware"
)

type DashboardHandler struct {
	service *app.ConversationService
}

func NewDashboardHandler(service *app.ConversationService) *DashboardHandler {
	return &DashboardHandler{service: service}
}

// Page renders the latest dashboard of a conversation. ?sources=collapsed starts with
// the sources panel hidden.
func (h *DashboardHandler) Page(c *gin.Context) {
	view, err := h.service.LatestDashboard(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		writeServiceError(c, err, "load dashboard failed")
		return
	}

	var buf bytes.Buffer
	if err := dashboard.Render(&buf, dashboard.Page{
		ConversationID: view.ConversationID,
		Dashboard:      view.Dashboard,
		Reply:          view.Reply,
		Sources:        dashboard.ParsePanelState(c.Query("sources")),
	}); err != nil {
		writeServiceError(c, err, "render dashboard failed")
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", buf.Bytes())
}

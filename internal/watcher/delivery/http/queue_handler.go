package http

import (
	"net/http"
	"strconv"
	"strings"

	"golang-trade-sentry/internal/entity"
	"golang-trade-sentry/internal/watcher/dto"
	"golang-trade-sentry/internal/watcher/service"
	"golang-trade-sentry/pkg/logger"

	"github.com/labstack/echo/v4"
)

// QueueHandler handles HTTP requests for the notification queue.
type QueueHandler struct {
	queueService service.QueueService
	logger       *logger.Logger
}

// NewQueueHandler creates a new QueueHandler.
func NewQueueHandler(queueService service.QueueService, logger *logger.Logger) *QueueHandler {
	return &QueueHandler{queueService: queueService, logger: logger}
}

// RegisterRoutes registers the queue routes to the Echo group.
func (h *QueueHandler) RegisterRoutes(g *echo.Group) {
	g.GET("", h.GetQueue)
	g.PUT("/:id/cancel", h.CancelItem)
}

// GetQueue godoc
// @Summary List notification queue items
// @Description List queue items in dispatch order, optionally filtered by status
// @Tags queue
// @Produce  json
// @Param   status  query   string  false   "Comma-separated statuses (pending,sent,failed,rate_limited,cancelled)"
// @Param   limit   query   int     false   "Maximum items to return"
// @Success 200 {array} entity.NotificationItem
// @Failure 500 {object} dto.ErrorResponse
// @Router /queue [get]
func (h *QueueHandler) GetQueue(c echo.Context) error {
	param := dto.GetQueueParam{}

	if raw := c.QueryParam("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			param.Statuses = append(param.Statuses, entity.NotificationStatus(strings.TrimSpace(s)))
		}
	}
	if raw := c.QueryParam("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid limit"})
		}
		param.Limit = limit
	}

	items, err := h.queueService.Get(c.Request().Context(), param)
	if err != nil {
		h.logger.Error("Failed to list notification queue", logger.ErrorField(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to list queue"})
	}
	return c.JSON(http.StatusOK, items)
}

// CancelItem godoc
// @Summary Cancel a queued notification
// @Description Withdraw a notification that has not been sent yet
// @Tags queue
// @Produce  json
// @Param   id  path    int true    "Notification item ID"
// @Success 200 {object} entity.NotificationItem
// @Failure 400 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Router /queue/{id}/cancel [put]
func (h *QueueHandler) CancelItem(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid item ID"})
	}

	item, err := h.queueService.Cancel(c.Request().Context(), uint(id))
	if err != nil {
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, item)
}

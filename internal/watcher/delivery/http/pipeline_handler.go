package http

import (
	"net/http"

	"golang-trade-sentry/internal/watcher/service"
	"golang-trade-sentry/pkg/logger"

	"github.com/labstack/echo/v4"
)

// PipelineHandler exposes orchestrator controls.
type PipelineHandler struct {
	orchestrator service.OrchestratorService
	logger       *logger.Logger
}

// NewPipelineHandler creates a new PipelineHandler.
func NewPipelineHandler(orchestrator service.OrchestratorService, logger *logger.Logger) *PipelineHandler {
	return &PipelineHandler{orchestrator: orchestrator, logger: logger}
}

// RegisterRoutes registers the pipeline routes to the Echo group.
func (h *PipelineHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/status", h.GetStatus)
	g.POST("/start", h.Start)
	g.POST("/stop", h.Stop)
	g.POST("/run", h.RunOnce)
}

// GetStatus godoc
// @Summary Get pipeline status
// @Description Report whether the cycle loop is running and the last cycle's stats
// @Tags pipeline
// @Produce  json
// @Success 200 {object} dto.PipelineStatusResponse
// @Router /pipeline/status [get]
func (h *PipelineHandler) GetStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, h.orchestrator.Status())
}

// Start godoc
// @Summary Start the pipeline
// @Description Start the scheduled cycle loop
// @Tags pipeline
// @Produce  json
// @Success 204 {object} nil
// @Failure 409 {object} dto.ErrorResponse
// @Router /pipeline/start [post]
func (h *PipelineHandler) Start(c echo.Context) error {
	if err := h.orchestrator.Start(); err != nil {
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	}
	return c.NoContent(http.StatusNoContent)
}

// Stop godoc
// @Summary Stop the pipeline
// @Description Stop the scheduled cycle loop; an in-flight cycle finishes first
// @Tags pipeline
// @Produce  json
// @Success 204 {object} nil
// @Failure 409 {object} dto.ErrorResponse
// @Router /pipeline/stop [post]
func (h *PipelineHandler) Stop(c echo.Context) error {
	if err := h.orchestrator.Stop(); err != nil {
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	}
	return c.NoContent(http.StatusNoContent)
}

// RunOnce godoc
// @Summary Run one cycle now
// @Description Execute a single poll-diff-evaluate-dispatch cycle synchronously
// @Tags pipeline
// @Produce  json
// @Success 200 {object} dto.CycleStats
// @Failure 500 {object} dto.ErrorResponse
// @Router /pipeline/run [post]
func (h *PipelineHandler) RunOnce(c echo.Context) error {
	stats, err := h.orchestrator.RunOnce(c.Request().Context())
	if err != nil {
		h.logger.Error("Manual cycle failed", logger.ErrorField(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, stats)
}

package http

import (
	"net/http"
	"strconv"

	"golang-trade-sentry/internal/watcher/dto"
	"golang-trade-sentry/internal/watcher/service"
	"golang-trade-sentry/pkg/logger"

	"github.com/labstack/echo/v4"
)

// SourceHandler handles HTTP requests for monitored sources.
type SourceHandler struct {
	sourceService service.SourceService
	logger        *logger.Logger
}

// NewSourceHandler creates a new SourceHandler.
func NewSourceHandler(sourceService service.SourceService, logger *logger.Logger) *SourceHandler {
	return &SourceHandler{sourceService: sourceService, logger: logger}
}

// RegisterRoutes registers the source routes to the Echo group.
func (h *SourceHandler) RegisterRoutes(g *echo.Group) {
	g.POST("", h.CreateSource)
	g.GET("", h.GetAllSources)
	g.GET("/:id", h.GetSourceByID)
	g.PUT("/:id/activate", h.ActivateSource)
	g.PUT("/:id/deactivate", h.DeactivateSource)
}

// CreateSource godoc
// @Summary Register a new source
// @Description Register a new trader feed to monitor
// @Tags sources
// @Accept  json
// @Produce  json
// @Param   source  body    dto.CreateSourceRequest   true    "Source to register"
// @Success 201 {object} entity.Source
// @Failure 400 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /sources [post]
func (h *SourceHandler) CreateSource(c echo.Context) error {
	var req dto.CreateSourceRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request payload"})
	}

	source, err := h.sourceService.Create(c.Request().Context(), &req)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	return c.JSON(http.StatusCreated, source)
}

// GetAllSources godoc
// @Summary Get all sources
// @Description Get all registered sources, active and inactive
// @Tags sources
// @Produce  json
// @Success 200 {array} entity.Source
// @Failure 500 {object} dto.ErrorResponse
// @Router /sources [get]
func (h *SourceHandler) GetAllSources(c echo.Context) error {
	sources, err := h.sourceService.GetAll(c.Request().Context())
	if err != nil {
		h.logger.Error("Failed to get all sources", logger.ErrorField(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to get sources"})
	}
	return c.JSON(http.StatusOK, sources)
}

// GetSourceByID godoc
// @Summary Get a source by ID
// @Description Get a single source by its ID
// @Tags sources
// @Produce  json
// @Param   id  path    int true    "Source ID"
// @Success 200 {object} entity.Source
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /sources/{id} [get]
func (h *SourceHandler) GetSourceByID(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid source ID"})
	}

	source, err := h.sourceService.GetByID(c.Request().Context(), uint(id))
	if err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, source)
}

// ActivateSource godoc
// @Summary Activate a source
// @Description Resume polling a deactivated source
// @Tags sources
// @Produce  json
// @Param   id  path    int true    "Source ID"
// @Success 204 {object} nil
// @Failure 400 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /sources/{id}/activate [put]
func (h *SourceHandler) ActivateSource(c echo.Context) error {
	return h.setActive(c, true)
}

// DeactivateSource godoc
// @Summary Deactivate a source
// @Description Stop polling a source; its open positions are left untouched
// @Tags sources
// @Produce  json
// @Param   id  path    int true    "Source ID"
// @Success 204 {object} nil
// @Failure 400 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /sources/{id}/deactivate [put]
func (h *SourceHandler) DeactivateSource(c echo.Context) error {
	return h.setActive(c, false)
}

func (h *SourceHandler) setActive(c echo.Context, active bool) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid source ID"})
	}

	if err := h.sourceService.SetActive(c.Request().Context(), uint(id), active); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": err.Error()})
	}

	return c.NoContent(http.StatusNoContent)
}

package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"irisapi/internal/config"
	"irisapi/internal/logging"
	"irisapi/internal/service"
)

// AdminHandler handles dataset management endpoints.
type AdminHandler struct {
	dataService service.DataService
	cfg         *config.Config
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(dataService service.DataService, cfg *config.Config) *AdminHandler {
	return &AdminHandler{dataService: dataService, cfg: cfg}
}

// ReloadData godoc
// @Summary Reload the dataset from its source
// @Description On failure the previously loaded data keeps being served.
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} service.ReloadResult
// @Failure 403 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /admin/reload-data [post]
func (h *AdminHandler) ReloadData(c echo.Context) error {
	result, err := h.dataService.Reload(c.Request().Context())
	if err != nil {
		return errorResponse(err)
	}
	logging.Info().Int("rows", result.RowsLoaded).Msg("dataset reloaded by admin")
	return c.JSON(http.StatusOK, result)
}

// ClearCache godoc
// @Summary Drop the loaded dataset; the next read loads it again
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} MessageResponse
// @Failure 403 {object} errors.ErrorResponse
// @Router /admin/clear-cache [delete]
func (h *AdminHandler) ClearCache(c echo.Context) error {
	h.dataService.Clear(c.Request().Context())
	return c.JSON(http.StatusOK, MessageResponse{Message: "Cache cleared successfully"})
}

// Config godoc
// @Summary Effective configuration with secrets removed
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]interface{}
// @Failure 403 {object} errors.ErrorResponse
// @Router /admin/config [get]
func (h *AdminHandler) Config(c echo.Context) error {
	return c.JSON(http.StatusOK, h.cfg.Redacted())
}

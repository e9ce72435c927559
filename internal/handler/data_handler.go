package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"irisapi/internal/service"
	"irisapi/internal/stats"
)

// DataHandler serves dataset reads.
type DataHandler struct {
	dataService service.DataService
}

// NewDataHandler creates a new data handler.
func NewDataHandler(dataService service.DataService) *DataHandler {
	return &DataHandler{dataService: dataService}
}

// SpeciesRequest holds the query parameters of a species read.
type SpeciesRequest struct {
	Species        string `param:"species" validate:"required"`
	Normalize      bool
	Method         string `validate:"omitempty,oneof=minmax zscore"`
	RemoveOutliers bool
	Limit          *int
	Offset         int
}

// Summary godoc
// @Summary Summary of the species the caller may read
// @Tags data
// @Produce json
// @Security BearerAuth
// @Param include_stats query bool false "Include per-species statistics" default(true)
// @Success 200 {object} service.DataSummary
// @Failure 401 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /data [get]
func (h *DataHandler) Summary(c echo.Context) error {
	identity, err := identityFrom(c)
	if err != nil {
		return err
	}

	includeStats := true
	if err := echo.QueryParamsBinder(c).Bool("include_stats", &includeStats).BindError(); err != nil {
		return badRequest("include_stats must be a boolean")
	}

	summary, err := h.dataService.Summary(c.Request().Context(), identity, includeStats)
	if err != nil {
		return errorResponse(err)
	}
	return c.JSON(http.StatusOK, summary)
}

// ListSpecies godoc
// @Summary Species the caller may read
// @Tags data
// @Produce json
// @Security BearerAuth
// @Success 200 {array} string
// @Failure 401 {object} errors.ErrorResponse
// @Router /data/species/list [get]
func (h *DataHandler) ListSpecies(c echo.Context) error {
	identity, err := identityFrom(c)
	if err != nil {
		return err
	}

	species, err := h.dataService.ListSpecies(c.Request().Context(), identity)
	if err != nil {
		return errorResponse(err)
	}
	return c.JSON(http.StatusOK, species)
}

// GetSpecies godoc
// @Summary Records of one species
// @Tags data
// @Produce json
// @Security BearerAuth
// @Param species path string true "Species name"
// @Param normalize query bool false "Add normalized feature values"
// @Param method query string false "Normalization method" Enums(minmax, zscore)
// @Param remove_outliers query bool false "Drop records beyond 3 standard deviations"
// @Param limit query int false "Page size (1-1000)"
// @Param offset query int false "Records to skip"
// @Success 200 {object} service.SpeciesData
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /data/{species} [get]
func (h *DataHandler) GetSpecies(c echo.Context) error {
	identity, err := identityFrom(c)
	if err != nil {
		return err
	}

	req := SpeciesRequest{Species: c.Param("species")}
	var limit int
	binder := echo.QueryParamsBinder(c).
		Bool("normalize", &req.Normalize).
		String("method", &req.Method).
		Bool("remove_outliers", &req.RemoveOutliers).
		Int("limit", &limit).
		Int("offset", &req.Offset)
	if err := binder.BindError(); err != nil {
		return badRequest("invalid query parameters")
	}
	if c.QueryParam("limit") != "" {
		req.Limit = &limit
	}
	if err := c.Validate(&req); err != nil {
		return badRequest(err.Error())
	}

	data, err := h.dataService.GetSpecies(c.Request().Context(), identity, req.Species, service.SpeciesQuery{
		Normalize:      req.Normalize,
		Method:         stats.Method(req.Method),
		RemoveOutliers: req.RemoveOutliers,
		Limit:          req.Limit,
		Offset:         req.Offset,
	})
	if err != nil {
		return errorResponse(err)
	}
	return c.JSON(http.StatusOK, data)
}

// Aggregated godoc
// @Summary Full statistics of one species
// @Tags data
// @Produce json
// @Security BearerAuth
// @Param species path string true "Species name"
// @Success 200 {object} service.AggregatedData
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /data/aggregated/{species} [get]
func (h *DataHandler) Aggregated(c echo.Context) error {
	identity, err := identityFrom(c)
	if err != nil {
		return err
	}

	data, err := h.dataService.Aggregated(c.Request().Context(), identity, c.Param("species"))
	if err != nil {
		return errorResponse(err)
	}
	return c.JSON(http.StatusOK, data)
}

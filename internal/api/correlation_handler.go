package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"gocorr/app"
	"gocorr/domain/core"
	"gocorr/domain/correlation"
	"gocorr/internal/errors"
	"gocorr/ports"
)

// TopRequest is the body of POST /v1/correlations/top. Zero fields fall back to
// the server defaults.
type TopRequest struct {
	Series    [][]float64      `json:"series" binding:"required"`
	Window    int              `json:"window"`
	Timesteps int              `json:"timesteps"`
	TopK      *int             `json:"top_k"`
	Mode      correlation.Mode `json:"mode"`
}

// FullRequest is the body of POST /v1/correlations/full
type FullRequest struct {
	Series [][]float64      `json:"series" binding:"required"`
	Mode   correlation.Mode `json:"mode"`
}

// FullEntry is one pair of the full vector; Value is null for degenerate pairs
type FullEntry struct {
	Index  uint64   `json:"pair_index"`
	A      int      `json:"series_a"`
	B      int      `json:"series_b"`
	Value  *float64 `json:"value"`
	Status string   `json:"status"`
}

// CorrelationHandler serves correlation runs over HTTP
type CorrelationHandler struct {
	service  *app.CorrelationService
	repo     ports.ResultRepository
	defaults correlation.Params
	logger   zerolog.Logger
}

// NewCorrelationHandler creates a new correlation handler. repo may be nil, in
// which case the run lookup endpoints answer 404.
func NewCorrelationHandler(service *app.CorrelationService, repo ports.ResultRepository, defaults correlation.Params, logger zerolog.Logger) *CorrelationHandler {
	return &CorrelationHandler{
		service:  service,
		repo:     repo,
		defaults: defaults,
		logger:   logger.With().Str("component", "api").Logger(),
	}
}

// RunTop ranks the top pairs of every timestep of the posted matrix
func (h *CorrelationHandler) RunTop(c *gin.Context) {
	var req TopRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	matrix, err := correlation.NewMatrix(req.Series)
	if err != nil {
		h.fail(c, err)
		return
	}

	params := h.defaults
	if req.Window != 0 {
		params.Window = req.Window
	}
	if req.Timesteps != 0 {
		params.Timesteps = req.Timesteps
	}
	if req.TopK != nil {
		params.TopK = *req.TopK
	}
	if req.Mode != "" {
		params.Mode = req.Mode
	}

	result, err := h.service.Run(c.Request.Context(), matrix, params)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// RunFull returns every pair correlated over the whole series
func (h *CorrelationHandler) RunFull(c *gin.Context) {
	var req FullRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	matrix, err := correlation.NewMatrix(req.Series)
	if err != nil {
		h.fail(c, err)
		return
	}
	mode := req.Mode
	if mode == "" {
		mode = h.defaults.Mode
	}

	scores, err := h.service.FullCorrelations(c.Request.Context(), matrix, mode, h.defaults.Workers)
	if err != nil {
		h.fail(c, err)
		return
	}

	entries := make([]FullEntry, len(scores.Scores))
	for i, ps := range scores.Scores {
		entries[i] = FullEntry{Index: ps.Index, A: int(ps.A), B: int(ps.B), Status: ps.Status.String()}
		if ps.Status == correlation.StatusValid {
			v := ps.Value
			entries[i].Value = &v
		}
	}
	c.JSON(http.StatusOK, gin.H{"timestep": scores.Timestep, "pairs": entries})
}

// ListTimesteps returns the stored timesteps of a run
func (h *CorrelationHandler) ListTimesteps(c *gin.Context) {
	runID, ok := h.runID(c)
	if !ok {
		return
	}
	timesteps, err := h.repo.ListTimesteps(c.Request.Context(), runID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"run_id": runID, "timesteps": timesteps})
}

// GetStep returns the stored ranking and counts of one timestep
func (h *CorrelationHandler) GetStep(c *gin.Context) {
	runID, ok := h.runID(c)
	if !ok {
		return
	}
	timestep, err := strconv.Atoi(c.Param("timestep"))
	if err != nil || timestep < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid timestep"})
		return
	}
	step, err := h.repo.GetStep(c.Request.Context(), runID, timestep)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"run_id":     runID,
		"timestep":   step.Timestep,
		"evaluated":  step.Evaluated,
		"degenerate": step.Degenerate,
		"top":        step.Top,
	})
}

func (h *CorrelationHandler) runID(c *gin.Context) (core.RunID, bool) {
	if h.repo == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Result persistence is disabled"})
		return "", false
	}
	runID, err := core.ParseRunID(c.Param("runId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid run ID"})
		return "", false
	}
	return runID, true
}

func (h *CorrelationHandler) fail(c *gin.Context, err error) {
	status := errors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error().Err(err).Str("path", c.FullPath()).Msg("Request failed")
	}
	c.JSON(status, gin.H{"error": err.Error(), "code": errors.GetCode(err)})
}

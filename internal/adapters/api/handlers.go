package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/alejandrodnm/straddlebot/config"
	"github.com/alejandrodnm/straddlebot/internal/application/optimize"
	"github.com/alejandrodnm/straddlebot/internal/application/session"
	"github.com/alejandrodnm/straddlebot/internal/domain"
)

const defaultRunsLimit = 20

// health handles GET /health
func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"symbol":   s.deps.Dataset.Symbol,
		"interval": s.deps.Dataset.Interval,
		"bars":     len(s.deps.Dataset.Bars),
	})
}

// listProfiles handles GET /api/v1/profiles
func (s *Server) listProfiles(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"default":  s.deps.Profile,
		"profiles": config.Profiles(),
	})
}

// listRuns handles GET /api/v1/runs?limit=N
func (s *Server) listRuns(c *gin.Context) {
	if s.deps.Storage == nil {
		abortError(c, http.StatusServiceUnavailable, "STORAGE_DISABLED", "run storage is disabled")
		return
	}

	limit := defaultRunsLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			abortError(c, http.StatusBadRequest, "INVALID_REQUEST", "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	runs, err := s.deps.Storage.ListRuns(c.Request.Context(), limit)
	if err != nil {
		slog.Error("api: list runs", "err", err)
		abortError(c, http.StatusInternalServerError, "STORAGE_ERROR", err.Error())
		return
	}
	if runs == nil {
		runs = []domain.RunSummary{}
	}
	c.JSON(http.StatusOK, RunsResponse{Runs: runs, Count: len(runs)})
}

// getRun handles GET /api/v1/runs/:id
func (s *Server) getRun(c *gin.Context) {
	if s.deps.Storage == nil {
		abortError(c, http.StatusServiceUnavailable, "STORAGE_DISABLED", "run storage is disabled")
		return
	}

	id := c.Param("id")
	rec, err := s.deps.Storage.GetRun(c.Request.Context(), id)
	switch {
	case errors.Is(err, domain.ErrRunNotFound):
		abortError(c, http.StatusNotFound, "RUN_NOT_FOUND", "run "+id+" not found")
		return
	case err != nil:
		slog.Error("api: get run", "run_id", id, "err", err)
		abortError(c, http.StatusInternalServerError, "STORAGE_ERROR", err.Error())
		return
	}
	c.JSON(http.StatusOK, rec)
}

// runBacktest handles POST /api/v1/backtests
func (s *Server) runBacktest(c *gin.Context) {
	var req BacktestRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		abortError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	if len(s.deps.Dataset.Bars) == 0 {
		abortError(c, http.StatusServiceUnavailable, "NO_DATA", "no market data loaded")
		return
	}

	profile := s.deps.Profile
	params := s.deps.Base
	if req.Profile != "" {
		p, err := config.ApplyProfile(params, req.Profile)
		if err != nil {
			abortError(c, http.StatusBadRequest, "INVALID_PROFILE", err.Error())
			return
		}
		params, profile = p, strings.ToUpper(req.Profile)
	}

	params, err := optimize.Apply(params, req.Overrides)
	if err != nil {
		abortError(c, http.StatusBadRequest, "INVALID_OVERRIDE", err.Error())
		return
	}

	out, err := s.deps.Session.Execute(c.Request.Context(), session.Request{
		Params:  params,
		Label:   req.Label,
		Profile: profile,
		Symbol:  s.deps.Dataset.Symbol,
	}, s.deps.Dataset.Bars)
	if err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			abortErrorDetails(c, http.StatusUnprocessableEntity, "INVALID_PARAMS", verr.Error(),
				map[string]any{"problems": verr.Problems})
			return
		}
		slog.Error("api: backtest failed", "err", err)
		abortError(c, http.StatusInternalServerError, "BACKTEST_FAILED", err.Error())
		return
	}

	c.JSON(http.StatusCreated, newBacktestResponse(out.Record, out.Stored, req.IncludeTrades))
}

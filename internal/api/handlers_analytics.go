package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/portfolio-ledger/internal/models"
	"github.com/portfolio-ledger/internal/service"
	"github.com/portfolio-ledger/internal/types"
)

// TimelineResponse wraps a timeline with its scope.
type TimelineResponse struct {
	Scope  types.TimelineScope    `json:"scope"`
	Points []models.TimelinePoint `json:"points"`
	Count  int                    `json:"count"`
}

// PerformanceResponse wraps metrics with the series they describe.
type PerformanceResponse struct {
	Scope   types.TimelineScope        `json:"scope"`
	Key     string                     `json:"key,omitempty"`
	Metrics *models.PerformanceMetrics `json:"metrics"`
}

// handleGetPnL handles GET /api/pnl
func (s *Server) handleGetPnL(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := models.SnapshotFilter{
		WalletLabel: query.Get("wallet"),
		Coin:        query.Get("coin"),
		Blockchain:  query.Get("chain"),
		Protocol:    query.Get("protocol"),
	}

	result, err := s.portfolioService.GetPnL(r.Context(), filter)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if result.Records == nil {
		result.Records = []models.PnLRecord{}
	}

	respondJSON(w, http.StatusOK, result)
}

// handleGetTimeline handles GET /api/timeline/{scope}
func (s *Server) handleGetTimeline(w http.ResponseWriter, r *http.Request) {
	scope, ok := types.ParseTimelineScope(mux.Vars(r)["scope"])
	if !ok {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "scope must be portfolio, wallets or assets", map[string]interface{}{
			"scope": mux.Vars(r)["scope"],
		})
		return
	}

	points, err := s.portfolioService.GetTimeline(r.Context(), scope)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if points == nil {
		points = []models.TimelinePoint{}
	}

	respondJSON(w, http.StatusOK, TimelineResponse{
		Scope:  scope,
		Points: points,
		Count:  len(points),
	})
}

// handleGetPerformance handles GET /api/performance/{scope}?key=
func (s *Server) handleGetPerformance(w http.ResponseWriter, r *http.Request) {
	scope, ok := types.ParseTimelineScope(mux.Vars(r)["scope"])
	if !ok {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "scope must be portfolio, wallets or assets", map[string]interface{}{
			"scope": mux.Vars(r)["scope"],
		})
		return
	}
	key := r.URL.Query().Get("key")

	metrics, err := s.portfolioService.GetPerformance(r.Context(), scope, key)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, PerformanceResponse{
		Scope:   scope,
		Key:     key,
		Metrics: metrics,
	})
}

// handleGetBreakdown handles GET /api/breakdown
func (s *Server) handleGetBreakdown(w http.ResponseWriter, r *http.Request) {
	breakdown, err := s.portfolioService.GetBreakdown(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, breakdown)
}

// handleGetFlowAdjusted handles GET /api/performance/flow-adjusted
func (s *Server) handleGetFlowAdjusted(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	analysis, ok := types.ParseAnalysisType(query.Get("type"))
	if !ok {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "type must be assets or protocol_positions", map[string]interface{}{
			"type": query.Get("type"),
		})
		return
	}

	source, ok := types.ParseFlowSource(query.Get("source"))
	if !ok {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "source must be manual, classified or all", map[string]interface{}{
			"source": query.Get("source"),
		})
		return
	}
	if err := service.ValidateFlowSource(analysis, source); err != nil {
		respondServiceError(w, r, err)
		return
	}

	input := service.FlowAdjustedInput{
		Analysis: analysis,
		Source:   source,
		Items:    splitItems(query.Get("items")),
	}
	if periodStr := query.Get("period"); periodStr != "" {
		period, err := strconv.Atoi(periodStr)
		if err != nil || period <= 0 {
			respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "period must be a positive number of days", map[string]interface{}{
				"period": periodStr,
			})
			return
		}
		input.PeriodDays = period
	}

	report, err := s.portfolioService.GetFlowAdjusted(r.Context(), input)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if report.Items == nil {
		report.Items = []models.FlowAdjustedItem{}
	}

	respondJSON(w, http.StatusOK, report)
}

// splitItems reads a comma separated item list, dropping blanks.
func splitItems(raw string) []string {
	var items []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			items = append(items, part)
		}
	}
	return items
}

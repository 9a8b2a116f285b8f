package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/portfolio-ledger/internal/models"
	"github.com/portfolio-ledger/internal/parse"
)

// ClassifyResponse summarizes a classification run without the per
// transaction detail.
type ClassifyResponse struct {
	RunID           string                     `json:"runId"`
	ClassifiedAt    time.Time                  `json:"classifiedAt"`
	Classifications int                        `json:"classifications"`
	Summaries       []models.WalletFlowSummary `json:"summaries"`
}

// CapitalFlowRequest is the body of POST /api/capital-flows.
type CapitalFlowRequest struct {
	Item      string  `json:"item"`
	TokenFlow float64 `json:"tokenFlow"`
	USDFlow   float64 `json:"usdFlow"`
	Timestamp string  `json:"timestamp"`
	FlowType  string  `json:"flowType,omitempty"`
}

// handleClassifyFlows handles POST /api/flows/classify
func (s *Server) handleClassifyFlows(w http.ResponseWriter, r *http.Request) {
	run, err := s.flowService.ClassifyAll(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	summaries := run.Summaries
	if summaries == nil {
		summaries = []models.WalletFlowSummary{}
	}
	respondJSON(w, http.StatusOK, ClassifyResponse{
		RunID:           run.RunID,
		ClassifiedAt:    run.ClassifiedAt,
		Classifications: len(run.Classifications),
		Summaries:       summaries,
	})
}

// handleGetFlowSummary handles GET /api/flows/summary
func (s *Server) handleGetFlowSummary(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.flowService.GetSummaries(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if summaries == nil {
		summaries = []models.WalletFlowSummary{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"wallets": summaries,
		"count":   len(summaries),
	})
}

// handleListCapitalFlows handles GET /api/capital-flows
func (s *Server) handleListCapitalFlows(w http.ResponseWriter, r *http.Request) {
	flows, err := s.portfolioService.ListCapitalFlows(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if flows == nil {
		flows = []models.CapitalFlow{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"flows": flows,
		"count": len(flows),
	})
}

// handleAddCapitalFlow handles POST /api/capital-flows
func (s *Server) handleAddCapitalFlow(w http.ResponseWriter, r *http.Request) {
	var req CapitalFlowRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	ts, ok := parse.ParseTimestamp(req.Timestamp)
	if !ok {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "timestamp is not a recognised date", map[string]interface{}{
			"timestamp": req.Timestamp,
		})
		return
	}

	flow := &models.CapitalFlow{
		Item:      strings.TrimSpace(req.Item),
		TokenFlow: req.TokenFlow,
		USDFlow:   req.USDFlow,
		Timestamp: ts,
		FlowType:  req.FlowType,
	}
	if flow.FlowType == "" {
		flow.FlowType = "manual"
	}

	if err := s.portfolioService.AddCapitalFlow(r.Context(), flow); err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, flow)
}

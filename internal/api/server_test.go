package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"

	apperrors "github.com/portfolio-ledger/internal/errors"
	"github.com/portfolio-ledger/internal/logging"
	"github.com/portfolio-ledger/internal/models"
	"github.com/portfolio-ledger/internal/service"
	"github.com/portfolio-ledger/internal/types"
)

// Mock services for testing
type mockPortfolioService struct {
	pnlFunc          func(ctx context.Context, filter models.SnapshotFilter) (*service.PnLResult, error)
	timelineFunc     func(ctx context.Context, scope types.TimelineScope) ([]models.TimelinePoint, error)
	performanceFunc  func(ctx context.Context, scope types.TimelineScope, key string) (*models.PerformanceMetrics, error)
	breakdownFunc    func(ctx context.Context) (*models.Breakdown, error)
	flowAdjustedFunc func(ctx context.Context, input service.FlowAdjustedInput) (*models.FlowAdjustedReport, error)
	listFlowsFunc    func(ctx context.Context) ([]models.CapitalFlow, error)
	addFlowFunc      func(ctx context.Context, flow *models.CapitalFlow) error
}

func (m *mockPortfolioService) GetPnL(ctx context.Context, filter models.SnapshotFilter) (*service.PnLResult, error) {
	if m.pnlFunc != nil {
		return m.pnlFunc(ctx, filter)
	}
	return &service.PnLResult{}, nil
}

func (m *mockPortfolioService) GetTimeline(ctx context.Context, scope types.TimelineScope) ([]models.TimelinePoint, error) {
	if m.timelineFunc != nil {
		return m.timelineFunc(ctx, scope)
	}
	return nil, nil
}

func (m *mockPortfolioService) GetPerformance(ctx context.Context, scope types.TimelineScope, key string) (*models.PerformanceMetrics, error) {
	if m.performanceFunc != nil {
		return m.performanceFunc(ctx, scope, key)
	}
	return &models.PerformanceMetrics{}, nil
}

func (m *mockPortfolioService) GetBreakdown(ctx context.Context) (*models.Breakdown, error) {
	if m.breakdownFunc != nil {
		return m.breakdownFunc(ctx)
	}
	return &models.Breakdown{}, nil
}

func (m *mockPortfolioService) GetFlowAdjusted(ctx context.Context, input service.FlowAdjustedInput) (*models.FlowAdjustedReport, error) {
	if m.flowAdjustedFunc != nil {
		return m.flowAdjustedFunc(ctx, input)
	}
	return &models.FlowAdjustedReport{PeriodDays: input.PeriodDays}, nil
}

func (m *mockPortfolioService) ListCapitalFlows(ctx context.Context) ([]models.CapitalFlow, error) {
	if m.listFlowsFunc != nil {
		return m.listFlowsFunc(ctx)
	}
	return nil, nil
}

func (m *mockPortfolioService) AddCapitalFlow(ctx context.Context, flow *models.CapitalFlow) error {
	if m.addFlowFunc != nil {
		return m.addFlowFunc(ctx, flow)
	}
	return nil
}

type mockFlowService struct {
	classifyFunc  func(ctx context.Context) (*models.ClassificationRun, error)
	summariesFunc func(ctx context.Context) ([]models.WalletFlowSummary, error)
}

func (m *mockFlowService) ClassifyAll(ctx context.Context) (*models.ClassificationRun, error) {
	if m.classifyFunc != nil {
		return m.classifyFunc(ctx)
	}
	return &models.ClassificationRun{RunID: "run-1"}, nil
}

func (m *mockFlowService) GetSummaries(ctx context.Context) ([]models.WalletFlowSummary, error) {
	if m.summariesFunc != nil {
		return m.summariesFunc(ctx)
	}
	return nil, nil
}

// createTestServer builds a server around the given mocks without binding a
// port. Nil mocks are replaced with zero-value ones.
func createTestServer(portfolio *mockPortfolioService, flows *mockFlowService) *Server {
	if portfolio == nil {
		portfolio = &mockPortfolioService{}
	}
	if flows == nil {
		flows = &mockFlowService{}
	}
	config := &ServerConfig{
		Host:              "localhost",
		Port:              "8080",
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
		RequestsPerSecond: 1000,
		Burst:             1000,
	}

	server := &Server{
		router:           mux.NewRouter(),
		portfolioService: portfolio,
		flowService:      flows,
		config:           config,
		logger:           logging.GetGlobalLogger(),
	}
	server.setupRouter()
	return server
}

func serve(server *Server, method, target string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) types.ServiceError {
	t.Helper()
	var resp ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode error response: %v", err)
	}
	return resp.Error
}

// TestHealthEndpoint tests the health check endpoint
func TestHealthEndpoint(t *testing.T) {
	server := createTestServer(nil, nil)

	w := serve(server, "GET", "/health", nil)
	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	var response map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if response["status"] != "healthy" {
		t.Errorf("Expected status 'healthy', got '%v'", response["status"])
	}
}

func TestHealthEndpoint_DependencyDown(t *testing.T) {
	server := createTestServer(nil, nil)
	server.healthChecks = map[string]HealthCheck{
		"postgres": func(ctx context.Context) error { return nil },
		"redis":    func(ctx context.Context) error { return errors.New("connection refused") },
	}

	w := serve(server, "GET", "/health", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("Expected status 503, got %d", w.Code)
	}

	var response struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if response.Status != "degraded" {
		t.Errorf("Expected status 'degraded', got '%s'", response.Status)
	}
	if response.Checks["postgres"] != "ok" || response.Checks["redis"] != "unavailable" {
		t.Errorf("Unexpected checks: %v", response.Checks)
	}
}

func TestGetPnL_PassesFilter(t *testing.T) {
	var got models.SnapshotFilter
	portfolio := &mockPortfolioService{
		pnlFunc: func(ctx context.Context, filter models.SnapshotFilter) (*service.PnLResult, error) {
			got = filter
			return &service.PnLResult{
				Records: []models.PnLRecord{{Coin: "ETH", PnLValue: 12.5}},
				Summary: models.PnLSummary{TotalPnL: 12.5, PositionsWithPnL: 1},
			}, nil
		},
	}
	server := createTestServer(portfolio, nil)

	w := serve(server, "GET", "/api/pnl?wallet=main&coin=ETH", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if got.WalletLabel != "main" || got.Coin != "ETH" {
		t.Errorf("Filter not passed through: %+v", got)
	}

	var response service.PnLResult
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(response.Records) != 1 || response.Summary.TotalPnL != 12.5 {
		t.Errorf("Unexpected response: %+v", response)
	}
}

func TestGetPnL_EmptyRecordsEncodeAsArray(t *testing.T) {
	server := createTestServer(nil, nil)

	w := serve(server, "GET", "/api/pnl", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if !bytes.Contains(w.Body.Bytes(), []byte(`"records":[]`)) {
		t.Errorf("Expected empty records array, got %s", w.Body.String())
	}
}

func TestGetTimeline(t *testing.T) {
	ts := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	portfolio := &mockPortfolioService{
		timelineFunc: func(ctx context.Context, scope types.TimelineScope) ([]models.TimelinePoint, error) {
			return []models.TimelinePoint{
				{Timestamp: ts, Group: "main", Value: 100, Rows: 2},
				{Timestamp: ts, Group: "cold", Value: 50, Rows: 1},
			}, nil
		},
	}
	server := createTestServer(portfolio, nil)

	tests := []struct {
		name       string
		path       string
		wantStatus int
		wantScope  types.TimelineScope
	}{
		{"wallets", "/api/timeline/wallets", http.StatusOK, types.ScopeWallets},
		{"singular alias", "/api/timeline/asset", http.StatusOK, types.ScopeAssets},
		{"unknown scope", "/api/timeline/chains", http.StatusBadRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(server, "GET", tt.path, nil)
			if w.Code != tt.wantStatus {
				t.Fatalf("Expected status %d, got %d", tt.wantStatus, w.Code)
			}
			if tt.wantStatus != http.StatusOK {
				if e := decodeError(t, w); e.Code != ErrCodeInvalidInput {
					t.Errorf("Expected code %s, got %s", ErrCodeInvalidInput, e.Code)
				}
				return
			}
			var response TimelineResponse
			if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
				t.Fatalf("Failed to decode response: %v", err)
			}
			if response.Scope != tt.wantScope || response.Count != 2 {
				t.Errorf("Unexpected response: %+v", response)
			}
		})
	}
}

func TestGetPerformance(t *testing.T) {
	portfolio := &mockPortfolioService{
		performanceFunc: func(ctx context.Context, scope types.TimelineScope, key string) (*models.PerformanceMetrics, error) {
			if scope == types.ScopeAssets && key == "DOGE" {
				return nil, apperrors.NewNotFoundError("series", key)
			}
			if scope == types.ScopeAssets && key == "" {
				return nil, apperrors.NewInvalidParameterError("key", "required")
			}
			return &models.PerformanceMetrics{
				Windows:      map[string]models.WindowMetrics{"1d": {ReturnPct: 1.5, Days: 1}},
				CurrentValue: 1200,
				Points:       3,
			}, nil
		},
	}
	server := createTestServer(portfolio, nil)

	tests := []struct {
		name       string
		path       string
		wantStatus int
		wantCode   string
	}{
		{"portfolio", "/api/performance/portfolio", http.StatusOK, ""},
		{"asset with key", "/api/performance/assets?key=ETH", http.StatusOK, ""},
		{"missing key", "/api/performance/assets", http.StatusBadRequest, "INVALID_PARAMETER"},
		{"unknown series", "/api/performance/assets?key=DOGE", http.StatusNotFound, "NOT_FOUND"},
		{"bad scope", "/api/performance/everything", http.StatusBadRequest, ErrCodeInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(server, "GET", tt.path, nil)
			if w.Code != tt.wantStatus {
				t.Fatalf("Expected status %d, got %d: %s", tt.wantStatus, w.Code, w.Body.String())
			}
			if tt.wantCode != "" {
				if e := decodeError(t, w); e.Code != tt.wantCode {
					t.Errorf("Expected code %s, got %s", tt.wantCode, e.Code)
				}
				return
			}
			var response PerformanceResponse
			if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
				t.Fatalf("Failed to decode response: %v", err)
			}
			if response.Metrics == nil || response.Metrics.CurrentValue != 1200 {
				t.Errorf("Unexpected metrics: %+v", response.Metrics)
			}
		})
	}
}

func TestGetFlowAdjusted_ParsesQuery(t *testing.T) {
	var got service.FlowAdjustedInput
	portfolio := &mockPortfolioService{
		flowAdjustedFunc: func(ctx context.Context, input service.FlowAdjustedInput) (*models.FlowAdjustedReport, error) {
			got = input
			return &models.FlowAdjustedReport{PeriodDays: input.PeriodDays}, nil
		},
	}
	server := createTestServer(portfolio, nil)

	w := serve(server, "GET", "/api/performance/flow-adjusted?type=protocols&period=14&items=ETH,%20USDC%20%7C%20Aave,&source=manual", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	if got.Analysis != types.AnalysisProtocolPositions {
		t.Errorf("Expected protocol analysis, got %s", got.Analysis)
	}
	if got.PeriodDays != 14 {
		t.Errorf("Expected period 14, got %d", got.PeriodDays)
	}
	if got.Source != types.FlowSourceManual {
		t.Errorf("Expected source manual, got %s", got.Source)
	}
	if len(got.Items) != 2 || got.Items[0] != "ETH" || got.Items[1] != "USDC | Aave" {
		t.Errorf("Unexpected items: %q", got.Items)
	}
	if !bytes.Contains(w.Body.Bytes(), []byte(`"items":[]`)) {
		t.Errorf("Expected empty items array, got %s", w.Body.String())
	}
}

func TestGetFlowAdjusted_Defaults(t *testing.T) {
	var got service.FlowAdjustedInput
	portfolio := &mockPortfolioService{
		flowAdjustedFunc: func(ctx context.Context, input service.FlowAdjustedInput) (*models.FlowAdjustedReport, error) {
			got = input
			return &models.FlowAdjustedReport{}, nil
		},
	}
	server := createTestServer(portfolio, nil)

	w := serve(server, "GET", "/api/performance/flow-adjusted", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if got.Analysis != types.AnalysisAssets || got.Source != types.FlowSourceManual {
		t.Errorf("Unexpected defaults: %+v", got)
	}
	if got.PeriodDays != 0 || got.Items != nil {
		t.Errorf("Expected period and items left to the service, got %+v", got)
	}
}

func TestGetFlowAdjusted_InvalidQuery(t *testing.T) {
	server := createTestServer(nil, nil)

	tests := []struct {
		name  string
		query string
	}{
		{"bad type", "type=chains"},
		{"bad source", "source=guess"},
		{"non numeric period", "period=month"},
		{"zero period", "period=0"},
		{"classified flows for protocol positions", "type=protocol_positions&source=classified"},
		{"all flows for protocol positions", "type=protocols&source=all"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(server, "GET", "/api/performance/flow-adjusted?"+tt.query, nil)
			if w.Code != http.StatusBadRequest {
				t.Errorf("Expected status 400, got %d", w.Code)
			}
		})
	}
}

func TestGetBreakdown_DatabaseErrorHidesDetail(t *testing.T) {
	portfolio := &mockPortfolioService{
		breakdownFunc: func(ctx context.Context) (*models.Breakdown, error) {
			return nil, apperrors.NewDatabaseError("load snapshots", errors.New("dial tcp 10.0.0.5:9000: refused"))
		},
	}
	server := createTestServer(portfolio, nil)

	w := serve(server, "GET", "/api/breakdown", nil)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("Expected status 500, got %d", w.Code)
	}
	e := decodeError(t, w)
	if e.Code != "DATABASE_ERROR" {
		t.Errorf("Expected code DATABASE_ERROR, got %s", e.Code)
	}
	if bytes.Contains([]byte(e.Message), []byte("10.0.0.5")) || e.Details != nil {
		t.Errorf("Internal detail leaked: %+v", e)
	}
}

func TestClassifyFlows(t *testing.T) {
	flows := &mockFlowService{
		classifyFunc: func(ctx context.Context) (*models.ClassificationRun, error) {
			return &models.ClassificationRun{
				RunID:           "run-42",
				Classifications: make([]models.FlowClassification, 3),
				Summaries:       []models.WalletFlowSummary{{WalletAddress: "0xabc", MoneyIn: 300}},
			}, nil
		},
	}
	server := createTestServer(nil, flows)

	w := serve(server, "POST", "/api/flows/classify", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var response ClassifyResponse
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if response.RunID != "run-42" || response.Classifications != 3 {
		t.Errorf("Unexpected response: %+v", response)
	}
	if len(response.Summaries) != 1 || response.Summaries[0].MoneyIn != 300 {
		t.Errorf("Unexpected summaries: %+v", response.Summaries)
	}

	if w := serve(server, "GET", "/api/flows/classify", nil); w.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected GET to be rejected with 405, got %d", w.Code)
	}
}

func TestGetFlowSummary_Unavailable(t *testing.T) {
	flows := &mockFlowService{
		summariesFunc: func(ctx context.Context) ([]models.WalletFlowSummary, error) {
			return nil, apperrors.NewServiceUnavailableError("flow store")
		},
	}
	server := createTestServer(nil, flows)

	w := serve(server, "GET", "/api/flows/summary", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status 503, got %d", w.Code)
	}
}

func TestAddCapitalFlow(t *testing.T) {
	var stored *models.CapitalFlow
	portfolio := &mockPortfolioService{
		addFlowFunc: func(ctx context.Context, flow *models.CapitalFlow) error {
			if flow.Item == "" {
				return apperrors.NewInvalidParameterError("item", "required")
			}
			stored = flow
			return nil
		},
	}
	server := createTestServer(portfolio, nil)

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"valid", `{"item":"ETH","tokenFlow":0.5,"usdFlow":1500,"timestamp":"2025-03-01"}`, http.StatusCreated},
		{"unknown field", `{"item":"ETH","usd":1500,"timestamp":"2025-03-01"}`, http.StatusBadRequest},
		{"bad timestamp", `{"item":"ETH","usdFlow":1500,"timestamp":"yesterday"}`, http.StatusBadRequest},
		{"missing item", `{"usdFlow":1500,"timestamp":"2025-03-01"}`, http.StatusBadRequest},
		{"malformed", `{"item":`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(server, "POST", "/api/capital-flows", []byte(tt.body))
			if w.Code != tt.wantStatus {
				t.Errorf("Expected status %d, got %d: %s", tt.wantStatus, w.Code, w.Body.String())
			}
		})
	}

	if stored == nil {
		t.Fatal("Expected the valid flow to be stored")
	}
	want := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	if !stored.Timestamp.Equal(want) || stored.FlowType != "manual" || stored.USDFlow != 1500 {
		t.Errorf("Unexpected stored flow: %+v", stored)
	}
}

func TestListCapitalFlows_EmptyIsArray(t *testing.T) {
	server := createTestServer(nil, nil)

	w := serve(server, "GET", "/api/capital-flows", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if !bytes.Contains(w.Body.Bytes(), []byte(`"flows":[]`)) {
		t.Errorf("Expected empty flows array, got %s", w.Body.String())
	}
}

func TestCORSPreflight(t *testing.T) {
	server := createTestServer(nil, nil)

	req := httptest.NewRequest("OPTIONS", "/api/pnl", nil)
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Expected CORS origin header, got %q", got)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	portfolio := &mockPortfolioService{
		breakdownFunc: func(ctx context.Context) (*models.Breakdown, error) {
			panic("boom")
		},
	}
	server := createTestServer(portfolio, nil)

	w := serve(server, "GET", "/api/breakdown", nil)
	if w.Code != http.StatusInternalServerError {
		t.Errorf("Expected status 500, got %d", w.Code)
	}
	if e := decodeError(t, w); e.Code != ErrCodeInternalError {
		t.Errorf("Expected code %s, got %s", ErrCodeInternalError, e.Code)
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(1, 2)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	if !rl.Allow("a") || !rl.Allow("a") {
		t.Fatal("Expected burst of 2 to be allowed")
	}
	if rl.Allow("a") {
		t.Error("Expected third request to be limited")
	}
	if !rl.Allow("b") {
		t.Error("Expected a separate bucket per client")
	}

	now = now.Add(time.Minute)
	if !rl.Allow("a") {
		t.Error("Expected tokens to refill")
	}
	if dropped := rl.Prune(30 * time.Second); dropped != 1 {
		t.Errorf("Expected idle client b to be pruned, dropped %d", dropped)
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	handler := RateLimitMiddleware(rl)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func(path string) int {
		req := httptest.NewRequest("GET", path, nil)
		req.Header.Set("X-Client-ID", "client-1")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w.Code
	}

	if code := send("/api/pnl"); code != http.StatusOK {
		t.Fatalf("Expected first request to pass, got %d", code)
	}
	if code := send("/api/pnl"); code != http.StatusTooManyRequests {
		t.Errorf("Expected 429, got %d", code)
	}
	if code := send("/health"); code != http.StatusOK {
		t.Errorf("Expected health to bypass the limiter, got %d", code)
	}
}

func TestClientKey(t *testing.T) {
	req := httptest.NewRequest("GET", "/api/pnl", nil)
	req.RemoteAddr = "192.0.2.7:51234"
	if got := clientKey(req); got != "192.0.2.7" {
		t.Errorf("Expected remote IP, got %q", got)
	}
	req.Header.Set("X-Client-ID", "dashboard")
	if got := clientKey(req); got != "dashboard" {
		t.Errorf("Expected client id header, got %q", got)
	}
}

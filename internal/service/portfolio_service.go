package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/portfolio-ledger/internal/config"
	apperrors "github.com/portfolio-ledger/internal/errors"
	"github.com/portfolio-ledger/internal/logging"
	"github.com/portfolio-ledger/internal/models"
	"github.com/portfolio-ledger/internal/retry"
	"github.com/portfolio-ledger/internal/types"
)

// PortfolioService answers portfolio questions over the stored snapshots:
// PnL, timelines, performance metrics, breakdowns and flow-adjusted returns.
type PortfolioService struct {
	snapshots SnapshotRepository
	capital   CapitalFlowRepository
	flows     FlowRepository
	cache     MetricsCache
	analysis  *config.AnalysisFile
	cfg       config.AnalyticsConfig
	retry     *retry.RetryConfig
	logger    *logging.Logger
}

// NewPortfolioService creates a new portfolio service. cache, capital and
// flows may be nil; the features that need them then degrade to empty data.
func NewPortfolioService(
	snapshots SnapshotRepository,
	capital CapitalFlowRepository,
	flows FlowRepository,
	cache MetricsCache,
	analysis *config.AnalysisFile,
	cfg config.AnalyticsConfig,
) *PortfolioService {
	if analysis == nil {
		analysis = &config.AnalysisFile{}
	}
	return &PortfolioService{
		snapshots: snapshots,
		capital:   capital,
		flows:     flows,
		cache:     cache,
		analysis:  analysis,
		cfg:       cfg,
		retry:     retry.DefaultRetryConfig(),
		logger:    logging.GetGlobalLogger().WithComponent("portfolio_service"),
	}
}

// SetRetryConfig replaces the backoff used for repository loads.
func (s *PortfolioService) SetRetryConfig(cfg *retry.RetryConfig) {
	s.retry = cfg
}

// PnLResult is the output of GetPnL.
type PnLResult struct {
	Records []models.PnLRecord `json:"records"`
	Summary models.PnLSummary  `json:"summary"`
}

// FlowAdjustedInput selects the items, period and flow source of a
// flow-adjusted report.
type FlowAdjustedInput struct {
	Analysis   types.AnalysisType
	PeriodDays int
	Items      []string
	Source     types.FlowSource
}

// ValidateFlowSource rejects flow sources that cannot be attributed to the
// items of an analysis. Classified transfers carry only a token symbol, so
// they can be matched to asset items but not to "COIN | Protocol" items.
func ValidateFlowSource(analysis types.AnalysisType, source types.FlowSource) error {
	if analysis == types.AnalysisProtocolPositions && source != "" && source != types.FlowSourceManual {
		return apperrors.NewInvalidParameterError("source",
			fmt.Sprintf("%s flows cannot be attributed to %s items; use manual", source, analysis))
	}
	return nil
}

func (s *PortfolioService) loadSnapshots(ctx context.Context, filter models.SnapshotFilter) ([]models.PositionSnapshot, error) {
	var rows []models.PositionSnapshot
	err := retry.Do(ctx, s.retry, func(ctx context.Context, attempt int) error {
		var err error
		rows, err = s.snapshots.Query(ctx, filter)
		return err
	})
	if err != nil {
		return nil, apperrors.NewDatabaseError("load snapshots", err)
	}
	return rows, nil
}

// GetPnL computes per-snapshot PnL for the rows matching filter.
func (s *PortfolioService) GetPnL(ctx context.Context, filter models.SnapshotFilter) (*PnLResult, error) {
	rows, err := s.loadSnapshots(ctx, filter)
	if err != nil {
		return nil, err
	}
	records := CalculatePnL(rows, CanonicalPositionKey)
	return &PnLResult{Records: records, Summary: SummarizePnL(records)}, nil
}

// GetTimeline aggregates every stored snapshot at the given scope.
func (s *PortfolioService) GetTimeline(ctx context.Context, scope types.TimelineScope) ([]models.TimelinePoint, error) {
	rows, err := s.loadSnapshots(ctx, models.SnapshotFilter{})
	if err != nil {
		return nil, err
	}
	switch scope {
	case types.ScopePortfolio:
		return PortfolioTimeline(rows), nil
	case types.ScopeWallets:
		return WalletTimeline(rows), nil
	case types.ScopeAssets:
		return AssetTimeline(rows), nil
	default:
		return nil, apperrors.NewInvalidParameterError("scope", fmt.Sprintf("unknown scope %q", scope))
	}
}

// GetPerformance returns the metrics of one series: the portfolio total, one
// wallet label, or one coin. Results are served from the metrics cache when
// present; cache failures only cost a recomputation.
func (s *PortfolioService) GetPerformance(ctx context.Context, scope types.TimelineScope, key string) (*models.PerformanceMetrics, error) {
	key = strings.TrimSpace(key)
	if scope == types.ScopePortfolio {
		key = "total"
	} else if key == "" {
		return nil, apperrors.NewInvalidParameterError("key", "required for scope "+string(scope))
	}
	logger := s.logger.WithFields(map[string]interface{}{"scope": scope, "key": key})

	if s.cache != nil {
		cached, ok, err := s.cache.GetMetrics(ctx, scope, key)
		if err != nil {
			logger.WithError(err).Warn("metrics cache read failed")
		} else if ok {
			return cached, nil
		}
	}

	timeline, err := s.GetTimeline(ctx, scope)
	if err != nil {
		return nil, err
	}
	group := key
	if scope == types.ScopePortfolio {
		group = ""
	}
	series := Series(timeline, group)
	if len(series) == 0 {
		return nil, apperrors.NewNotFoundError(string(scope), key)
	}

	metrics := CalculatePerformanceMetrics(series, s.cfg)
	if s.cache != nil {
		if err := s.cache.SetMetrics(ctx, scope, key, &metrics); err != nil {
			logger.WithError(err).Warn("metrics cache write failed")
		}
	}
	return &metrics, nil
}

// GetBreakdown splits the newest snapshot run.
func (s *PortfolioService) GetBreakdown(ctx context.Context) (*models.Breakdown, error) {
	rows, err := s.loadSnapshots(ctx, models.SnapshotFilter{})
	if err != nil {
		return nil, err
	}
	b := CalculateBreakdown(rows)
	return &b, nil
}

// GetFlowAdjusted measures the selected items net of capital flows. With no
// items the top items by current value are used.
func (s *PortfolioService) GetFlowAdjusted(ctx context.Context, input FlowAdjustedInput) (*models.FlowAdjustedReport, error) {
	if input.PeriodDays <= 0 {
		input.PeriodDays = s.cfg.FlowPeriodDays
	}
	if input.Source == "" {
		input.Source = types.FlowSourceManual
	}
	if err := ValidateFlowSource(input.Analysis, input.Source); err != nil {
		return nil, err
	}
	resolver := NewItemResolver(input.Analysis, s.analysis)

	var (
		rows       []models.PositionSnapshot
		manual     []models.CapitalFlow
		classified []models.FlowClassification
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		rows, err = s.loadSnapshots(gctx, models.SnapshotFilter{})
		return err
	})
	if s.capital != nil && input.Source != types.FlowSourceClassified {
		g.Go(func() error {
			var err error
			manual, err = s.capital.List(gctx)
			if err != nil {
				return apperrors.NewDatabaseError("load capital flows", err)
			}
			return nil
		})
	}
	if s.flows != nil && input.Source != types.FlowSourceManual {
		g.Go(func() error {
			var err error
			classified, err = s.flows.ListClassifications(gctx)
			if err != nil {
				return apperrors.NewDatabaseError("load flow classifications", err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	flows := append(manual, FlowsFromClassifications(classified, resolver)...)

	items := input.Items
	if len(items) == 0 {
		items = TopItemsByValue(rows, resolver, s.cfg.TopItems)
	}

	report := CalculateFlowAdjustedPerformance(rows, flows, resolver, items, input.PeriodDays)
	s.logger.WithFields(map[string]interface{}{
		"analysis": resolver.Analysis(),
		"items":    len(report.Items),
		"skipped":  len(report.Skipped),
		"flows":    len(flows),
	}).Debug("flow-adjusted report computed")
	return &report, nil
}

// ListCapitalFlows returns every manual capital flow.
func (s *PortfolioService) ListCapitalFlows(ctx context.Context) ([]models.CapitalFlow, error) {
	if s.capital == nil {
		return nil, nil
	}
	flows, err := s.capital.List(ctx)
	if err != nil {
		return nil, apperrors.NewDatabaseError("list capital flows", err)
	}
	return flows, nil
}

// AddCapitalFlow validates and records a manual capital flow, assigning an id
// when the caller left it empty.
func (s *PortfolioService) AddCapitalFlow(ctx context.Context, flow *models.CapitalFlow) error {
	if s.capital == nil {
		return apperrors.NewServiceUnavailableError("capital flow store")
	}
	if strings.TrimSpace(flow.Item) == "" {
		return apperrors.NewInvalidParameterError("item", "required")
	}
	if flow.Timestamp.IsZero() {
		return apperrors.NewInvalidParameterError("timestamp", "required")
	}
	if !isFinite(flow.USDFlow) || !isFinite(flow.TokenFlow) {
		return apperrors.NewInvalidParameterError("usdFlow", "must be a finite number")
	}
	if flow.ID == uuid.Nil {
		flow.ID = uuid.New()
	}
	if err := s.capital.Create(ctx, flow); err != nil {
		return apperrors.NewDatabaseError("create capital flow", err)
	}
	s.logger.WithFields(map[string]interface{}{
		"item":     flow.Item,
		"usd_flow": flow.USDFlow,
	}).Info("capital flow recorded")
	return nil
}

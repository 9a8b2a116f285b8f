package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/portfolio-ledger/internal/config"
	apperrors "github.com/portfolio-ledger/internal/errors"
	"github.com/portfolio-ledger/internal/logging"
	"github.com/portfolio-ledger/internal/models"
	"github.com/portfolio-ledger/internal/retry"
	"github.com/portfolio-ledger/internal/types"
)

// FlowService classifies the stored transfers of every own wallet and keeps
// the latest classification run.
type FlowService struct {
	wallets      WalletRepository
	transactions TransactionRepository
	flows        FlowRepository
	cache        MetricsCache
	analysis     *config.AnalysisFile
	configured   []config.WalletConfig
	cfg          config.AnalyticsConfig
	retry        *retry.RetryConfig
	logger       *logging.Logger
	now          func() time.Time
}

// NewFlowService creates a flow service. configured wallets are merged with
// the stored ones; friends of the analysis file with the stored registry.
func NewFlowService(
	wallets WalletRepository,
	transactions TransactionRepository,
	flows FlowRepository,
	cache MetricsCache,
	analysis *config.AnalysisFile,
	configured []config.WalletConfig,
	cfg config.AnalyticsConfig,
) *FlowService {
	if analysis == nil {
		analysis = &config.AnalysisFile{}
	}
	return &FlowService{
		wallets:      wallets,
		transactions: transactions,
		flows:        flows,
		cache:        cache,
		analysis:     analysis,
		configured:   configured,
		cfg:          cfg,
		retry:        retry.DefaultRetryConfig(),
		logger:       logging.GetGlobalLogger().WithComponent("flow_service"),
		now:          time.Now,
	}
}

// SetRetryConfig replaces the backoff used for repository calls.
func (s *FlowService) SetRetryConfig(cfg *retry.RetryConfig) {
	s.retry = cfg
}

// ownWallets merges stored and configured wallets, de-duplicated by
// canonical address.
func (s *FlowService) ownWallets(ctx context.Context) ([]string, error) {
	stored, err := s.wallets.List(ctx)
	if err != nil {
		return nil, apperrors.NewDatabaseError("list wallets", err)
	}

	seen := map[string]struct{}{}
	var addrs []string
	add := func(a string) {
		c := CanonicalAddress(a)
		if c == "" {
			return
		}
		if _, ok := seen[c]; ok {
			return
		}
		seen[c] = struct{}{}
		addrs = append(addrs, c)
	}
	for _, w := range stored {
		add(w.Address)
	}
	for _, w := range s.configured {
		add(w.Address)
	}
	return addrs, nil
}

func (s *FlowService) knownAddresses(ctx context.Context) ([]models.KnownAddress, error) {
	known, err := s.wallets.ListKnownAddresses(ctx)
	if err != nil {
		return nil, apperrors.NewDatabaseError("list known addresses", err)
	}
	for _, f := range s.analysis.Friends {
		known = append(known, models.KnownAddress{
			Address: f.Address,
			Name:    f.Name,
			Kind:    types.AddressKindFriend,
		})
	}
	return known, nil
}

// ClassifyAll classifies every stored transfer of the own wallets, stores the
// run and returns it with its per-wallet summaries.
func (s *FlowService) ClassifyAll(ctx context.Context) (*models.ClassificationRun, error) {
	start := s.now()

	wallets, err := s.ownWallets(ctx)
	if err != nil {
		return nil, err
	}
	if len(wallets) == 0 {
		return nil, apperrors.NewInvalidParameterError("wallets", "no wallets configured")
	}
	known, err := s.knownAddresses(ctx)
	if err != nil {
		return nil, err
	}

	var txs []models.Transaction
	err = retry.Do(ctx, s.retry, func(ctx context.Context, attempt int) error {
		var err error
		txs, err = s.transactions.ListByWallets(ctx, wallets)
		return err
	})
	if err != nil {
		return nil, apperrors.NewDatabaseError("load transactions", err)
	}

	classifier := NewFlowClassifier(wallets, NewCounterpartyRegistry(known), nil, s.cfg)
	classifications := classifier.Classify(txs)

	run := &models.ClassificationRun{
		RunID:           uuid.NewString(),
		ClassifiedAt:    s.now().UTC(),
		Classifications: classifications,
		Summaries:       SummarizeWalletFlows(classifications),
	}

	err = retry.Do(ctx, s.retry, func(ctx context.Context, attempt int) error {
		return s.flows.SaveRun(ctx, run)
	})
	if err != nil {
		return nil, apperrors.NewDatabaseError("save classification run", err)
	}
	if s.cache != nil {
		if err := s.cache.InvalidateMetrics(ctx); err != nil {
			s.logger.WithError(err).Warn("metrics cache invalidation failed")
		}
	}

	s.logger.WithFields(map[string]interface{}{
		"run_id":         run.RunID,
		"wallets":        len(wallets),
		"transactions":   len(txs),
		"net_investment": NetInvestment(classifications).StringFixed(2),
	}).WithDuration(s.now().Sub(start)).Info("flow classification completed")
	return run, nil
}

// GetSummaries rebuilds the per-wallet summaries from the stored
// classifications.
func (s *FlowService) GetSummaries(ctx context.Context) ([]models.WalletFlowSummary, error) {
	classifications, err := s.flows.ListClassifications(ctx)
	if err != nil {
		return nil, apperrors.NewDatabaseError("list flow classifications", err)
	}
	return SummarizeWalletFlows(classifications), nil
}

// RegisterWallets stores the configured wallets so later runs see them even
// without configuration.
func (s *FlowService) RegisterWallets(ctx context.Context) error {
	for _, w := range s.configured {
		wallet := &models.Wallet{Address: CanonicalAddress(w.Address), Label: w.Label}
		if err := s.wallets.Upsert(ctx, wallet); err != nil {
			return apperrors.NewDatabaseError("upsert wallet", err)
		}
	}
	return nil
}

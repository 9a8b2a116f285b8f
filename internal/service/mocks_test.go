package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/portfolio-ledger/internal/models"
	"github.com/portfolio-ledger/internal/retry"
	"github.com/portfolio-ledger/internal/types"
)

// Mock repositories for testing

var errStoreDown = errors.New("store unavailable")

// fastRetry retries every error without waiting.
func fastRetry(attempts int) *retry.RetryConfig {
	return &retry.RetryConfig{
		MaxAttempts:  attempts,
		InitialDelay: time.Millisecond,
		MaxDelay:     time.Millisecond,
		Multiplier:   1,
	}
}

type mockSnapshotRepo struct {
	mu       sync.Mutex
	rows     []models.PositionSnapshot
	batches  [][]models.PositionSnapshot
	failures int // calls that fail before succeeding
	calls    int
}

func (m *mockSnapshotRepo) Query(ctx context.Context, filter models.SnapshotFilter) ([]models.PositionSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.failures > 0 {
		m.failures--
		return nil, errStoreDown
	}
	var out []models.PositionSnapshot
	for _, r := range m.rows {
		if filter.Matches(r) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockSnapshotRepo) InsertBatch(ctx context.Context, rows []models.PositionSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.failures > 0 {
		m.failures--
		return errStoreDown
	}
	batch := append([]models.PositionSnapshot(nil), rows...)
	m.batches = append(m.batches, batch)
	m.rows = append(m.rows, batch...)
	return nil
}

type mockTransactionRepo struct {
	mu       sync.Mutex
	txs      []models.Transaction
	batches  int
	failures int
	asked    []string
}

func (m *mockTransactionRepo) ListByWallets(ctx context.Context, wallets []string) ([]models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.asked = append([]string(nil), wallets...)
	if m.failures > 0 {
		m.failures--
		return nil, errStoreDown
	}
	return m.txs, nil
}

func (m *mockTransactionRepo) InsertBatch(ctx context.Context, rows []models.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failures > 0 {
		m.failures--
		return errStoreDown
	}
	m.batches++
	m.txs = append(m.txs, rows...)
	return nil
}

type mockWalletRepo struct {
	wallets map[string]*models.Wallet
	known   []models.KnownAddress
	err     error
}

func (m *mockWalletRepo) List(ctx context.Context) ([]models.Wallet, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []models.Wallet
	for _, w := range m.wallets {
		out = append(out, *w)
	}
	return out, nil
}

func (m *mockWalletRepo) Upsert(ctx context.Context, wallet *models.Wallet) error {
	if m.wallets == nil {
		m.wallets = make(map[string]*models.Wallet)
	}
	m.wallets[wallet.Address] = wallet
	return nil
}

func (m *mockWalletRepo) ListKnownAddresses(ctx context.Context) ([]models.KnownAddress, error) {
	return append([]models.KnownAddress(nil), m.known...), nil
}

func (m *mockWalletRepo) UpsertKnownAddress(ctx context.Context, known *models.KnownAddress) error {
	m.known = append(m.known, *known)
	return nil
}

type mockCapitalFlowRepo struct {
	mu    sync.Mutex
	flows []models.CapitalFlow
	err   error
}

func (m *mockCapitalFlowRepo) List(ctx context.Context) ([]models.CapitalFlow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return append([]models.CapitalFlow(nil), m.flows...), nil
}

func (m *mockCapitalFlowRepo) Create(ctx context.Context, flow *models.CapitalFlow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.flows = append(m.flows, *flow)
	return nil
}

type mockFlowRepo struct {
	mu              sync.Mutex
	runs            []*models.ClassificationRun
	classifications []models.FlowClassification
	saveFailures    int
}

func (m *mockFlowRepo) SaveRun(ctx context.Context, run *models.ClassificationRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveFailures > 0 {
		m.saveFailures--
		return errStoreDown
	}
	m.runs = append(m.runs, run)
	m.classifications = run.Classifications
	return nil
}

func (m *mockFlowRepo) ListClassifications(ctx context.Context) ([]models.FlowClassification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.classifications, nil
}

type mockMetricsCache struct {
	mu          sync.Mutex
	entries     map[string]*models.PerformanceMetrics
	gets, sets  int
	invalidated int
	err         error
}

func newMockMetricsCache() *mockMetricsCache {
	return &mockMetricsCache{entries: make(map[string]*models.PerformanceMetrics)}
}

func (m *mockMetricsCache) GetMetrics(ctx context.Context, scope types.TimelineScope, key string) (*models.PerformanceMetrics, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	if m.err != nil {
		return nil, false, m.err
	}
	v, ok := m.entries[string(scope)+":"+key]
	return v, ok, nil
}

func (m *mockMetricsCache) SetMetrics(ctx context.Context, scope types.TimelineScope, key string, metrics *models.PerformanceMetrics) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sets++
	if m.err != nil {
		return m.err
	}
	m.entries[string(scope)+":"+key] = metrics
	return nil
}

func (m *mockMetricsCache) InvalidateMetrics(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invalidated++
	m.entries = make(map[string]*models.PerformanceMetrics)
	return m.err
}

package mocks

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/BCJdevelopment/balance-shares-protocol/internal/domain"
	"github.com/BCJdevelopment/balance-shares-protocol/internal/usecase"
)

var errCacheMiss = errors.New("cache miss")

func shareKey(clientID, shareID string) string {
	return clientID + "/" + shareID
}

func checkpointKey(clientID, shareID string, index uint64) string {
	return shareKey(clientID, shareID) + "/" + strconv.FormatUint(index, 10)
}

func sumKey(clientID, shareID string, index uint64, assetID string) string {
	return checkpointKey(clientID, shareID, index) + "/" + assetID
}

func accountKey(clientID, shareID, accountID string) string {
	return shareKey(clientID, shareID) + "/" + accountID
}

func periodKey(clientID, shareID, accountID string, index uint64) string {
	return accountKey(clientID, shareID, accountID) + "/" + strconv.FormatUint(index, 10)
}

func withdrawalKey(clientID, shareID, accountID string, index uint64, assetID string) string {
	return periodKey(clientID, shareID, accountID, index) + "/" + assetID
}

// MockShareRepository is a mock implementation of ShareRepository. The
// in-memory map stores copies, so callers observe only what they wrote back.
type MockShareRepository struct {
	mu     sync.RWMutex
	shares map[string]domain.BalanceShare

	GetFunc          func(ctx context.Context, clientID, shareID string) (*domain.BalanceShare, error)
	GetForUpdateFunc func(ctx context.Context, tx usecase.Transaction, clientID, shareID string) (*domain.BalanceShare, error)
	CreateFunc       func(ctx context.Context, tx usecase.Transaction, share *domain.BalanceShare) error
	UpdateFunc       func(ctx context.Context, tx usecase.Transaction, share *domain.BalanceShare) error
}

func NewMockShareRepository() *MockShareRepository {
	return &MockShareRepository{
		shares: make(map[string]domain.BalanceShare),
	}
}

func (m *MockShareRepository) Get(ctx context.Context, clientID, shareID string) (*domain.BalanceShare, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, clientID, shareID)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if share, ok := m.shares[shareKey(clientID, shareID)]; ok {
		return &share, nil
	}
	return nil, domain.ErrShareNotFound
}

func (m *MockShareRepository) GetForUpdate(ctx context.Context, tx usecase.Transaction, clientID, shareID string) (*domain.BalanceShare, error) {
	if m.GetForUpdateFunc != nil {
		return m.GetForUpdateFunc(ctx, tx, clientID, shareID)
	}
	return m.Get(ctx, clientID, shareID)
}

func (m *MockShareRepository) Create(ctx context.Context, tx usecase.Transaction, share *domain.BalanceShare) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, tx, share)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shares[shareKey(share.ClientID, share.ShareID)] = *share
	return nil
}

func (m *MockShareRepository) Update(ctx context.Context, tx usecase.Transaction, share *domain.BalanceShare) error {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, tx, share)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shares[shareKey(share.ClientID, share.ShareID)] = *share
	return nil
}

// MockCheckpointRepository is a mock implementation of CheckpointRepository.
type MockCheckpointRepository struct {
	mu          sync.RWMutex
	checkpoints map[string]domain.BalanceSumCheckpoint
	sums        map[string]domain.BalanceSum

	CreateFunc           func(ctx context.Context, tx usecase.Transaction, checkpoint *domain.BalanceSumCheckpoint) error
	GetFunc              func(ctx context.Context, clientID, shareID string, index uint64) (*domain.BalanceSumCheckpoint, error)
	UpdateTotalBpsFunc   func(ctx context.Context, tx usecase.Transaction, clientID, shareID string, index uint64, totalBps uint16) error
	MarkHasBalancesFunc  func(ctx context.Context, tx usecase.Transaction, clientID, shareID string, index uint64) error
	GetBalanceSumFunc    func(ctx context.Context, clientID, shareID string, index uint64, assetID string) (*domain.BalanceSum, error)
	UpsertBalanceSumFunc func(ctx context.Context, tx usecase.Transaction, sum *domain.BalanceSum) error
}

func NewMockCheckpointRepository() *MockCheckpointRepository {
	return &MockCheckpointRepository{
		checkpoints: make(map[string]domain.BalanceSumCheckpoint),
		sums:        make(map[string]domain.BalanceSum),
	}
}

func (m *MockCheckpointRepository) Create(ctx context.Context, tx usecase.Transaction, checkpoint *domain.BalanceSumCheckpoint) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, tx, checkpoint)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkpoints[checkpointKey(checkpoint.ClientID, checkpoint.ShareID, checkpoint.Index)] = *checkpoint
	return nil
}

func (m *MockCheckpointRepository) Get(ctx context.Context, clientID, shareID string, index uint64) (*domain.BalanceSumCheckpoint, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, clientID, shareID, index)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if checkpoint, ok := m.checkpoints[checkpointKey(clientID, shareID, index)]; ok {
		return &checkpoint, nil
	}
	return nil, domain.ErrCheckpointNotFound
}

func (m *MockCheckpointRepository) GetTx(ctx context.Context, tx usecase.Transaction, clientID, shareID string, index uint64) (*domain.BalanceSumCheckpoint, error) {
	return m.Get(ctx, clientID, shareID, index)
}

func (m *MockCheckpointRepository) UpdateTotalBps(ctx context.Context, tx usecase.Transaction, clientID, shareID string, index uint64, totalBps uint16) error {
	if m.UpdateTotalBpsFunc != nil {
		return m.UpdateTotalBpsFunc(ctx, tx, clientID, shareID, index, totalBps)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := checkpointKey(clientID, shareID, index)
	if checkpoint, ok := m.checkpoints[key]; ok {
		checkpoint.TotalBps = totalBps
		m.checkpoints[key] = checkpoint
	}
	return nil
}

func (m *MockCheckpointRepository) MarkHasBalances(ctx context.Context, tx usecase.Transaction, clientID, shareID string, index uint64) error {
	if m.MarkHasBalancesFunc != nil {
		return m.MarkHasBalancesFunc(ctx, tx, clientID, shareID, index)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := checkpointKey(clientID, shareID, index)
	if checkpoint, ok := m.checkpoints[key]; ok {
		checkpoint.HasBalances = true
		m.checkpoints[key] = checkpoint
	}
	return nil
}

func (m *MockCheckpointRepository) GetBalanceSum(ctx context.Context, clientID, shareID string, index uint64, assetID string) (*domain.BalanceSum, error) {
	if m.GetBalanceSumFunc != nil {
		return m.GetBalanceSumFunc(ctx, clientID, shareID, index, assetID)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if sum, ok := m.sums[sumKey(clientID, shareID, index, assetID)]; ok {
		return &sum, nil
	}
	return nil, domain.ErrCheckpointNotFound
}

func (m *MockCheckpointRepository) GetBalanceSumTx(ctx context.Context, tx usecase.Transaction, clientID, shareID string, index uint64, assetID string) (*domain.BalanceSum, error) {
	return m.GetBalanceSum(ctx, clientID, shareID, index, assetID)
}

func (m *MockCheckpointRepository) UpsertBalanceSum(ctx context.Context, tx usecase.Transaction, sum *domain.BalanceSum) error {
	if m.UpsertBalanceSumFunc != nil {
		return m.UpsertBalanceSumFunc(ctx, tx, sum)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sums[sumKey(sum.ClientID, sum.ShareID, sum.CheckpointIndex, sum.AssetID)] = *sum
	return nil
}

// MockPeriodRepository is a mock implementation of PeriodRepository.
type MockPeriodRepository struct {
	mu          sync.RWMutex
	accounts    map[string]domain.AccountShare
	periods     map[string]domain.AccountSharePeriod
	withdrawals map[string]domain.WithdrawalCheckpoint

	GetAccountFunc       func(ctx context.Context, clientID, shareID, accountID string) (*domain.AccountShare, error)
	UpsertAccountFunc    func(ctx context.Context, tx usecase.Transaction, account *domain.AccountShare) error
	GetPeriodFunc        func(ctx context.Context, clientID, shareID, accountID string, periodIndex uint64) (*domain.AccountSharePeriod, error)
	ListOpenPeriodsFunc  func(ctx context.Context, tx usecase.Transaction, clientID, shareID string) ([]*domain.AccountSharePeriod, error)
	CreatePeriodFunc     func(ctx context.Context, tx usecase.Transaction, period *domain.AccountSharePeriod) error
	UpdatePeriodFunc     func(ctx context.Context, tx usecase.Transaction, period *domain.AccountSharePeriod) error
	GetWithdrawalFunc    func(ctx context.Context, clientID, shareID, accountID string, periodIndex uint64, assetID string) (*domain.WithdrawalCheckpoint, error)
	UpsertWithdrawalFunc func(ctx context.Context, tx usecase.Transaction, withdrawal *domain.WithdrawalCheckpoint) error
}

func NewMockPeriodRepository() *MockPeriodRepository {
	return &MockPeriodRepository{
		accounts:    make(map[string]domain.AccountShare),
		periods:     make(map[string]domain.AccountSharePeriod),
		withdrawals: make(map[string]domain.WithdrawalCheckpoint),
	}
}

func (m *MockPeriodRepository) GetAccount(ctx context.Context, clientID, shareID, accountID string) (*domain.AccountShare, error) {
	if m.GetAccountFunc != nil {
		return m.GetAccountFunc(ctx, clientID, shareID, accountID)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if account, ok := m.accounts[accountKey(clientID, shareID, accountID)]; ok {
		return &account, nil
	}
	return nil, domain.ErrAccountShareNotFound
}

func (m *MockPeriodRepository) GetAccountTx(ctx context.Context, tx usecase.Transaction, clientID, shareID, accountID string) (*domain.AccountShare, error) {
	return m.GetAccount(ctx, clientID, shareID, accountID)
}

func (m *MockPeriodRepository) UpsertAccount(ctx context.Context, tx usecase.Transaction, account *domain.AccountShare) error {
	if m.UpsertAccountFunc != nil {
		return m.UpsertAccountFunc(ctx, tx, account)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[accountKey(account.ClientID, account.ShareID, account.AccountID)] = *account
	return nil
}

func (m *MockPeriodRepository) GetPeriod(ctx context.Context, clientID, shareID, accountID string, periodIndex uint64) (*domain.AccountSharePeriod, error) {
	if m.GetPeriodFunc != nil {
		return m.GetPeriodFunc(ctx, clientID, shareID, accountID, periodIndex)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if period, ok := m.periods[periodKey(clientID, shareID, accountID, periodIndex)]; ok {
		return &period, nil
	}
	return nil, domain.ErrPeriodNotFound
}

func (m *MockPeriodRepository) GetPeriodTx(ctx context.Context, tx usecase.Transaction, clientID, shareID, accountID string, periodIndex uint64) (*domain.AccountSharePeriod, error) {
	return m.GetPeriod(ctx, clientID, shareID, accountID, periodIndex)
}

func (m *MockPeriodRepository) ListOpenPeriods(ctx context.Context, tx usecase.Transaction, clientID, shareID string) ([]*domain.AccountSharePeriod, error) {
	if m.ListOpenPeriodsFunc != nil {
		return m.ListOpenPeriodsFunc(ctx, tx, clientID, shareID)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var open []*domain.AccountSharePeriod
	for _, period := range m.periods {
		if period.ClientID == clientID && period.ShareID == shareID && period.IsOpen() {
			p := period
			open = append(open, &p)
		}
	}
	sort.Slice(open, func(i, j int) bool { return open[i].AccountID < open[j].AccountID })
	return open, nil
}

func (m *MockPeriodRepository) CreatePeriod(ctx context.Context, tx usecase.Transaction, period *domain.AccountSharePeriod) error {
	if m.CreatePeriodFunc != nil {
		return m.CreatePeriodFunc(ctx, tx, period)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.periods[periodKey(period.ClientID, period.ShareID, period.AccountID, period.PeriodIndex)] = *period
	return nil
}

func (m *MockPeriodRepository) UpdatePeriod(ctx context.Context, tx usecase.Transaction, period *domain.AccountSharePeriod) error {
	if m.UpdatePeriodFunc != nil {
		return m.UpdatePeriodFunc(ctx, tx, period)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.periods[periodKey(period.ClientID, period.ShareID, period.AccountID, period.PeriodIndex)] = *period
	return nil
}

func (m *MockPeriodRepository) GetWithdrawal(ctx context.Context, clientID, shareID, accountID string, periodIndex uint64, assetID string) (*domain.WithdrawalCheckpoint, error) {
	if m.GetWithdrawalFunc != nil {
		return m.GetWithdrawalFunc(ctx, clientID, shareID, accountID, periodIndex, assetID)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if withdrawal, ok := m.withdrawals[withdrawalKey(clientID, shareID, accountID, periodIndex, assetID)]; ok {
		return &withdrawal, nil
	}
	return nil, domain.ErrCheckpointNotFound
}

func (m *MockPeriodRepository) GetWithdrawalTx(ctx context.Context, tx usecase.Transaction, clientID, shareID, accountID string, periodIndex uint64, assetID string) (*domain.WithdrawalCheckpoint, error) {
	return m.GetWithdrawal(ctx, clientID, shareID, accountID, periodIndex, assetID)
}

func (m *MockPeriodRepository) UpsertWithdrawal(ctx context.Context, tx usecase.Transaction, withdrawal *domain.WithdrawalCheckpoint) error {
	if m.UpsertWithdrawalFunc != nil {
		return m.UpsertWithdrawalFunc(ctx, tx, withdrawal)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.withdrawals[withdrawalKey(withdrawal.ClientID, withdrawal.ShareID, withdrawal.AccountID, withdrawal.PeriodIndex, withdrawal.AssetID)] = *withdrawal
	return nil
}

// MockEventRepository is a mock implementation of EventRepository.
type MockEventRepository struct {
	mu     sync.RWMutex
	events []*domain.LedgerEvent

	CreateFunc func(ctx context.Context, tx usecase.Transaction, event *domain.LedgerEvent) error
	ListFunc   func(ctx context.Context, limit, offset int) ([]*domain.LedgerEvent, error)
}

func NewMockEventRepository() *MockEventRepository {
	return &MockEventRepository{}
}

func (m *MockEventRepository) Create(ctx context.Context, tx usecase.Transaction, event *domain.LedgerEvent) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, tx, event)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *event
	m.events = append(m.events, &copied)
	return nil
}

func (m *MockEventRepository) GetUnpublished(ctx context.Context, limit int) ([]*domain.LedgerEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var unpublished []*domain.LedgerEvent
	for _, event := range m.events {
		if !event.Published {
			unpublished = append(unpublished, event)
		}
		if len(unpublished) == limit {
			break
		}
	}
	return unpublished, nil
}

func (m *MockEventRepository) MarkPublished(ctx context.Context, id string, publishedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, event := range m.events {
		if event.ID == id {
			event.Published = true
			event.PublishedAt = &publishedAt
		}
	}
	return nil
}

func (m *MockEventRepository) List(ctx context.Context, limit, offset int) ([]*domain.LedgerEvent, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, limit, offset)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var listed []*domain.LedgerEvent
	for i := len(m.events) - 1 - offset; i >= 0 && len(listed) < limit; i-- {
		listed = append(listed, m.events[i])
	}
	return listed, nil
}

// Events returns everything recorded so far, oldest first.
func (m *MockEventRepository) Events() []*domain.LedgerEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*domain.LedgerEvent(nil), m.events...)
}

// MockTransactionManager is a mock implementation of TransactionManager.
type MockTransactionManager struct {
	BeginFunc func(ctx context.Context) (usecase.Transaction, error)
}

func NewMockTransactionManager() *MockTransactionManager {
	return &MockTransactionManager{}
}

func (m *MockTransactionManager) Begin(ctx context.Context) (usecase.Transaction, error) {
	if m.BeginFunc != nil {
		return m.BeginFunc(ctx)
	}
	return &MockTransaction{}, nil
}

// MockTransaction is a mock implementation of Transaction.
type MockTransaction struct {
	CommitFunc   func(ctx context.Context) error
	RollbackFunc func(ctx context.Context) error
}

func (m *MockTransaction) Commit(ctx context.Context) error {
	if m.CommitFunc != nil {
		return m.CommitFunc(ctx)
	}
	return nil
}

func (m *MockTransaction) Rollback(ctx context.Context) error {
	if m.RollbackFunc != nil {
		return m.RollbackFunc(ctx)
	}
	return nil
}

// MockIDGenerator is a mock implementation of IDGenerator.
type MockIDGenerator struct {
	GenerateFunc func() string
	counter      int
	mu           sync.Mutex
}

func NewMockIDGenerator() *MockIDGenerator {
	return &MockIDGenerator{}
}

func (m *MockIDGenerator) Generate() string {
	if m.GenerateFunc != nil {
		return m.GenerateFunc()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counter++
	return "mock-id-" + strconv.Itoa(m.counter)
}

// MockCache is a mock implementation of Cache.
type MockCache struct {
	mu   sync.RWMutex
	data map[string]string

	GetFunc    func(ctx context.Context, key string) (string, error)
	SetFunc    func(ctx context.Context, key, value string, ttl time.Duration) error
	DeleteFunc func(ctx context.Context, key string) error
}

func NewMockCache() *MockCache {
	return &MockCache{
		data: make(map[string]string),
	}
}

func (m *MockCache) Get(ctx context.Context, key string) (string, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, key)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if value, ok := m.data[key]; ok {
		return value, nil
	}
	return "", errCacheMiss
}

func (m *MockCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if m.SetFunc != nil {
		return m.SetFunc(ctx, key, value, ttl)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *MockCache) Delete(ctx context.Context, key string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, key)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

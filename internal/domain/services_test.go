package domain_test

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dpnr05/banking-fullstack-app/internal/domain"
)

// fakeStore is an in-memory ledger store with real per-row locking and
// staged writes, so the locking protocol of the transfer path can be
// exercised under genuine goroutine concurrency.
type fakeStore struct {
	mu         sync.Mutex
	rows       map[int64]*fakeRow
	records    []domain.Transaction
	nextID     int64
	nextTxID   int64
	failCommit bool
	lockCalls  atomic.Int64
}

type fakeRow struct {
	mu      sync.Mutex
	account domain.Account
}

// fakeUnit is one atomic unit: writes are staged here and applied only on
// commit; row locks are held until the unit ends.
type fakeUnit struct {
	locked  []*fakeRow
	staged  map[int64]decimal.Decimal
	inserts []domain.Transaction
}

type unitKey struct{}

func newFakeStore() *fakeStore {
	return &fakeStore{rows: map[int64]*fakeRow{}}
}

func (s *fakeStore) addAccount(name, balance string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	s.rows[s.nextID] = &fakeRow{account: domain.Account{
		ID:        s.nextID,
		Name:      name,
		Balance:   decimal.RequireFromString(balance),
		CreatedAt: time.Now(),
	}}
	return s.nextID
}

func (s *fakeStore) row(id int64) *fakeRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rows[id]
}

func (s *fakeStore) balance(id int64) decimal.Decimal {
	return s.row(id).account.Balance
}

func (s *fakeStore) recordCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// WithTransaction implements domain.TransactionManager.
func (s *fakeStore) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	unit := &fakeUnit{staged: map[int64]decimal.Decimal{}}
	defer func() {
		for i := len(unit.locked) - 1; i >= 0; i-- {
			unit.locked[i].mu.Unlock()
		}
	}()

	if err := fn(context.WithValue(ctx, unitKey{}, unit)); err != nil {
		return err
	}
	if s.failCommit {
		return fmt.Errorf("%w: commit failed", domain.ErrStoreUnavailable)
	}

	// The unit still holds the locks on every row it staged a write for.
	for id, balance := range unit.staged {
		s.row(id).account.Balance = balance
	}
	s.mu.Lock()
	s.records = append(s.records, unit.inserts...)
	s.mu.Unlock()
	return nil
}

func unitFrom(ctx context.Context) *fakeUnit {
	unit, _ := ctx.Value(unitKey{}).(*fakeUnit)
	return unit
}

// Lock implements domain.AccountRepository. It blocks until the row lock is
// available, exactly like SELECT ... FOR UPDATE.
func (s *fakeStore) Lock(ctx context.Context, id int64) (*domain.Account, error) {
	s.lockCalls.Add(1)
	unit := unitFrom(ctx)
	if unit == nil {
		return nil, fmt.Errorf("lock outside transaction")
	}
	row := s.row(id)
	if row == nil {
		return nil, domain.ErrAccountNotFound
	}
	row.mu.Lock()
	unit.locked = append(unit.locked, row)
	account := row.account
	return &account, nil
}

func (s *fakeStore) UpdateBalance(ctx context.Context, id int64, balance decimal.Decimal) error {
	unit := unitFrom(ctx)
	if unit == nil {
		return fmt.Errorf("update outside transaction")
	}
	unit.staged[id] = balance
	return nil
}

func (s *fakeStore) GetByID(ctx context.Context, id int64) (*domain.Account, error) {
	row := s.row(id)
	if row == nil {
		return nil, domain.ErrAccountNotFound
	}
	account := row.account
	return &account, nil
}

func (s *fakeStore) List(ctx context.Context) ([]domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Account, 0, len(s.rows))
	for _, row := range s.rows {
		out = append(out, row.account)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *fakeStore) Create(ctx context.Context, name string, initialBalance decimal.Decimal) (*domain.Account, error) {
	id := s.addAccount(name, initialBalance.StringFixed(2))
	account := s.row(id).account
	return &account, nil
}

// Create implements domain.TransactionRepository: ids are assigned at insert
// time, so they are monotonic but visible only on commit.
func (s *fakeStore) CreateTx(ctx context.Context, fromID, toID int64, amount decimal.Decimal) (*domain.Transaction, error) {
	unit := unitFrom(ctx)
	if unit == nil {
		return nil, fmt.Errorf("insert outside transaction")
	}
	s.mu.Lock()
	s.nextTxID++
	id := s.nextTxID
	s.mu.Unlock()
	record := domain.Transaction{
		ID:            id,
		FromAccountID: fromID,
		ToAccountID:   toID,
		Amount:        amount,
		CreatedAt:     time.Now(),
	}
	unit.inserts = append(unit.inserts, record)
	return &record, nil
}

func (s *fakeStore) ListRecent(ctx context.Context, limit int) ([]domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Transaction, len(s.records))
	copy(out, s.records)
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// txRepo adapts fakeStore's CreateTx to the TransactionRepository method name.
type txRepo struct{ *fakeStore }

func (r txRepo) Create(ctx context.Context, fromID, toID int64, amount decimal.Decimal) (*domain.Transaction, error) {
	return r.CreateTx(ctx, fromID, toID, amount)
}

func newService(s *fakeStore, publisher domain.EventPublisher) *domain.TransferService {
	return domain.NewTransferService(s, txRepo{s}, s, publisher, zap.NewNop())
}

func amt(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

func TestExecuteTransfer_Success(t *testing.T) {
	store := newFakeStore()
	a := store.addAccount("alice", "1000.00")
	b := store.addAccount("bob", "500.00")
	svc := newService(store, nil)

	record, err := svc.ExecuteTransfer(context.Background(), a, b, amt("200.00"))
	require.NoError(t, err)
	require.NotNil(t, record)

	assert.Equal(t, a, record.FromAccountID)
	assert.Equal(t, b, record.ToAccountID)
	assert.Equal(t, "200.00", domain.FormatAmount(record.Amount))
	assert.Equal(t, "800.00", domain.FormatAmount(store.balance(a)))
	assert.Equal(t, "700.00", domain.FormatAmount(store.balance(b)))
	assert.Equal(t, 1, store.recordCount())

	// Conservation: the pair's total is unchanged.
	total := store.balance(a).Add(store.balance(b))
	assert.Equal(t, "1500.00", domain.FormatAmount(total))
}

func TestExecuteTransfer_InsufficientFunds(t *testing.T) {
	store := newFakeStore()
	a := store.addAccount("alice", "50.00")
	b := store.addAccount("bob", "0.00")
	svc := newService(store, nil)

	_, err := svc.ExecuteTransfer(context.Background(), a, b, amt("100.00"))
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)

	assert.Equal(t, "50.00", domain.FormatAmount(store.balance(a)))
	assert.Equal(t, "0.00", domain.FormatAmount(store.balance(b)))
	assert.Equal(t, 0, store.recordCount())
}

func TestExecuteTransfer_SameAccount(t *testing.T) {
	store := newFakeStore()
	a := store.addAccount("alice", "100.00")
	svc := newService(store, nil)

	_, err := svc.ExecuteTransfer(context.Background(), a, a, amt("10.00"))
	require.ErrorIs(t, err, domain.ErrSameAccount)

	// Rejected before any lock was taken.
	assert.Equal(t, int64(0), store.lockCalls.Load())
}

func TestExecuteTransfer_AccountNotFound(t *testing.T) {
	store := newFakeStore()
	a := store.addAccount("alice", "100.00")
	svc := newService(store, nil)

	_, err := svc.ExecuteTransfer(context.Background(), a, 999, amt("10.00"))
	require.ErrorIs(t, err, domain.ErrAccountNotFound)

	assert.Equal(t, "100.00", domain.FormatAmount(store.balance(a)))
	assert.Equal(t, 0, store.recordCount())
}

func TestExecuteTransfer_InvalidAmount(t *testing.T) {
	store := newFakeStore()
	a := store.addAccount("alice", "100.00")
	b := store.addAccount("bob", "100.00")
	svc := newService(store, nil)

	for _, value := range []string{"0", "-10", "0.001"} {
		_, err := svc.ExecuteTransfer(context.Background(), a, b, amt(value))
		require.ErrorIs(t, err, domain.ErrInvalidAmount, "amount %s", value)
	}
	assert.Equal(t, int64(0), store.lockCalls.Load())
}

func TestExecuteTransfer_CommitFailure(t *testing.T) {
	store := newFakeStore()
	a := store.addAccount("alice", "1000.00")
	b := store.addAccount("bob", "500.00")
	store.failCommit = true
	svc := newService(store, nil)

	// The store fails after the balance writes but before commit: neither
	// balance may change and no record may exist.
	_, err := svc.ExecuteTransfer(context.Background(), a, b, amt("200.00"))
	require.ErrorIs(t, err, domain.ErrStoreUnavailable)

	assert.Equal(t, "1000.00", domain.FormatAmount(store.balance(a)))
	assert.Equal(t, "500.00", domain.FormatAmount(store.balance(b)))
	assert.Equal(t, 0, store.recordCount())
}

func TestExecuteTransfer_ConcurrentSameSource(t *testing.T) {
	store := newFakeStore()
	a := store.addAccount("alice", "100.00")
	b := store.addAccount("bob", "0.00")
	c := store.addAccount("carol", "0.00")
	svc := newService(store, nil)

	// Two transfers both draw 80.00 from the same source; the source only
	// covers one of them.
	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for _, to := range []int64{b, c} {
		wg.Add(1)
		go func(to int64) {
			defer wg.Done()
			_, err := svc.ExecuteTransfer(context.Background(), a, to, amt("80.00"))
			errs <- err
		}(to)
	}
	wg.Wait()
	close(errs)

	var failures int
	for err := range errs {
		if err != nil {
			require.ErrorIs(t, err, domain.ErrInsufficientFunds)
			failures++
		}
	}
	assert.Equal(t, 1, failures, "exactly one transfer must fail")
	assert.Equal(t, "20.00", domain.FormatAmount(store.balance(a)))
	assert.False(t, store.balance(a).IsNegative())
	assert.Equal(t, 1, store.recordCount())
}

func TestExecuteTransfer_OppositeDirectionsNoDeadlock(t *testing.T) {
	store := newFakeStore()
	a := store.addAccount("alice", "1000.00")
	b := store.addAccount("bob", "1000.00")
	svc := newService(store, nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			var wg sync.WaitGroup
			wg.Add(2)
			go func() {
				defer wg.Done()
				_, err := svc.ExecuteTransfer(context.Background(), a, b, amt("10.00"))
				assert.NoError(t, err)
			}()
			go func() {
				defer wg.Done()
				_, err := svc.ExecuteTransfer(context.Background(), b, a, amt("10.00"))
				assert.NoError(t, err)
			}()
			wg.Wait()
		}
	}()

	select {
	case <-done:
	case <-time.After(30 * time.Second):
		t.Fatal("opposite-direction transfers deadlocked")
	}

	total := store.balance(a).Add(store.balance(b))
	assert.Equal(t, "2000.00", domain.FormatAmount(total))
	assert.Equal(t, 400, store.recordCount())
}

type fakePublisher struct {
	published chan domain.Transaction
}

func (p *fakePublisher) PublishTransferCompleted(ctx context.Context, tx *domain.Transaction) error {
	p.published <- *tx
	return nil
}

func TestExecuteTransfer_PublishesEvent(t *testing.T) {
	store := newFakeStore()
	a := store.addAccount("alice", "100.00")
	b := store.addAccount("bob", "0.00")
	publisher := &fakePublisher{published: make(chan domain.Transaction, 1)}
	svc := newService(store, publisher)

	record, err := svc.ExecuteTransfer(context.Background(), a, b, amt("25.00"))
	require.NoError(t, err)

	select {
	case event := <-publisher.published:
		assert.Equal(t, record.ID, event.ID)
		assert.Equal(t, "25.00", domain.FormatAmount(event.Amount))
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for transfer completed event")
	}
}

func TestListTransactions_NewestFirst(t *testing.T) {
	store := newFakeStore()
	a := store.addAccount("alice", "1000.00")
	b := store.addAccount("bob", "0.00")
	svc := newService(store, nil)

	var ids []int64
	for i := 0; i < 3; i++ {
		record, err := svc.ExecuteTransfer(context.Background(), a, b, amt("1.00"))
		require.NoError(t, err)
		ids = append(ids, record.ID)
	}

	records, err := svc.ListTransactions(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, ids[2], records[0].ID)
	assert.Equal(t, ids[1], records[1].ID)
	assert.Equal(t, ids[0], records[2].ID)
}

func TestAccountService_CreateAccount(t *testing.T) {
	store := newFakeStore()
	svc := domain.NewAccountService(store)

	account, err := svc.CreateAccount(context.Background(), "alice", amt("100.00"))
	require.NoError(t, err)
	assert.Equal(t, "alice", account.Name)
	assert.Equal(t, "100.00", domain.FormatAmount(account.Balance))

	// Zero is a valid starting balance, negative is not.
	_, err = svc.CreateAccount(context.Background(), "bob", decimal.Zero)
	require.NoError(t, err)
	_, err = svc.CreateAccount(context.Background(), "mallory", amt("-1.00"))
	require.ErrorIs(t, err, domain.ErrInvalidAmount)
}

package ledger

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/ak-softwares/wa-api-sub002/internal/model"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRepo mirrors the conditional-update semantics of the SQL layer: locks
// refuse when balance is short, free slots refuse past the threshold.
type fakeRepo struct {
	mu      sync.Mutex
	balance map[uuid.UUID]int64
	locked  map[uuid.UUID]int64
	used    map[string]int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		balance: make(map[uuid.UUID]int64),
		locked:  make(map[uuid.UUID]int64),
		used:    make(map[string]int),
	}
}

func usageKey(ownerID uuid.UUID, year, month int) string {
	return fmt.Sprintf("%s/%d-%d", ownerID, year, month)
}

func (f *fakeRepo) EnsureWallet(ctx context.Context, ownerID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.balance[ownerID]; !ok {
		f.balance[ownerID] = 0
	}
	return nil
}

func (f *fakeRepo) LockCredits(ctx context.Context, ownerID uuid.UUID, cost int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.balance[ownerID] < cost {
		return false, nil
	}
	f.balance[ownerID] -= cost
	f.locked[ownerID] += cost
	return true, nil
}

func (f *fakeRepo) CommitCredits(ctx context.Context, ownerID uuid.UUID, cost int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.locked[ownerID] -= cost
	return nil
}

func (f *fakeRepo) RefundCredits(ctx context.Context, ownerID uuid.UUID, cost int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.locked[ownerID] -= cost
	f.balance[ownerID] += cost
	return nil
}

func (f *fakeRepo) IncrementFreeUsage(ctx context.Context, ownerID uuid.UUID, year, month, threshold int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := usageKey(ownerID, year, month)
	if f.used[k] >= threshold {
		return false, nil
	}
	f.used[k]++
	return true, nil
}

func (f *fakeRepo) Wallet(ctx context.Context, ownerID uuid.UUID) (*model.Wallet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &model.Wallet{OwnerID: ownerID, Balance: f.balance[ownerID], LockedBalance: f.locked[ownerID]}, nil
}

func (f *fakeRepo) PeriodUsage(ctx context.Context, ownerID uuid.UUID, year, month int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.used[usageKey(ownerID, year, month)], nil
}

func TestConsume_FreeQuotaFirst(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, 3)
	owner := uuid.New()
	ctx := context.Background()

	repo.balance[owner] = 100

	for i := 0; i < 3; i++ {
		billing, err := svc.Consume(ctx, owner, 1)
		require.NoError(t, err)
		assert.Equal(t, BillingFree, billing)
	}

	// Quota exhausted, fourth send is paid
	billing, err := svc.Consume(ctx, owner, 1)
	require.NoError(t, err)
	assert.Equal(t, BillingPaid, billing)

	w, err := svc.Balance(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, int64(99), w.Balance)
	assert.Equal(t, int64(1), w.LockedBalance)
}

func TestConsume_InsufficientCredits(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, 0)
	owner := uuid.New()

	repo.balance[owner] = 5

	_, err := svc.Consume(context.Background(), owner, 10)
	assert.ErrorIs(t, err, ErrInsufficientCredits)

	w, _ := svc.Balance(context.Background(), owner)
	assert.Equal(t, int64(5), w.Balance)
	assert.Equal(t, int64(0), w.LockedBalance)
}

func TestConsume_ZeroQuotaSkipsFreeTier(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, 0)
	owner := uuid.New()
	repo.balance[owner] = 10

	billing, err := svc.Consume(context.Background(), owner, 2)
	require.NoError(t, err)
	assert.Equal(t, BillingPaid, billing)
	assert.Empty(t, repo.used)
}

func TestRefund_RestoresBalance(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, 0)
	owner := uuid.New()
	ctx := context.Background()
	repo.balance[owner] = 100

	billing, err := svc.Consume(ctx, owner, 10)
	require.NoError(t, err)
	require.Equal(t, BillingPaid, billing)

	w, _ := svc.Balance(ctx, owner)
	assert.Equal(t, int64(90), w.Balance)
	assert.Equal(t, int64(10), w.LockedBalance)

	require.NoError(t, svc.Refund(ctx, owner, 10, billing))

	w, _ = svc.Balance(ctx, owner)
	assert.Equal(t, int64(100), w.Balance)
	assert.Equal(t, int64(0), w.LockedBalance)
}

func TestCommit_NetDebit(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, 0)
	owner := uuid.New()
	ctx := context.Background()
	repo.balance[owner] = 100

	billing, err := svc.Consume(ctx, owner, 10)
	require.NoError(t, err)

	require.NoError(t, svc.Commit(ctx, owner, 10, billing))

	w, _ := svc.Balance(ctx, owner)
	assert.Equal(t, int64(90), w.Balance)
	assert.Equal(t, int64(0), w.LockedBalance)
}

func TestCommitAndRefund_NoopForFree(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, 5)
	owner := uuid.New()
	ctx := context.Background()
	repo.balance[owner] = 50

	billing, err := svc.Consume(ctx, owner, 3)
	require.NoError(t, err)
	require.Equal(t, BillingFree, billing)

	require.NoError(t, svc.Commit(ctx, owner, 3, billing))
	require.NoError(t, svc.Refund(ctx, owner, 3, billing))

	w, _ := svc.Balance(ctx, owner)
	assert.Equal(t, int64(50), w.Balance)
	assert.Equal(t, int64(0), w.LockedBalance)

	// The free slot stays consumed even after the refund call
	used, err := svc.PeriodUsage(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, 1, used)
}

func TestConsume_ConcurrentLocksNeverOverdraw(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, 0)
	owner := uuid.New()
	ctx := context.Background()
	repo.balance[owner] = 10

	const workers = 50
	var wg sync.WaitGroup
	var succeeded int64
	var mu sync.Mutex

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Consume(ctx, owner, 1); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(10), succeeded)

	w, _ := svc.Balance(ctx, owner)
	assert.Equal(t, int64(0), w.Balance)
	assert.Equal(t, int64(10), w.LockedBalance)
	assert.GreaterOrEqual(t, w.Balance, int64(0))
}

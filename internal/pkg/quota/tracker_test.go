package quota

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/docsmithhq/docsmith/app/models"
)

type windowKey struct {
	accountID uint
	kind      string
	start     time.Time
}

// fakeStore is an in-memory Store with the same atomicity guarantees as the
// SQL one: conditional increments serialize on a mutex.
type fakeStore struct {
	mu       sync.Mutex
	counters map[windowKey]*models.QuotaCounter
	nextID   uint
}

func newFakeStore() *fakeStore {
	return &fakeStore{counters: make(map[windowKey]*models.QuotaCounter)}
}

func (s *fakeStore) EnsureCounter(_ context.Context, accountID uint, kind string, start, end time.Time, limit int64) (*models.QuotaCounter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := windowKey{accountID, kind, start}
	if counter, ok := s.counters[key]; ok {
		copied := *counter
		return &copied, nil
	}
	s.nextID++
	counter := &models.QuotaCounter{
		ID:          s.nextID,
		AccountID:   accountID,
		WindowKind:  kind,
		WindowStart: start,
		WindowEnd:   end,
		QuotaLimit:  limit,
	}
	s.counters[key] = counter
	copied := *counter
	return &copied, nil
}

func (s *fakeStore) ConsumeIfUnder(_ context.Context, counterID uint, amount int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, counter := range s.counters {
		if counter.ID == counterID {
			if counter.Consumed+amount > counter.QuotaLimit {
				return false, nil
			}
			counter.Consumed += amount
			return true, nil
		}
	}
	return false, gorm.ErrRecordNotFound
}

func (s *fakeStore) GetCounter(_ context.Context, accountID uint, kind string, start time.Time) (*models.QuotaCounter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if counter, ok := s.counters[windowKey{accountID, kind, start}]; ok {
		copied := *counter
		return &copied, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func newTestTracker(store Store, now time.Time) *Tracker {
	tracker := NewTracker(store)
	tracker.now = func() time.Time { return now }
	return tracker
}

func freeAccount(id uint) *models.Account {
	return &models.Account{ID: id, Tier: "free"}
}

func TestTrackerConsumeUpToLimit(t *testing.T) {
	store := newFakeStore()
	tracker := newTestTracker(store, ts(2026, time.March, 15, 12))
	account := freeAccount(1)
	ctx := context.Background()

	// Free daily limit is 5.
	for i := 0; i < 5; i++ {
		res, err := tracker.TryConsume(ctx, account, models.QuotaWindowDaily, 1)
		require.NoError(t, err)
		assert.True(t, res.Allowed, "consume %d should be allowed", i+1)
	}

	res, err := tracker.TryConsume(ctx, account, models.QuotaWindowDaily, 1)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, int64(0), res.Remaining())
}

func TestTrackerCheckDoesNotConsume(t *testing.T) {
	store := newFakeStore()
	tracker := newTestTracker(store, ts(2026, time.March, 15, 12))
	account := freeAccount(1)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		ok, err := tracker.Check(ctx, account, models.QuotaWindowDaily)
		require.NoError(t, err)
		assert.True(t, ok)
	}

	daily, _, err := tracker.Usage(ctx, account)
	require.NoError(t, err)
	assert.Equal(t, int64(0), daily.Consumed)
}

func TestTrackerCheckDeniesWhenExhausted(t *testing.T) {
	store := newFakeStore()
	tracker := newTestTracker(store, ts(2026, time.March, 15, 12))
	account := freeAccount(1)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := tracker.TryConsume(ctx, account, models.QuotaWindowDaily, 1)
		require.NoError(t, err)
	}

	ok, err := tracker.Check(ctx, account, models.QuotaWindowDaily)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTrackerWindowsAreIndependent(t *testing.T) {
	store := newFakeStore()
	account := freeAccount(1)
	ctx := context.Background()

	tracker := newTestTracker(store, ts(2026, time.March, 15, 12))
	for i := 0; i < 5; i++ {
		res, err := tracker.TryConsume(ctx, account, models.QuotaWindowDaily, 1)
		require.NoError(t, err)
		require.True(t, res.Allowed)
	}
	res, err := tracker.TryConsume(ctx, account, models.QuotaWindowDaily, 1)
	require.NoError(t, err)
	require.False(t, res.Allowed)

	// Next UTC day: fresh window, the old counter is irrelevant.
	tracker = newTestTracker(store, ts(2026, time.March, 16, 0))
	res, err = tracker.TryConsume(ctx, account, models.QuotaWindowDaily, 1)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, int64(1), res.Consumed)
}

func TestTrackerKindsAreIsolated(t *testing.T) {
	store := newFakeStore()
	tracker := newTestTracker(store, ts(2026, time.March, 15, 12))
	account := freeAccount(1)
	ctx := context.Background()

	// Daily consumption leaves the monthly counter untouched.
	for i := 0; i < 3; i++ {
		res, err := tracker.TryConsume(ctx, account, models.QuotaWindowDaily, 1)
		require.NoError(t, err)
		require.True(t, res.Allowed)
	}
	daily, monthly, err := tracker.Usage(ctx, account)
	require.NoError(t, err)
	assert.Equal(t, int64(3), daily.Consumed)
	assert.Equal(t, int64(0), monthly.Consumed)

	// And the other way around.
	for i := 0; i < 2; i++ {
		res, err := tracker.TryConsume(ctx, account, models.QuotaWindowMonthly, 1)
		require.NoError(t, err)
		require.True(t, res.Allowed)
	}
	daily, monthly, err = tracker.Usage(ctx, account)
	require.NoError(t, err)
	assert.Equal(t, int64(3), daily.Consumed)
	assert.Equal(t, int64(2), monthly.Consumed)
}

func TestTrackerMonthlyUsesAccountAnchor(t *testing.T) {
	store := newFakeStore()
	anchor := ts(2026, time.January, 10, 0)
	account := &models.Account{ID: 1, Tier: "pro", CurrentPeriodStart: &anchor}
	ctx := context.Background()

	tracker := newTestTracker(store, ts(2026, time.March, 15, 12))
	res, err := tracker.TryConsume(ctx, account, models.QuotaWindowMonthly, 1)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, ts(2026, time.March, 10, 0), res.Counter.WindowStart)
	assert.Equal(t, ts(2026, time.April, 10, 0), res.Counter.WindowEnd)
	assert.Equal(t, int64(2000), res.Limit)
}

func TestTrackerTierChangeAppliesNextWindow(t *testing.T) {
	store := newFakeStore()
	account := freeAccount(1)
	ctx := context.Background()
	tracker := newTestTracker(store, ts(2026, time.March, 15, 12))

	res, err := tracker.TryConsume(ctx, account, models.QuotaWindowDaily, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(5), res.Limit)

	// Upgrade mid-window: the existing counter keeps its snapshotted limit.
	account.Tier = "pro"
	res, err = tracker.TryConsume(ctx, account, models.QuotaWindowDaily, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(5), res.Limit)

	// The next window picks up the new tier's limit.
	tracker = newTestTracker(store, ts(2026, time.March, 16, 12))
	res, err = tracker.TryConsume(ctx, account, models.QuotaWindowDaily, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(500), res.Limit)
}

func TestTrackerConcurrentConsumeConservesLimit(t *testing.T) {
	store := newFakeStore()
	account := &models.Account{ID: 1, Tier: "starter"} // daily limit 50
	ctx := context.Background()
	tracker := newTestTracker(store, ts(2026, time.March, 15, 12))

	const workers = 200
	var allowed int64
	var mu sync.Mutex
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			res, err := tracker.TryConsume(ctx, account, models.QuotaWindowDaily, 1)
			if err != nil {
				return
			}
			if res.Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(50), allowed)
	daily, _, err := tracker.Usage(ctx, account)
	require.NoError(t, err)
	assert.Equal(t, int64(50), daily.Consumed)
}

func TestTrackerUnknownKind(t *testing.T) {
	tracker := newTestTracker(newFakeStore(), ts(2026, time.March, 15, 12))
	_, err := tracker.TryConsume(context.Background(), freeAccount(1), "weekly", 1)
	assert.Error(t, err)
}

package poller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/BearBump/ShopShip/internal/cache/rediscache"
	"github.com/BearBump/ShopShip/internal/integrations/payment/razorpay"
	"github.com/BearBump/ShopShip/internal/integrations/shipping"
	"github.com/BearBump/ShopShip/internal/integrations/shipping/fake"
	"github.com/BearBump/ShopShip/internal/models"
	"github.com/BearBump/ShopShip/internal/services/orders"
	"github.com/BearBump/ShopShip/internal/storage/pgorders"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type failure struct {
	msg  string
	next time.Time
}

type fakeRepo struct {
	mu        sync.Mutex
	tasks     []pgorders.SyncTask
	claimErr  error
	claims    int
	scheduled map[string]time.Time
	failures  map[string]failure
}

func newFakeRepo(tasks ...pgorders.SyncTask) *fakeRepo {
	return &fakeRepo{tasks: tasks, scheduled: map[string]time.Time{}, failures: map[string]failure{}}
}

func (r *fakeRepo) ClaimDueSyncs(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]pgorders.SyncTask, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.claims++
	if r.claimErr != nil {
		return nil, r.claimErr
	}
	if len(r.tasks) > limit {
		return r.tasks[:limit], nil
	}
	return r.tasks, nil
}

func (r *fakeRepo) ScheduleSync(ctx context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scheduled[id] = at
	return nil
}

func (r *fakeRepo) RecordSyncFailure(ctx context.Context, id, msg string, next time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures[id] = failure{msg: msg, next: next}
	return nil
}

type fakeReconciler struct {
	results map[string]orders.ReconcileResult
	errs    map[string]error
	err     error
	calls   int
}

func (f *fakeReconciler) ReconcileOrders(ctx context.Context, batch []*models.Order) ([]orders.BatchItem, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([]orders.BatchItem, 0, len(batch))
	for _, o := range batch {
		out = append(out, orders.BatchItem{Order: o, Result: f.results[o.OrderID], Err: f.errs[o.OrderID]})
	}
	return out, nil
}

var cycleNow = time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)

func task(id string, fails int) pgorders.SyncTask {
	return pgorders.SyncTask{Order: &models.Order{ID: "id-" + id, OrderID: id}, FailCount: fails}
}

func fixedPlanner() *Planner {
	return NewPlanner(PlannerConfig{InTransitMinDelay: 45 * time.Minute, InTransitMaxDelay: 45 * time.Minute}, nil)
}

func newTestPoller(repo Repository, rec Reconciler, rl *rediscache.RateLimiter) *Poller {
	p := New(repo, rec, nil, nil).WithPlanner(fixedPlanner())
	if rl != nil {
		p.rl = rl
	}
	p.now = func() time.Time { return cycleNow }
	return p
}

func TestPoller_runOnce_SchedulesByStatus(t *testing.T) {
	repo := newFakeRepo(task("A", 0), task("B", 0), task("C", 0))
	rec := &fakeReconciler{results: map[string]orders.ReconcileResult{
		"A": {Found: true, Status: "DELIVERED"},
		"B": {Found: true, Status: "IN TRANSIT"},
		"C": {Found: false, Status: models.ShippingStatusNew},
	}}
	p := newTestPoller(repo, rec, nil)

	p.runOnce(context.Background())

	require.Equal(t, 1, rec.calls)
	require.Equal(t, cycleNow.Add(365*24*time.Hour), repo.scheduled["id-A"])
	require.Equal(t, cycleNow.Add(45*time.Minute), repo.scheduled["id-B"])
	require.Equal(t, cycleNow.Add(90*time.Minute), repo.scheduled["id-C"])
	require.Empty(t, repo.failures)

	st := p.Stats()
	require.Equal(t, int64(3), st.TotalClaimed)
	require.Equal(t, int64(3), st.TotalSynced)
	require.Equal(t, int64(1), st.TotalNotFound)
	require.NotNil(t, st.LastCycleAt)
}

// orderStore records the partial updates the order service writes back.
type orderStore struct {
	orders.Repository
	mu      sync.Mutex
	updates map[string]pgorders.Fields
}

func (s *orderStore) UpdateOrder(ctx context.Context, id string, fields pgorders.Fields) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates[id] = fields
	return nil
}

func TestPoller_runOnce_UnknownAtProviderUsesUnknownDelay(t *testing.T) {
	ship := fake.New()
	ship.Put(shipping.ProviderOrder{
		ID:             "900",
		ChannelOrderID: "KNOWN",
		Status:         models.ShippingStatusNew,
	})
	store := &orderStore{updates: map[string]pgorders.Fields{}}
	svc := orders.New(store, ship, razorpay.NewVerifier("s"), nil, "order.shipping.updated", nil)

	linked := func(id string) pgorders.SyncTask {
		return pgorders.SyncTask{Order: &models.Order{
			ID:       "id-" + id,
			OrderID:  id,
			Shipping: models.ShippingInfo{Created: true, ProviderOrderID: "1", Status: models.ShippingStatusNew},
		}}
	}
	repo := newFakeRepo(linked("KNOWN"), linked("GONE"))
	p := newTestPoller(repo, svc, nil)

	p.runOnce(context.Background())

	require.Equal(t, cycleNow.Add(45*time.Minute), repo.scheduled["id-KNOWN"])
	require.Equal(t, cycleNow.Add(90*time.Minute), repo.scheduled["id-GONE"])
	require.Contains(t, store.updates, "id-KNOWN")
	require.NotContains(t, store.updates, "id-GONE")
	require.Equal(t, int64(1), p.Stats().TotalNotFound)
	require.Empty(t, repo.failures)
}

func TestPoller_runOnce_BatchFailureBacksOff(t *testing.T) {
	repo := newFakeRepo(task("A", 0), task("B", 2))
	rec := &fakeReconciler{err: errors.New("provider down")}
	p := newTestPoller(repo, rec, nil)

	p.runOnce(context.Background())

	require.Empty(t, repo.scheduled)
	require.Equal(t, failure{msg: "provider down", next: cycleNow.Add(5 * time.Minute)}, repo.failures["id-A"])
	require.Equal(t, cycleNow.Add(30*time.Minute), repo.failures["id-B"].next)
	require.Equal(t, int64(2), p.Stats().TotalErrors)
	require.Equal(t, "provider down", p.Stats().LastError)
}

func TestPoller_runOnce_PerOrderFailure(t *testing.T) {
	repo := newFakeRepo(task("A", 0), task("B", 5))
	rec := &fakeReconciler{
		results: map[string]orders.ReconcileResult{"A": {Found: true, Status: "IN TRANSIT"}},
		errs:    map[string]error{"B": errors.New("store reconciled fields: conn reset")},
	}
	p := newTestPoller(repo, rec, nil)

	p.runOnce(context.Background())

	require.Contains(t, repo.scheduled, "id-A")
	require.NotContains(t, repo.scheduled, "id-B")
	require.Equal(t, cycleNow.Add(60*time.Minute), repo.failures["id-B"].next)
}

func TestPoller_runOnce_ClaimError(t *testing.T) {
	repo := newFakeRepo()
	repo.claimErr = errors.New("db gone")
	rec := &fakeReconciler{}
	p := newTestPoller(repo, rec, nil)

	p.runOnce(context.Background())

	require.Equal(t, 0, rec.calls)
	require.Equal(t, "db gone", p.Stats().LastError)
}

func TestPoller_runOnce_NothingDue(t *testing.T) {
	rec := &fakeReconciler{}
	p := newTestPoller(newFakeRepo(), rec, nil)

	p.runOnce(context.Background())
	require.Equal(t, 0, rec.calls)
}

func TestPoller_runOnce_RateLimited(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	repo := newFakeRepo(task("A", 0))
	rec := &fakeReconciler{results: map[string]orders.ReconcileResult{"A": {Found: true, Status: "IN TRANSIT"}}}
	p := newTestPoller(repo, rec, rediscache.NewRateLimiterFromClient(rdb)).WithSettings(0, 0, 0, 1)

	p.runOnce(context.Background())
	p.runOnce(context.Background())

	require.Equal(t, 1, rec.calls)
	require.Equal(t, int64(1), p.Stats().TotalThrottled)
	require.True(t, mr.Exists(rediscache.WindowKey(rateLimitPrefix, cycleNow)))
}

func TestPoller_WithSettings(t *testing.T) {
	p := New(nil, nil, nil, nil).WithSettings(5*time.Second, 7, 11*time.Second, 13)
	require.Equal(t, 5*time.Second, p.pollInterval)
	require.Equal(t, 7, p.batchSize)
	require.Equal(t, 11*time.Second, p.lease)
	require.Equal(t, int64(13), p.rateLimitPerMinute)

	// zero values keep defaults
	p.WithSettings(0, 0, 0, 0)
	require.Equal(t, 7, p.batchSize)
}

func TestPoller_Run_StopsOnContextCancel(t *testing.T) {
	repo := newFakeRepo()
	p := New(repo, &fakeReconciler{}, nil, nil).WithSettings(5*time.Millisecond, 1, time.Second, 1)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	err := p.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	repo.mu.Lock()
	defer repo.mu.Unlock()
	require.GreaterOrEqual(t, repo.claims, 1)
}

func TestPoller_Trigger(t *testing.T) {
	repo := newFakeRepo()
	p := New(repo, &fakeReconciler{}, nil, nil).WithSettings(time.Hour, 1, time.Second, 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	p.Trigger()
	require.Eventually(t, func() bool {
		repo.mu.Lock()
		defer repo.mu.Unlock()
		return repo.claims >= 1
	}, time.Second, 5*time.Millisecond)
	require.NotNil(t, p.Stats().LastTriggerAt)

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}

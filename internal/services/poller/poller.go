package poller

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BearBump/ShopShip/internal/cache"
	"github.com/BearBump/ShopShip/internal/cache/rediscache"
	"github.com/BearBump/ShopShip/internal/logging"
	"github.com/BearBump/ShopShip/internal/models"
	"github.com/BearBump/ShopShip/internal/services/orders"
	"github.com/BearBump/ShopShip/internal/storage/pgorders"
	"go.uber.org/zap"
)

const rateLimitPrefix = "rl:shiprocket:orders"

type Repository interface {
	ClaimDueSyncs(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]pgorders.SyncTask, error)
	ScheduleSync(ctx context.Context, id string, at time.Time) error
	RecordSyncFailure(ctx context.Context, id, msg string, next time.Time) error
}

type Reconciler interface {
	ReconcileOrders(ctx context.Context, batch []*models.Order) ([]orders.BatchItem, error)
}

// Poller periodically reconciles linked orders with the shipping provider.
// One cycle costs a single provider list call regardless of the batch size.
type Poller struct {
	repo       Repository
	reconciler Reconciler
	rl         cache.Limiter
	log        *zap.Logger
	now        func() time.Time

	planner *Planner

	pollInterval       time.Duration
	batchSize          int
	lease              time.Duration
	rateLimitPerMinute int64

	triggerCh chan struct{}

	startedAtUnixNano   int64
	lastCycleUnixNano   atomic.Int64
	lastTriggerUnixNano atomic.Int64
	totalCycles         atomic.Int64
	totalClaimed        atomic.Int64
	totalSynced         atomic.Int64
	totalNotFound       atomic.Int64
	totalErrors         atomic.Int64
	totalThrottled      atomic.Int64
	lastErrorMu         sync.Mutex
	lastError           string
}

func New(repo Repository, reconciler Reconciler, rl cache.Limiter, logger *zap.Logger) *Poller {
	return &Poller{
		repo:               repo,
		reconciler:         reconciler,
		rl:                 rl,
		log:                logging.OrNop(logger).Named("poller"),
		now:                func() time.Time { return time.Now().UTC() },
		planner:            NewPlanner(DefaultPlannerConfig(), nil),
		pollInterval:       60 * time.Second,
		batchSize:          50,
		lease:              120 * time.Second,
		rateLimitPerMinute: 30,
		triggerCh:          make(chan struct{}, 1),
		startedAtUnixNano:  time.Now().UTC().UnixNano(),
	}
}

func (p *Poller) WithSettings(pollInterval time.Duration, batchSize int, lease time.Duration, rlPerMin int64) *Poller {
	if pollInterval > 0 {
		p.pollInterval = pollInterval
	}
	if batchSize > 0 {
		p.batchSize = batchSize
	}
	if lease > 0 {
		p.lease = lease
	}
	if rlPerMin > 0 {
		p.rateLimitPerMinute = rlPerMin
	}
	return p
}

func (p *Poller) WithPlanner(planner *Planner) *Poller {
	if planner != nil {
		p.planner = planner
	}
	return p
}

// Trigger forces an immediate cycle. Non-blocking; repeated triggers collapse into one.
func (p *Poller) Trigger() {
	p.lastTriggerUnixNano.Store(time.Now().UTC().UnixNano())
	select {
	case p.triggerCh <- struct{}{}:
	default:
	}
}

type Stats struct {
	StartedAt      time.Time  `json:"startedAt"`
	LastCycleAt    *time.Time `json:"lastCycleAt,omitempty"`
	LastTriggerAt  *time.Time `json:"lastTriggerAt,omitempty"`
	TotalCycles    int64      `json:"totalCycles"`
	TotalClaimed   int64      `json:"totalClaimed"`
	TotalSynced    int64      `json:"totalSynced"`
	TotalNotFound  int64      `json:"totalNotFound"`
	TotalErrors    int64      `json:"totalErrors"`
	TotalThrottled int64      `json:"totalThrottled"`
	LastError      string     `json:"lastError,omitempty"`
}

func (p *Poller) Stats() Stats {
	st := Stats{
		StartedAt:      time.Unix(0, p.startedAtUnixNano).UTC(),
		TotalCycles:    p.totalCycles.Load(),
		TotalClaimed:   p.totalClaimed.Load(),
		TotalSynced:    p.totalSynced.Load(),
		TotalNotFound:  p.totalNotFound.Load(),
		TotalErrors:    p.totalErrors.Load(),
		TotalThrottled: p.totalThrottled.Load(),
	}
	if n := p.lastCycleUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastCycleAt = &t
	}
	if n := p.lastTriggerUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastTriggerAt = &t
	}
	p.lastErrorMu.Lock()
	st.LastError = p.lastError
	p.lastErrorMu.Unlock()
	return st
}

func (p *Poller) Run(ctx context.Context) error {
	t := time.NewTicker(p.pollInterval)
	defer t.Stop()

	p.log.Info("sync worker started", zap.Duration("interval", p.pollInterval), zap.Int("batch", p.batchSize))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			p.runOnce(ctx)
		case <-p.triggerCh:
			p.runOnce(ctx)
		}
	}
}

func (p *Poller) runOnce(ctx context.Context) {
	now := p.now()
	p.lastCycleUnixNano.Store(now.UnixNano())
	p.totalCycles.Add(1)

	tasks, err := p.repo.ClaimDueSyncs(ctx, now, p.batchSize, p.lease)
	if err != nil {
		p.log.Error("claim due syncs", zap.Error(err))
		p.setLastError(err)
		return
	}
	if len(tasks) == 0 {
		return
	}
	p.totalClaimed.Add(int64(len(tasks)))

	if p.rl != nil && p.rateLimitPerMinute > 0 {
		allowed, n, err := p.rl.Allow(ctx, rediscache.WindowKey(rateLimitPrefix, now), p.rateLimitPerMinute, 70*time.Second)
		if err != nil {
			// a cache outage does not stop the sync
			p.log.Warn("rate limiter unavailable", zap.Error(err))
		} else if !allowed {
			// the claimed rows stay leased and come back once the lease runs out
			p.totalThrottled.Add(1)
			p.log.Warn("provider rate limit exceeded", zap.Int64("count", n), zap.Int("claimed", len(tasks)))
			return
		}
	}

	batch := make([]*models.Order, 0, len(tasks))
	fails := make(map[string]int, len(tasks))
	for _, t := range tasks {
		batch = append(batch, t.Order)
		fails[t.Order.ID] = t.FailCount
	}

	items, err := p.reconciler.ReconcileOrders(ctx, batch)
	if err != nil {
		p.log.Error("reconcile batch", zap.Int("size", len(batch)), zap.Error(err))
		p.setLastError(err)
		for _, o := range batch {
			p.fail(ctx, o, fails[o.ID], err, now)
		}
		return
	}

	for _, it := range items {
		if it.Err != nil {
			p.log.Error("reconcile order", zap.String("order_id", it.Order.OrderID), zap.Error(it.Err))
			p.setLastError(it.Err)
			p.fail(ctx, it.Order, fails[it.Order.ID], it.Err, now)
			continue
		}
		p.totalSynced.Add(1)
		delay := p.planner.Config().UnknownDelay
		if it.Result.Found {
			delay = p.planner.NextSyncDelay(it.Result.Status)
		} else {
			// the stored status is stale, so it does not pick the cadence
			p.totalNotFound.Add(1)
		}
		next := now.Add(delay)
		if err := p.repo.ScheduleSync(ctx, it.Order.ID, next); err != nil {
			p.log.Error("schedule next sync", zap.String("order_id", it.Order.OrderID), zap.Error(err))
			p.setLastError(err)
		}
	}
}

func (p *Poller) fail(ctx context.Context, o *models.Order, failCount int, cause error, now time.Time) {
	p.totalErrors.Add(1)
	next := now.Add(p.planner.BackoffDelay(failCount + 1))
	if err := p.repo.RecordSyncFailure(ctx, o.ID, cause.Error(), next); err != nil {
		p.log.Error("record sync failure", zap.String("order_id", o.OrderID), zap.Error(err))
	}
}

func (p *Poller) setLastError(err error) {
	p.lastErrorMu.Lock()
	p.lastError = err.Error()
	p.lastErrorMu.Unlock()
}

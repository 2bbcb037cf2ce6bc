package poller

import (
	"math/rand"
	"strings"
	"time"

	"github.com/BearBump/ShopShip/internal/models"
)

type Rand interface {
	Intn(n int) int
}

type PlannerConfig struct {
	FinalDelay time.Duration // default: 365 days

	InTransitMinDelay time.Duration // default: 30 minutes
	InTransitMaxDelay time.Duration // default: 120 minutes

	UnknownDelay time.Duration // default: 90 minutes

	Backoff1 time.Duration // default: 5 minutes
	Backoff2 time.Duration // default: 15 minutes
	Backoff3 time.Duration // default: 30 minutes
	Backoff4 time.Duration // default: 60 minutes
}

func DefaultPlannerConfig() PlannerConfig {
	return PlannerConfig{
		FinalDelay: 365 * 24 * time.Hour,

		InTransitMinDelay: 30 * time.Minute,
		InTransitMaxDelay: 120 * time.Minute,

		UnknownDelay: 90 * time.Minute,

		Backoff1: 5 * time.Minute,
		Backoff2: 15 * time.Minute,
		Backoff3: 30 * time.Minute,
		Backoff4: 60 * time.Minute,
	}
}

// Planner decides when an order is reconciled next.
type Planner struct {
	cfg PlannerConfig
	r   Rand
}

func NewPlanner(cfg PlannerConfig, r Rand) *Planner {
	def := DefaultPlannerConfig()
	if cfg.FinalDelay <= 0 {
		cfg.FinalDelay = def.FinalDelay
	}
	if cfg.InTransitMinDelay <= 0 {
		cfg.InTransitMinDelay = def.InTransitMinDelay
	}
	if cfg.InTransitMaxDelay <= 0 {
		cfg.InTransitMaxDelay = def.InTransitMaxDelay
	}
	if cfg.InTransitMaxDelay < cfg.InTransitMinDelay {
		cfg.InTransitMaxDelay = cfg.InTransitMinDelay
	}
	if cfg.UnknownDelay <= 0 {
		cfg.UnknownDelay = def.UnknownDelay
	}
	if cfg.Backoff1 <= 0 {
		cfg.Backoff1 = def.Backoff1
	}
	if cfg.Backoff2 <= 0 {
		cfg.Backoff2 = def.Backoff2
	}
	if cfg.Backoff3 <= 0 {
		cfg.Backoff3 = def.Backoff3
	}
	if cfg.Backoff4 <= 0 {
		cfg.Backoff4 = def.Backoff4
	}
	if r == nil {
		r = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Planner{cfg: cfg, r: r}
}

func (p *Planner) Config() PlannerConfig { return p.cfg }

// NextSyncDelay maps a provider shipment status to the wait before the next reconcile.
// Delivered and canceled shipments are effectively parked.
func (p *Planner) NextSyncDelay(status string) time.Duration {
	switch normalizeStatus(status) {
	case models.ShippingStatusDelivered, models.ShippingStatusCanceled, "CANCELLED", "RTO DELIVERED":
		return p.cfg.FinalDelay
	case models.ShippingStatusInTransit, models.ShippingStatusNew, "PICKED UP", "SHIPPED", "OUT FOR DELIVERY", "PICKUP SCHEDULED":
		min := p.cfg.InTransitMinDelay
		max := p.cfg.InTransitMaxDelay
		if max == min {
			return min
		}
		secMin := int(min.Seconds())
		secMax := int(max.Seconds())
		if secMax < secMin {
			secMax = secMin
		}
		return time.Duration(secMin+p.r.Intn(secMax-secMin+1)) * time.Second
	default:
		return p.cfg.UnknownDelay
	}
}

// BackoffDelay is the wait after the nextFailCount-th consecutive failure.
func (p *Planner) BackoffDelay(nextFailCount int) time.Duration {
	switch {
	case nextFailCount <= 1:
		return p.cfg.Backoff1
	case nextFailCount == 2:
		return p.cfg.Backoff2
	case nextFailCount == 3:
		return p.cfg.Backoff3
	default:
		return p.cfg.Backoff4
	}
}

// "in_transit" and "In Transit" both become "IN TRANSIT".
func normalizeStatus(s string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "_", " "))
}

package poller

import (
	"testing"
	"time"

	pollermocks "github.com/BearBump/ShopShip/internal/services/poller/mocks"
	"github.com/stretchr/testify/suite"
)

type PlannerSuite struct {
	suite.Suite
}

func (s *PlannerSuite) TestBackoffDelay() {
	p := NewPlanner(DefaultPlannerConfig(), nil)
	s.Equal(5*time.Minute, p.BackoffDelay(1))
	s.Equal(15*time.Minute, p.BackoffDelay(2))
	s.Equal(30*time.Minute, p.BackoffDelay(3))
	s.Equal(60*time.Minute, p.BackoffDelay(4))
	s.Equal(60*time.Minute, p.BackoffDelay(100))
}

func (s *PlannerSuite) TestNextSyncDelay_Final() {
	m := pollermocks.NewRand(s.T())
	p := NewPlanner(DefaultPlannerConfig(), m)
	s.Equal(365*24*time.Hour, p.NextSyncDelay("DELIVERED"))
	s.Equal(365*24*time.Hour, p.NextSyncDelay("canceled"))
	s.Equal(365*24*time.Hour, p.NextSyncDelay("CANCELLED"))
}

func (s *PlannerSuite) TestNextSyncDelay_InTransitUsesRand() {
	m := pollermocks.NewRand(s.T())
	// 30..120 minutes in seconds: 1800..7200, so Intn gets 5401
	m.On("Intn", 5401).Return(600).Twice()

	p := NewPlanner(DefaultPlannerConfig(), m)
	s.Equal(40*time.Minute, p.NextSyncDelay("IN TRANSIT"))
	s.Equal(40*time.Minute, p.NextSyncDelay("in_transit"))
}

func (s *PlannerSuite) TestNextSyncDelay_FixedRange() {
	m := pollermocks.NewRand(s.T())
	p := NewPlanner(PlannerConfig{InTransitMinDelay: time.Minute, InTransitMaxDelay: time.Minute}, m)
	s.Equal(time.Minute, p.NextSyncDelay("IN TRANSIT"))
}

func (s *PlannerSuite) TestNextSyncDelay_Unknown() {
	m := pollermocks.NewRand(s.T())
	p := NewPlanner(DefaultPlannerConfig(), m)
	s.Equal(90*time.Minute, p.NextSyncDelay("UNKNOWN"))
	s.Equal(90*time.Minute, p.NextSyncDelay(""))
}

func (s *PlannerSuite) TestNewPlanner_FixesInvertedRange() {
	p := NewPlanner(PlannerConfig{InTransitMinDelay: time.Hour, InTransitMaxDelay: time.Minute}, nil)
	s.Equal(time.Hour, p.Config().InTransitMaxDelay)
}

func TestPlannerSuite(t *testing.T) {
	suite.Run(t, new(PlannerSuite))
}

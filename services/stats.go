package services

import (
	"context"
	"sync"
	"time"

	"campus-cafe/models"
	"campus-cafe/store"

	"go.uber.org/zap"
)

const (
	baseServedToday     = 38
	baseEverServed      = 18540
	baseOrdersSubmitted = 22098
	// servedTodayRollover: the daily counter starts over at this value.
	servedTodayRollover = 312
)

// StatsRecorder is what the order repository reports to.
type StatsRecorder interface {
	IncrementOrderSubmitted(ctx context.Context) error
	IncrementCompleteOrder(ctx context.Context) error
}

// StatsService keeps the landing-page counters under campus_cafe_stats.
type StatsService struct {
	kv  store.Store
	log *zap.Logger
	now func() time.Time
	mu  sync.Mutex
}

func NewStatsService(kv store.Store, log *zap.Logger, now func() time.Time) *StatsService {
	return &StatsService{kv: kv, log: log, now: now}
}

func (s *StatsService) defaults() models.Stats {
	now := s.now()
	return models.Stats{
		CustomersServedToday: baseServedToday,
		CustomersEverServed:  baseEverServed,
		OrdersSubmitted:      baseOrdersSubmitted,
		LastResetDate:        now.UTC().Format(time.DateOnly),
		LastUpdateTime:       now.UnixMilli(),
	}
}

// load returns current stats with the daily counter reset on a new day.
func (s *StatsService) load(ctx context.Context) (models.Stats, error) {
	st, err := store.LoadJSON(ctx, s.kv, KeyStats, s.defaults(), s.log)
	if err != nil {
		return st, err
	}
	if today := s.now().UTC().Format(time.DateOnly); st.LastResetDate != today {
		st.CustomersServedToday = baseServedToday
		st.LastResetDate = today
	}
	return st, nil
}

func (s *StatsService) Get(ctx context.Context) (models.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

func (s *StatsService) update(ctx context.Context, fn func(*models.Stats)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := s.load(ctx)
	if err != nil {
		return err
	}
	fn(&st)
	st.LastUpdateTime = s.now().UnixMilli()
	return store.SaveJSON(ctx, s.kv, KeyStats, st)
}

func (s *StatsService) IncrementOrderSubmitted(ctx context.Context) error {
	return s.update(ctx, func(st *models.Stats) {
		st.OrdersSubmitted++
	})
}

func (s *StatsService) IncrementCompleteOrder(ctx context.Context) error {
	return s.update(ctx, func(st *models.Stats) {
		st.CustomersServedToday++
		st.CustomersEverServed++
		if st.CustomersServedToday >= servedTodayRollover {
			st.CustomersServedToday = baseServedToday
		}
	})
}

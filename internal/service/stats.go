package service

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/bookswap/exchange-service/internal/model"
	"github.com/bookswap/exchange-service/internal/repository"
)

const recentEventsLimit = 20

type StatsService struct {
	log  *zap.Logger
	repo repository.Repository
}

func NewStatsService(repo repository.Repository, log *zap.Logger) *StatsService {
	return &StatsService{
		log:  log,
		repo: repo,
	}
}

func (s *StatsService) GetStats(ctx context.Context) (model.Stats, error) {
	var stats model.Stats

	gg, ctx := errgroup.WithContext(ctx)
	gg.Go(func() error {
		n, err := s.repo.CountUsers(ctx)
		stats.Users = n
		return err
	})
	gg.Go(func() error {
		n, err := s.repo.CountBooks(ctx)
		stats.Books = n
		return err
	})
	gg.Go(func() error {
		n, err := s.repo.CountExchanges(ctx)
		stats.Exchanges = n
		return err
	})
	gg.Go(func() error {
		events, err := s.repo.ListRecentEvents(ctx, recentEventsLimit)
		stats.RecentEvents = events
		return err
	})
	if err := gg.Wait(); err != nil {
		return model.Stats{}, err
	}
	return stats, nil
}

// RecordEvent persists an exchange event consumed from the bus.
func (s *StatsService) RecordEvent(ctx context.Context, event model.ExchangeEvent) error {
	return s.repo.InsertEvent(ctx, event)
}

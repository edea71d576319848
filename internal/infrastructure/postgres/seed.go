package postgres

import (
	"context"
	"time"

	"github.com/adnancrnovrsanin/seatsync/internal/domain"
	"github.com/adnancrnovrsanin/seatsync/internal/pkg/logger"
	"github.com/google/uuid"
)

// SeedIfEmpty inserts sample events when the events table is empty.
// Safe to call on every startup.
func (r *Repository) SeedIfEmpty(ctx context.Context) error {
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM events)`).Scan(&exists); err != nil {
		return err
	}
	if exists {
		return nil
	}

	now := time.Now().UTC()
	samples := []domain.Event{
		{
			ID:            uuid.MustParse("11111111-1111-1111-1111-111111111111"),
			Name:          "Rock Concert - The Rolling Coders",
			StartsAt:      now.Add(7 * 24 * time.Hour),
			Capacity:      500,
			MaxPerRequest: 6,
		},
		{
			ID:            uuid.MustParse("22222222-2222-2222-2222-222222222222"),
			Name:          "Tech Talk: Go Concurrency",
			StartsAt:      now.Add(3 * 24 * time.Hour),
			Capacity:      150,
			MaxPerRequest: 4,
		},
		{
			ID:            uuid.MustParse("33333333-3333-3333-3333-333333333333"),
			Name:          "Local Theater: Async Adventures",
			StartsAt:      now.Add(30 * 24 * time.Hour),
			Capacity:      80,
			MaxPerRequest: 2,
		},
	}

	for _, e := range samples {
		if err := r.CreateEvent(ctx, e); err != nil {
			return err
		}
	}
	logger.Logger.Info().Int("count", len(samples)).Msg("seeded sample events")
	return nil
}

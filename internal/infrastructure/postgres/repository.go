package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/adnancrnovrsanin/seatsync/internal/domain"
	"github.com/adnancrnovrsanin/seatsync/internal/pkg/logger"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const eventColumns = `id, name, starts_at, capacity, purchased, max_per_request`

func scanEvent(row pgx.Row) (*domain.Event, error) {
	var e domain.Event
	err := row.Scan(&e.ID, &e.Name, &e.StartsAt, &e.Capacity, &e.Purchased, &e.MaxPerRequest)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// GetEvent returns (nil, nil) when no such event exists. The snapshot may
// be stale by the time it is acted on; ReserveAndInsert re-validates.
func (r *Repository) GetEvent(ctx context.Context, id uuid.UUID) (*domain.Event, error) {
	e, err := scanEvent(r.pool.QueryRow(ctx, `
		SELECT `+eventColumns+`
		FROM events
		WHERE id = $1
	`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	return e, nil
}

func (r *Repository) CreateEvent(ctx context.Context, e domain.Event) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO events (id, name, starts_at, capacity, purchased, max_per_request)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, e.ID, e.Name, e.StartsAt, e.Capacity, e.Purchased, e.MaxPerRequest)
	if err != nil {
		return fmt.Errorf("create event: %w", err)
	}
	logger.Logger.Info().
		Str("event_id", e.ID.String()).
		Str("name", e.Name).
		Int("capacity", e.Capacity).
		Int("max_per_request", e.MaxPerRequest).
		Msg("event created")
	return nil
}

func (r *Repository) ListEvents(ctx context.Context) ([]domain.Event, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+eventColumns+`
		FROM events
		ORDER BY starts_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var out []domain.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("list events: %w", err)
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

// ReserveAndInsert claims capacity for the whole ticket batch and
// persists the tickets as one transaction. The guard predicate and the
// increment are a single UPDATE evaluated by Postgres, so two concurrent
// reservations for the last remaining seats can never both succeed.
// Returns false, persisting nothing, when the conditional update matched
// no row.
func (r *Repository) ReserveAndInsert(ctx context.Context, tickets []domain.Ticket) (bool, error) {
	if len(tickets) == 0 {
		return false, nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ok, err := r.reserveAndInsertTx(ctx, tx, tickets)
	if err != nil || !ok {
		return false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// reserveAndInsertTx runs the conditional increment plus batch insert
// inside the caller's transaction. Shared by ReserveAndInsert and the
// consumer's idempotency fence (ReserveAndInsertOnce).
func (r *Repository) reserveAndInsertTx(ctx context.Context, tx pgx.Tx, tickets []domain.Ticket) (bool, error) {
	eventID := tickets[0].EventID
	n := len(tickets)

	tag, err := tx.Exec(ctx, `
		UPDATE events
		SET purchased = purchased + $2
		WHERE id = $1
		  AND capacity - purchased >= $2
	`, eventID, n)
	if err != nil {
		return false, fmt.Errorf("reserve capacity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		logger.Logger.Info().
			Str("event_id", eventID.String()).
			Int("quantity", n).
			Msg("reservation rejected: capacity exhausted")
		return false, nil
	}

	if err := insertTicketsTx(ctx, tx, tickets); err != nil {
		return false, err
	}

	logger.Logger.Info().
		Str("event_id", eventID.String()).
		Int("quantity", n).
		Msg("reserved capacity and inserted tickets")
	return true, nil
}

// DecrementPurchased conditionally lowers the purchased counter; the
// guard keeps it from going negative. Callers treat failure as non-fatal.
func (r *Repository) DecrementPurchased(ctx context.Context, eventID uuid.UUID, by int) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE events
		SET purchased = purchased - $2
		WHERE id = $1
		  AND purchased >= $2
	`, eventID, by)
	if err != nil {
		return fmt.Errorf("decrement purchased: %w", err)
	}
	logger.Logger.Debug().
		Str("event_id", eventID.String()).
		Int("by", by).
		Int64("rows", tag.RowsAffected()).
		Msg("decremented purchased")
	return nil
}

func insertTicketsTx(ctx context.Context, tx pgx.Tx, tickets []domain.Ticket) error {
	b := &pgx.Batch{}
	for _, t := range tickets {
		b.Queue(`
			INSERT INTO tickets (id, event_id, user_id, purchased_at, status)
			VALUES ($1, $2, $3, $4, $5)
		`, t.ID, t.EventID, t.UserID, t.PurchasedAt, string(t.Status))
	}
	br := tx.SendBatch(ctx, b)
	defer br.Close()
	for range tickets {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("insert tickets: %w", err)
		}
	}
	return nil
}

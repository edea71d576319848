package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/adnancrnovrsanin/seatsync/internal/domain"
	"github.com/adnancrnovrsanin/seatsync/internal/pkg/logger"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const ticketColumns = `id, event_id, user_id, purchased_at, status`

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var (
		t      domain.Ticket
		status string
	)
	if err := row.Scan(&t.ID, &t.EventID, &t.UserID, &t.PurchasedAt, &status); err != nil {
		return nil, err
	}
	t.Status = domain.TicketStatus(status)
	return &t, nil
}

// InsertTickets persists a batch outside of any reservation. Reservation
// itself inserts through reserveAndInsertTx so the rows land in the same
// transaction as the capacity increment.
func (r *Repository) InsertTickets(ctx context.Context, tickets []domain.Ticket) error {
	if len(tickets) == 0 {
		return nil
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := insertTicketsTx(ctx, tx, tickets); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *Repository) TicketsForUser(ctx context.Context, userID string) ([]domain.Ticket, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+ticketColumns+`
		FROM tickets
		WHERE user_id = $1
		ORDER BY purchased_at ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("tickets for user: %w", err)
	}
	defer rows.Close()
	return collectTickets(rows)
}

// ActiveTickets feeds the expiry sweep.
func (r *Repository) ActiveTickets(ctx context.Context) ([]domain.Ticket, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+ticketColumns+`
		FROM tickets
		WHERE status = $1
	`, string(domain.StatusActive))
	if err != nil {
		return nil, fmt.Errorf("active tickets: %w", err)
	}
	defer rows.Close()
	return collectTickets(rows)
}

// GetTicket returns (nil, nil) when no such ticket exists.
func (r *Repository) GetTicket(ctx context.Context, id uuid.UUID) (*domain.Ticket, error) {
	t, err := scanTicket(r.pool.QueryRow(ctx, `
		SELECT `+ticketColumns+`
		FROM tickets
		WHERE id = $1
	`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get ticket: %w", err)
	}
	return t, nil
}

func (r *Repository) UpdateTicketStatus(ctx context.Context, t domain.Ticket) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE tickets
		SET status = $2
		WHERE id = $1
	`, t.ID, string(t.Status))
	if err != nil {
		return fmt.Errorf("update ticket: %w", err)
	}
	logger.Logger.Debug().
		Str("ticket_id", t.ID.String()).
		Str("status", string(t.Status)).
		Int64("rows", tag.RowsAffected()).
		Msg("updated ticket status")
	return nil
}

func collectTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var out []domain.Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

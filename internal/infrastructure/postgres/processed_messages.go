package postgres

import (
	"context"
	"strings"

	"github.com/adnancrnovrsanin/seatsync/internal/domain"
	"github.com/jackc/pgx/v5"
)

const purchaseHandler = "purchase_requests"

// tryMarkProcessedTx inserts (message_id, handler_name) once.
//
//	ok=true  -> first time processed
//	ok=false -> duplicate delivery (already processed)
func (r *Repository) tryMarkProcessedTx(ctx context.Context, tx pgx.Tx, messageID, handlerName string) (ok bool, err error) {
	tag, err := tx.Exec(ctx, `
		INSERT INTO processed_messages (message_id, handler_name)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, messageID, handlerName)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ReserveAndInsertOnce is the consumer-side reservation: the dedupe fence
// and the conditional reservation commit or roll back together, so a
// redelivered message after a crash between reservation and offset
// commit cannot issue tickets twice.
//
// Outcomes:
//
//	reserved=true              -> capacity claimed, tickets persisted
//	duplicate=true             -> messageID already applied; nothing done
//	domain.ErrCapacityConflict -> capacity exhausted; fence rolled back
//	other error                -> transient; fence rolled back, safe to retry
func (r *Repository) ReserveAndInsertOnce(ctx context.Context, messageID string, tickets []domain.Ticket) (reserved bool, duplicate bool, err error) {
	messageID = strings.TrimSpace(messageID)
	if messageID == "" || len(tickets) == 0 {
		// Without a message id there is nothing to fence on; fall back to
		// the plain reservation.
		ok, err := r.ReserveAndInsert(ctx, tickets)
		if err != nil {
			return false, false, err
		}
		if !ok {
			return false, false, domain.ErrCapacityConflict
		}
		return true, false, nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	first, err := r.tryMarkProcessedTx(ctx, tx, messageID, purchaseHandler)
	if err != nil {
		return false, false, err
	}
	if !first {
		// Duplicate delivery: don't mutate anything.
		return false, true, nil
	}

	ok, err := r.reserveAndInsertTx(ctx, tx, tickets)
	if err != nil {
		return false, false, err
	}
	if !ok {
		// Rolling back also drops the fence row: the conflict is final for
		// this message either way (it goes to the DLQ), and a retried
		// delivery must be able to run the check again.
		return false, false, domain.ErrCapacityConflict
	}

	if err := tx.Commit(ctx); err != nil {
		return false, false, err
	}
	return true, false, nil
}

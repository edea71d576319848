package domain

import (
	"time"

	"github.com/google/uuid"
)

// Purchase decides whether req may be satisfied against the given event
// snapshot. First failing check wins. On success it returns exactly
// req.Quantity fresh active tickets stamped with now.
//
// The function does no I/O and holds no state; the snapshot may be stale
// by the time the caller acts on the decision. The capacity race is
// resolved by the store's conditional reservation, not here.
func Purchase(event *Event, req PurchaseRequest, now time.Time) ([]Ticket, error) {
	if req.Quantity <= 0 {
		return nil, ErrNonPositiveQuantity
	}
	if event == nil {
		return nil, ErrEventNotFound
	}
	if event.IsPast(now) {
		return nil, ErrEventInPast
	}
	if req.Quantity > event.MaxPerRequest {
		return nil, ErrOverMaxPerRequest
	}
	if req.Quantity > event.Remaining() {
		return nil, ErrSoldOut
	}

	tickets := make([]Ticket, 0, req.Quantity)
	for i := 0; i < req.Quantity; i++ {
		tickets = append(tickets, Ticket{
			ID:          uuid.New(),
			EventID:     event.ID,
			UserID:      req.UserID,
			PurchasedAt: now,
			Status:      StatusActive,
		})
	}
	return tickets, nil
}

// CancelTicket returns a copy of t with status cancelled, or a rejection.
// It does not touch event capacity; the caller issues the best-effort
// decrement separately.
func CancelTicket(t Ticket, by string) (Ticket, error) {
	if t.UserID != by {
		return Ticket{}, ErrNotOwner
	}
	if t.Status == StatusCancelled {
		return Ticket{}, ErrAlreadyCancelled
	}
	t.Status = StatusCancelled
	return t, nil
}

// ExpireIfPast moves an active ticket to expired once its event has
// started. Otherwise the ticket is returned unchanged, so callers can
// compare against the input and skip persistence.
func ExpireIfPast(e Event, t Ticket, now time.Time) Ticket {
	if now.After(e.StartsAt) && t.Status == StatusActive {
		t.Status = StatusExpired
	}
	return t
}

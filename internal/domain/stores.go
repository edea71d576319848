package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EventStore owns the authoritative purchased counter. All mutation of
// that counter goes through ReserveAndInsert / DecrementPurchased so the
// oversell invariant is enforced by a single conditional statement in
// the storage engine, never by read-then-write in a caller.
type EventStore interface {
	// GetEvent returns (nil, nil) when the event does not exist.
	GetEvent(ctx context.Context, id uuid.UUID) (*Event, error)
	CreateEvent(ctx context.Context, e Event) error
	ListEvents(ctx context.Context) ([]Event, error)

	// ReserveAndInsert increments the event's purchased counter by
	// len(tickets) only if that much capacity remains at the instant of
	// the update, and persists the tickets in the same transaction.
	// All tickets must belong to the same event. Returns false, and
	// persists nothing, when capacity was already exhausted.
	ReserveAndInsert(ctx context.Context, tickets []Ticket) (bool, error)

	// DecrementPurchased conditionally lowers the counter (never below
	// zero). Best-effort compensation for cancellations.
	DecrementPurchased(ctx context.Context, eventID uuid.UUID, by int) error
}

type TicketStore interface {
	InsertTickets(ctx context.Context, tickets []Ticket) error
	TicketsForUser(ctx context.Context, userID string) ([]Ticket, error)
	ActiveTickets(ctx context.Context) ([]Ticket, error)
	// GetTicket returns (nil, nil) when the ticket does not exist.
	GetTicket(ctx context.Context, id uuid.UUID) (*Ticket, error)
	UpdateTicketStatus(ctx context.Context, t Ticket) error
}

// ConflictCache is an advisory fast-fail hint for sold-out events. It
// can only reject early; admission is always decided by the EventStore.
type ConflictCache interface {
	IsSoldOut(ctx context.Context, eventID uuid.UUID) (bool, error)
	MarkSoldOut(ctx context.Context, eventID uuid.UUID, ttl time.Duration) error
	ClearSoldOut(ctx context.Context, eventID uuid.UUID) error

	AllowRequest(ctx context.Context, ip string, limit int, window time.Duration) (bool, error)
}

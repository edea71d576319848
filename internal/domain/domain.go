package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

type TicketStatus string

const (
	StatusActive    TicketStatus = "active"
	StatusCancelled TicketStatus = "cancelled"
	StatusExpired   TicketStatus = "expired"
)

// Domain rejections. Expected outcomes, never logged as failures.
var (
	ErrEventNotFound       = errors.New("event not found")
	ErrEventInPast         = errors.New("event already started")
	ErrSoldOut             = errors.New("not enough remaining capacity")
	ErrOverMaxPerRequest   = errors.New("quantity exceeds per-request limit")
	ErrNonPositiveQuantity = errors.New("quantity must be positive")
	ErrNotOwner            = errors.New("ticket belongs to another user")
	ErrAlreadyCancelled    = errors.New("ticket already cancelled")
)

// Non-domain outcomes surfaced by the service layer.
var (
	ErrTicketNotFound   = errors.New("ticket not found")
	ErrCapacityConflict = errors.New("capacity exhausted by a concurrent reservation")
)

type Event struct {
	ID            uuid.UUID
	Name          string
	StartsAt      time.Time
	Capacity      int
	Purchased     int
	MaxPerRequest int
}

func (e Event) Remaining() int { return e.Capacity - e.Purchased }

func (e Event) IsPast(now time.Time) bool { return now.After(e.StartsAt) }

type Ticket struct {
	ID          uuid.UUID
	EventID     uuid.UUID
	UserID      string
	PurchasedAt time.Time
	Status      TicketStatus
}

// PurchaseRequest is transient; it lives for the duration of one decision.
type PurchaseRequest struct {
	UserID   string
	EventID  uuid.UUID
	Quantity int
}

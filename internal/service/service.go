package service

import (
	"context"
	"time"

	"github.com/adnancrnovrsanin/seatsync/internal/domain"
	"github.com/adnancrnovrsanin/seatsync/internal/pkg/logger"
	"github.com/google/uuid"
)

// soldOutHintTTL bounds how long a stale hint can reject purchases after
// a cancellation on another instance frees capacity.
const soldOutHintTTL = 30 * time.Second

type TicketService struct {
	events  domain.EventStore
	tickets domain.TicketStore
	cache   domain.ConflictCache
}

func NewTicketService(events domain.EventStore, tickets domain.TicketStore, cache domain.ConflictCache) *TicketService {
	return &TicketService{events: events, tickets: tickets, cache: cache}
}

// Purchase validates the request against a fresh event snapshot and, on
// acceptance, claims capacity through the store's atomic reservation.
// Capacity conflicts surface as domain.ErrCapacityConflict.
func (s *TicketService) Purchase(ctx context.Context, userID string, eventID uuid.UUID, quantity int) ([]domain.Ticket, error) {
	if quantity <= 0 {
		return nil, domain.ErrNonPositiveQuantity
	}

	// Advisory fast-fail for hot sold-out events. Cache trouble is
	// ignored; Postgres stays authoritative.
	if s.cache != nil {
		if soldOut, err := s.cache.IsSoldOut(ctx, eventID); err == nil && soldOut {
			return nil, domain.ErrSoldOut
		}
	}

	event, err := s.events.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}

	tickets, err := domain.Purchase(event, domain.PurchaseRequest{
		UserID:   userID,
		EventID:  eventID,
		Quantity: quantity,
	}, time.Now())
	if err != nil {
		return nil, err
	}

	ok, err := s.events.ReserveAndInsert(ctx, tickets)
	if err != nil {
		return nil, err
	}
	if !ok {
		if s.cache != nil {
			if err := s.cache.MarkSoldOut(ctx, eventID, soldOutHintTTL); err != nil {
				logger.WithCtx(ctx).Debug().Err(err).Msg("sold-out hint write failed")
			}
		}
		return nil, domain.ErrCapacityConflict
	}
	return tickets, nil
}

// CancelTicket cancels an owned ticket and then issues the best-effort
// capacity decrement. A failed decrement never fails the cancellation;
// the counter is reconciled out of band.
func (s *TicketService) CancelTicket(ctx context.Context, userID string, ticketID uuid.UUID) (domain.Ticket, error) {
	ticket, err := s.tickets.GetTicket(ctx, ticketID)
	if err != nil {
		return domain.Ticket{}, err
	}
	if ticket == nil {
		return domain.Ticket{}, domain.ErrTicketNotFound
	}

	cancelled, err := domain.CancelTicket(*ticket, userID)
	if err != nil {
		return domain.Ticket{}, err
	}
	if err := s.tickets.UpdateTicketStatus(ctx, cancelled); err != nil {
		return domain.Ticket{}, err
	}

	if err := s.events.DecrementPurchased(ctx, cancelled.EventID, 1); err != nil {
		logger.WithCtx(ctx).Warn().Err(err).
			Str("event_id", cancelled.EventID.String()).
			Msg("capacity decrement failed (cancellation stands)")
	} else if s.cache != nil {
		if err := s.cache.ClearSoldOut(ctx, cancelled.EventID); err != nil {
			logger.WithCtx(ctx).Debug().Err(err).Msg("sold-out hint clear failed")
		}
	}
	return cancelled, nil
}

func (s *TicketService) TicketsForUser(ctx context.Context, userID string) ([]domain.Ticket, error) {
	return s.tickets.TicketsForUser(ctx, userID)
}

func (s *TicketService) ListEvents(ctx context.Context) ([]domain.Event, error) {
	return s.events.ListEvents(ctx)
}

func (s *TicketService) CreateEvent(ctx context.Context, name string, startsAt time.Time, capacity, maxPerRequest int) (domain.Event, error) {
	e := domain.Event{
		ID:            uuid.New(),
		Name:          name,
		StartsAt:      startsAt,
		Capacity:      capacity,
		Purchased:     0,
		MaxPerRequest: maxPerRequest,
	}
	if err := s.events.CreateEvent(ctx, e); err != nil {
		return domain.Event{}, err
	}
	return e, nil
}

// ExpireTickets runs one expiry sweep: list active tickets, apply the
// pure transition, persist only the tickets that changed. Returns the
// number of tickets expired.
func (s *TicketService) ExpireTickets(ctx context.Context) (int, error) {
	active, err := s.tickets.ActiveTickets(ctx)
	if err != nil {
		return 0, err
	}

	now := time.Now()
	events := map[uuid.UUID]*domain.Event{}
	expired := 0

	for _, t := range active {
		event, ok := events[t.EventID]
		if !ok {
			event, err = s.events.GetEvent(ctx, t.EventID)
			if err != nil {
				return expired, err
			}
			events[t.EventID] = event
		}
		if event == nil {
			continue
		}

		updated := domain.ExpireIfPast(*event, t, now)
		if updated == t {
			continue
		}
		if err := s.tickets.UpdateTicketStatus(ctx, updated); err != nil {
			return expired, err
		}
		expired++
	}

	if expired > 0 {
		logger.Logger.Info().Int("count", expired).Msg("expired tickets")
	}
	return expired, nil
}

package rest

import (
	"errors"
	"net/http"
	"time"

	"github.com/adnancrnovrsanin/seatsync/internal/domain"
	appCtx "github.com/adnancrnovrsanin/seatsync/internal/pkg/context"
	"github.com/adnancrnovrsanin/seatsync/internal/service"
	"github.com/adnancrnovrsanin/seatsync/internal/transport/rest/response"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
)

type Handler struct {
	svc *service.TicketService
}

func NewHandler(svc *service.TicketService) *Handler {
	return &Handler{svc: svc}
}

type eventDTO struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	StartsAt      time.Time `json:"starts_at"`
	Remaining     int       `json:"remaining"`
	MaxPerRequest int       `json:"max_per_request"`
}

type ticketDTO struct {
	ID          string    `json:"id"`
	EventID     string    `json:"event_id"`
	UserID      string    `json:"user_id"`
	PurchasedAt time.Time `json:"purchased_at"`
	Status      string    `json:"status"`
}

func toTicketDTO(t domain.Ticket) ticketDTO {
	return ticketDTO{
		ID:          t.ID.String(),
		EventID:     t.EventID.String(),
		UserID:      t.UserID,
		PurchasedAt: t.PurchasedAt,
		Status:      string(t.Status),
	}
}

func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.svc.ListEvents(r.Context())
	if err != nil {
		handleErr(w, r, err)
		return
	}

	out := make([]eventDTO, 0, len(events))
	for _, e := range events {
		out = append(out, eventDTO{
			ID:            e.ID.String(),
			Name:          e.Name,
			StartsAt:      e.StartsAt,
			Remaining:     e.Remaining(),
			MaxPerRequest: e.MaxPerRequest,
		})
	}
	response.Data(w, http.StatusOK, out)
}

func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name          string    `json:"name"`
		StartsAt      time.Time `json:"starts_at"`
		Capacity      int       `json:"capacity"`
		MaxPerRequest int       `json:"max_per_request"`
	}
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		fail(w, r, http.StatusBadRequest, "request.invalid", "invalid body", nil)
		return
	}
	if req.Name == "" || req.Capacity < 0 || req.MaxPerRequest <= 0 {
		fail(w, r, http.StatusBadRequest, "request.invalid", "name, capacity and max_per_request are required", nil)
		return
	}

	event, err := h.svc.CreateEvent(r.Context(), req.Name, req.StartsAt, req.Capacity, req.MaxPerRequest)
	if err != nil {
		handleErr(w, r, err)
		return
	}

	response.Data(w, http.StatusCreated, map[string]string{"id": event.ID.String()})
}

func (h *Handler) Purchase(w http.ResponseWriter, r *http.Request) {
	var req struct {
		EventID  string `json:"event_id"`
		Quantity int    `json:"quantity"`
	}
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		fail(w, r, http.StatusBadRequest, "request.invalid", "invalid body", nil)
		return
	}

	eventID, err := uuid.Parse(req.EventID)
	if err != nil {
		fail(w, r, http.StatusBadRequest, "request.invalid", "invalid event_id", map[string]string{
			"event_id": "must be a valid uuid",
		})
		return
	}

	auth, ok := GetAuth(r.Context())
	if !ok {
		fail(w, r, http.StatusUnauthorized, "auth.unauthorized", "unauthorized", nil)
		return
	}

	tickets, err := h.svc.Purchase(r.Context(), auth.UserID, eventID, req.Quantity)
	if err != nil {
		handleErr(w, r, err)
		return
	}

	ids := make([]string, 0, len(tickets))
	for _, t := range tickets {
		ids = append(ids, t.ID.String())
	}
	response.Data(w, http.StatusOK, map[string]any{"tickets": ids})
}

func (h *Handler) MyTickets(w http.ResponseWriter, r *http.Request) {
	auth, ok := GetAuth(r.Context())
	if !ok {
		fail(w, r, http.StatusUnauthorized, "auth.unauthorized", "unauthorized", nil)
		return
	}

	tickets, err := h.svc.TicketsForUser(r.Context(), auth.UserID)
	if err != nil {
		handleErr(w, r, err)
		return
	}

	out := make([]ticketDTO, 0, len(tickets))
	for _, t := range tickets {
		out = append(out, toTicketDTO(t))
	}
	response.Data(w, http.StatusOK, out)
}

func (h *Handler) CancelTicket(w http.ResponseWriter, r *http.Request) {
	ticketID, err := uuid.Parse(chi.URLParam(r, "ticketID"))
	if err != nil {
		fail(w, r, http.StatusBadRequest, "request.invalid", "invalid ticketID", map[string]string{
			"ticket_id": "must be a valid uuid",
		})
		return
	}

	auth, ok := GetAuth(r.Context())
	if !ok {
		fail(w, r, http.StatusUnauthorized, "auth.unauthorized", "unauthorized", nil)
		return
	}

	ticket, err := h.svc.CancelTicket(r.Context(), auth.UserID, ticketID)
	if err != nil {
		handleErr(w, r, err)
		return
	}

	response.Data(w, http.StatusOK, toTicketDTO(ticket))
}

func handleErr(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrNonPositiveQuantity):
		fail(w, r, http.StatusBadRequest, "purchase.non_positive_quantity", err.Error(), nil)
	case errors.Is(err, domain.ErrOverMaxPerRequest):
		fail(w, r, http.StatusBadRequest, "purchase.over_max_per_request", err.Error(), nil)
	case errors.Is(err, domain.ErrEventInPast):
		fail(w, r, http.StatusBadRequest, "event.in_past", err.Error(), nil)
	case errors.Is(err, domain.ErrSoldOut):
		fail(w, r, http.StatusBadRequest, "event.sold_out", err.Error(), nil)
	case errors.Is(err, domain.ErrEventNotFound):
		fail(w, r, http.StatusNotFound, "event.not_found", err.Error(), nil)
	case errors.Is(err, domain.ErrTicketNotFound):
		fail(w, r, http.StatusNotFound, "ticket.not_found", err.Error(), nil)
	case errors.Is(err, domain.ErrNotOwner):
		fail(w, r, http.StatusForbidden, "ticket.not_owner", err.Error(), nil)
	case errors.Is(err, domain.ErrAlreadyCancelled):
		fail(w, r, http.StatusConflict, "ticket.already_cancelled", err.Error(), nil)
	case errors.Is(err, domain.ErrCapacityConflict):
		fail(w, r, http.StatusConflict, "purchase.capacity_conflict", "not enough capacity", nil)
	default:
		// Do not leak internal details.
		fail(w, r, http.StatusInternalServerError, "internal", "internal error", nil)
	}
}

func fail(w http.ResponseWriter, r *http.Request, status int, code, message string, meta map[string]string) {
	reqID := appCtx.GetRequestID(r.Context())
	if reqID == "" {
		reqID = "no-request-id"
	}
	response.Fail(w, status, code, message, meta, reqID)
}

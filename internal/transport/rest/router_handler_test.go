package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/adnancrnovrsanin/seatsync/internal/domain"
	"github.com/adnancrnovrsanin/seatsync/internal/pkg/logger"
	"github.com/adnancrnovrsanin/seatsync/internal/security"
	"github.com/adnancrnovrsanin/seatsync/internal/service"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func init() {
	logger.Init()
}

type MockEventStore struct{ mock.Mock }

func (m *MockEventStore) GetEvent(ctx context.Context, id uuid.UUID) (*domain.Event, error) {
	args := m.Called(ctx, id)
	if e, ok := args.Get(0).(*domain.Event); ok {
		return e, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockEventStore) CreateEvent(ctx context.Context, e domain.Event) error {
	return m.Called(ctx, e).Error(0)
}

func (m *MockEventStore) ListEvents(ctx context.Context) ([]domain.Event, error) {
	args := m.Called(ctx)
	if ev, ok := args.Get(0).([]domain.Event); ok {
		return ev, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockEventStore) ReserveAndInsert(ctx context.Context, tickets []domain.Ticket) (bool, error) {
	args := m.Called(ctx, tickets)
	return args.Bool(0), args.Error(1)
}

func (m *MockEventStore) DecrementPurchased(ctx context.Context, eventID uuid.UUID, by int) error {
	return m.Called(ctx, eventID, by).Error(0)
}

type MockTicketStore struct{ mock.Mock }

func (m *MockTicketStore) InsertTickets(ctx context.Context, tickets []domain.Ticket) error {
	return m.Called(ctx, tickets).Error(0)
}

func (m *MockTicketStore) TicketsForUser(ctx context.Context, userID string) ([]domain.Ticket, error) {
	args := m.Called(ctx, userID)
	if ts, ok := args.Get(0).([]domain.Ticket); ok {
		return ts, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockTicketStore) ActiveTickets(ctx context.Context) ([]domain.Ticket, error) {
	args := m.Called(ctx)
	if ts, ok := args.Get(0).([]domain.Ticket); ok {
		return ts, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockTicketStore) GetTicket(ctx context.Context, id uuid.UUID) (*domain.Ticket, error) {
	args := m.Called(ctx, id)
	if t, ok := args.Get(0).(*domain.Ticket); ok {
		return t, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockTicketStore) UpdateTicketStatus(ctx context.Context, t domain.Ticket) error {
	return m.Called(ctx, t).Error(0)
}

// stubVerifier resolves fixed bearer tokens so routing tests do not
// need to mint real JWTs.
type stubVerifier struct {
	tokens map[string]security.TokenClaims
}

func (v *stubVerifier) VerifyAccessToken(token string) (security.TokenClaims, error) {
	claims, ok := v.tokens[token]
	if !ok {
		return security.TokenClaims{}, security.ErrTokenInvalid
	}
	return claims, nil
}

func newTestRouter(events *MockEventStore, tickets *MockTicketStore) http.Handler {
	svc := service.NewTicketService(events, tickets, nil)
	verifier := &stubVerifier{tokens: map[string]security.TokenClaims{
		"user-token":  {UserID: "user-1", Role: "user"},
		"admin-token": {UserID: "admin-1", Role: "admin"},
	}}
	return NewRouter(NewHandler(svc), RouterConfig{Verifier: verifier})
}

func doJSON(t *testing.T, router http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func upcomingEvent(capacity, purchased, maxPerRequest int) *domain.Event {
	return &domain.Event{
		ID:            uuid.New(),
		Name:          "Stadium Night",
		StartsAt:      time.Now().Add(24 * time.Hour),
		Capacity:      capacity,
		Purchased:     purchased,
		MaxPerRequest: maxPerRequest,
	}
}

func TestListEvents_Public(t *testing.T) {
	events := new(MockEventStore)
	tickets := new(MockTicketStore)
	e := upcomingEvent(100, 40, 4)
	events.On("ListEvents", mock.Anything).Return([]domain.Event{*e}, nil)

	rr := doJSON(t, newTestRouter(events, tickets), http.MethodGet, "/public/events", "", nil)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp struct {
		Data []struct {
			ID        string `json:"id"`
			Remaining int    `json:"remaining"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, e.ID.String(), resp.Data[0].ID)
	assert.Equal(t, 60, resp.Data[0].Remaining)
}

func TestPurchase_RequiresAuth(t *testing.T) {
	router := newTestRouter(new(MockEventStore), new(MockTicketStore))

	rr := doJSON(t, router, http.MethodPost, "/user/purchase", "", map[string]any{
		"event_id": uuid.NewString(),
		"quantity": 1,
	})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = doJSON(t, router, http.MethodPost, "/user/purchase", "garbage", map[string]any{
		"event_id": uuid.NewString(),
		"quantity": 1,
	})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestPurchase_Success(t *testing.T) {
	events := new(MockEventStore)
	tickets := new(MockTicketStore)
	e := upcomingEvent(100, 0, 4)
	events.On("GetEvent", mock.Anything, e.ID).Return(e, nil)
	events.On("ReserveAndInsert", mock.Anything, mock.MatchedBy(func(ts []domain.Ticket) bool {
		return len(ts) == 2 && ts[0].UserID == "user-1"
	})).Return(true, nil)

	rr := doJSON(t, newTestRouter(events, tickets), http.MethodPost, "/user/purchase", "user-token", map[string]any{
		"event_id": e.ID.String(),
		"quantity": 2,
	})

	require.Equal(t, http.StatusOK, rr.Code)
	var resp struct {
		Data struct {
			Tickets []string `json:"tickets"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Len(t, resp.Data.Tickets, 2)
	events.AssertExpectations(t)
}

func TestPurchase_ErrorMapping(t *testing.T) {
	e := upcomingEvent(10, 10, 4)
	unknownID := uuid.New()

	tests := []struct {
		name       string
		setup      func(events *MockEventStore)
		body       map[string]any
		wantStatus int
		wantCode   string
	}{
		{
			name:       "invalid event id",
			setup:      func(*MockEventStore) {},
			body:       map[string]any{"event_id": "not-a-uuid", "quantity": 1},
			wantStatus: http.StatusBadRequest,
			wantCode:   "request.invalid",
		},
		{
			name:       "non positive quantity",
			setup:      func(*MockEventStore) {},
			body:       map[string]any{"event_id": e.ID.String(), "quantity": 0},
			wantStatus: http.StatusBadRequest,
			wantCode:   "purchase.non_positive_quantity",
		},
		{
			name: "unknown event",
			setup: func(events *MockEventStore) {
				events.On("GetEvent", mock.Anything, unknownID).Return(nil, nil)
			},
			body:       map[string]any{"event_id": unknownID.String(), "quantity": 1},
			wantStatus: http.StatusNotFound,
			wantCode:   "event.not_found",
		},
		{
			name: "sold out",
			setup: func(events *MockEventStore) {
				events.On("GetEvent", mock.Anything, e.ID).Return(e, nil)
			},
			body:       map[string]any{"event_id": e.ID.String(), "quantity": 1},
			wantStatus: http.StatusBadRequest,
			wantCode:   "event.sold_out",
		},
		{
			name: "capacity conflict",
			setup: func(events *MockEventStore) {
				open := upcomingEvent(10, 0, 4)
				open.ID = e.ID
				events.On("GetEvent", mock.Anything, e.ID).Return(open, nil)
				events.On("ReserveAndInsert", mock.Anything, mock.Anything).Return(false, nil)
			},
			body:       map[string]any{"event_id": e.ID.String(), "quantity": 1},
			wantStatus: http.StatusConflict,
			wantCode:   "purchase.capacity_conflict",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			events := new(MockEventStore)
			tc.setup(events)
			rr := doJSON(t, newTestRouter(events, new(MockTicketStore)), http.MethodPost, "/user/purchase", "user-token", tc.body)

			require.Equal(t, tc.wantStatus, rr.Code)
			var resp struct {
				Error struct {
					Code string `json:"code"`
				} `json:"error"`
			}
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
			assert.Equal(t, tc.wantCode, resp.Error.Code)
		})
	}
}

func TestCreateEvent_RoleGate(t *testing.T) {
	events := new(MockEventStore)
	events.On("CreateEvent", mock.Anything, mock.Anything).Return(nil)
	router := newTestRouter(events, new(MockTicketStore))

	body := map[string]any{
		"name":            "Arena Show",
		"starts_at":       time.Now().Add(48 * time.Hour).Format(time.RFC3339),
		"capacity":        200,
		"max_per_request": 4,
	}

	rr := doJSON(t, router, http.MethodPost, "/admin/events", "user-token", body)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = doJSON(t, router, http.MethodPost, "/admin/events", "admin-token", body)
	assert.Equal(t, http.StatusCreated, rr.Code)
}

func TestMyTickets(t *testing.T) {
	events := new(MockEventStore)
	tickets := new(MockTicketStore)
	owned := domain.Ticket{
		ID:          uuid.New(),
		EventID:     uuid.New(),
		UserID:      "user-1",
		PurchasedAt: time.Now().UTC().Truncate(time.Second),
		Status:      domain.StatusActive,
	}
	tickets.On("TicketsForUser", mock.Anything, "user-1").Return([]domain.Ticket{owned}, nil)

	rr := doJSON(t, newTestRouter(events, tickets), http.MethodGet, "/user/tickets", "user-token", nil)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp struct {
		Data []ticketDTO `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, owned.ID.String(), resp.Data[0].ID)
	assert.Equal(t, "active", resp.Data[0].Status)
}

func TestCancelTicket(t *testing.T) {
	ticketID := uuid.New()
	eventID := uuid.New()

	newTicket := func(owner string, status domain.TicketStatus) *domain.Ticket {
		return &domain.Ticket{
			ID:          ticketID,
			EventID:     eventID,
			UserID:      owner,
			PurchasedAt: time.Now().Add(-time.Hour),
			Status:      status,
		}
	}

	t.Run("success", func(t *testing.T) {
		events := new(MockEventStore)
		tickets := new(MockTicketStore)
		tickets.On("GetTicket", mock.Anything, ticketID).Return(newTicket("user-1", domain.StatusActive), nil)
		tickets.On("UpdateTicketStatus", mock.Anything, mock.MatchedBy(func(tk domain.Ticket) bool {
			return tk.Status == domain.StatusCancelled
		})).Return(nil)
		events.On("DecrementPurchased", mock.Anything, eventID, 1).Return(nil)

		rr := doJSON(t, newTestRouter(events, tickets), http.MethodPost, "/user/tickets/"+ticketID.String()+"/cancel", "user-token", nil)

		require.Equal(t, http.StatusOK, rr.Code)
		var resp struct {
			Data ticketDTO `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Equal(t, "cancelled", resp.Data.Status)
	})

	t.Run("not owner", func(t *testing.T) {
		tickets := new(MockTicketStore)
		tickets.On("GetTicket", mock.Anything, ticketID).Return(newTicket("someone-else", domain.StatusActive), nil)

		rr := doJSON(t, newTestRouter(new(MockEventStore), tickets), http.MethodPost, "/user/tickets/"+ticketID.String()+"/cancel", "user-token", nil)
		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("already cancelled", func(t *testing.T) {
		tickets := new(MockTicketStore)
		tickets.On("GetTicket", mock.Anything, ticketID).Return(newTicket("user-1", domain.StatusCancelled), nil)

		rr := doJSON(t, newTestRouter(new(MockEventStore), tickets), http.MethodPost, "/user/tickets/"+ticketID.String()+"/cancel", "user-token", nil)
		assert.Equal(t, http.StatusConflict, rr.Code)
	})

	t.Run("not found", func(t *testing.T) {
		tickets := new(MockTicketStore)
		tickets.On("GetTicket", mock.Anything, ticketID).Return(nil, nil)

		rr := doJSON(t, newTestRouter(new(MockEventStore), tickets), http.MethodPost, "/user/tickets/"+ticketID.String()+"/cancel", "user-token", nil)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("bad id", func(t *testing.T) {
		rr := doJSON(t, newTestRouter(new(MockEventStore), new(MockTicketStore)), http.MethodPost, "/user/tickets/nope/cancel", "user-token", nil)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

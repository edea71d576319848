package rest

import (
	"net/http"
	"time"

	"github.com/adnancrnovrsanin/seatsync/internal/domain"
	"github.com/adnancrnovrsanin/seatsync/internal/security"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type RouterConfig struct {
	Verifier       security.AccessTokenVerifier
	ExpectedIssuer string
	Cache          domain.ConflictCache
	RateLimit      int
	RateWindow     time.Duration
}

func NewRouter(h *Handler, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestID)
	r.Use(HTTPLogger)
	r.Use(middleware.Recoverer)
	r.Use(SecurityHeaders)
	if cfg.Cache != nil && cfg.RateLimit > 0 {
		r.Use(RateLimitMiddleware(cfg.Cache, cfg.RateLimit, cfg.RateWindow))
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/public", func(r chi.Router) {
		r.Get("/events", h.ListEvents)
	})

	auth := AuthMiddleware(cfg.Verifier, AuthOptions{ExpectedIssuer: cfg.ExpectedIssuer})

	r.Route("/admin", func(r chi.Router) {
		r.Use(auth)
		r.Use(RequireRole("admin"))
		r.Post("/events", h.CreateEvent)
	})

	r.Route("/user", func(r chi.Router) {
		r.Use(auth)
		r.Post("/purchase", h.Purchase)
		r.Get("/tickets", h.MyTickets)
		r.Post("/tickets/{ticketID}/cancel", h.CancelTicket)
	})

	return r
}

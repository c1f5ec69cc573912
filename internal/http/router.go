package http

import (
	"log/slog"
	"net/http"
	"net/netip"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// MetricsProvider instruments requests and exposes the scrape endpoint.
type MetricsProvider interface {
	Instrument(next http.Handler) http.Handler
	Handler() http.Handler
}

// RouterConfig wires handlers into the router. Nil handlers leave their
// routes unregistered.
type RouterConfig struct {
	Sessions     *SessionHandler
	Employees    *EmployeeHandler
	Meetings     *MeetingHandler
	Invites      *InviteHandler
	Participants *ParticipantHandler
	RTC          *RTCHandler
	Health       *HealthHandler

	SessionValidator SessionValidator
	PublicLimiter    *RateLimiter
	TrustedProxies   []netip.Prefix
	Metrics          MetricsProvider
	Logger           *slog.Logger
	Middleware       []func(http.Handler) http.Handler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, TrustedRealIP(cfg.TrustedProxies))
	r.Use(RequestLogger(cfg.Logger))
	r.Use(middleware.Recoverer)
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Instrument)
	}
	for _, mw := range cfg.Middleware {
		r.Use(mw)
	}

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		newResponder(cfg.Logger).writeJSON(req.Context(), w, http.StatusNotFound, errorResponse{Message: localizedStatusMessage(http.StatusNotFound)})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		newResponder(cfg.Logger).writeJSON(req.Context(), w, http.StatusMethodNotAllowed, errorResponse{Message: "Método no permitido."})
	})

	if cfg.Health != nil {
		r.Get("/healthz", cfg.Health.Check)
	}
	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics.Handler())
	}

	if cfg.Sessions != nil {
		r.With(limitWith(cfg.PublicLimiter)).Post("/sessions", cfg.Sessions.Create)
		r.Delete("/sessions/current", cfg.Sessions.DeleteCurrent)
	}

	if cfg.Invites != nil {
		r.Route("/invites/{code}", func(r chi.Router) {
			r.Use(limitWith(cfg.PublicLimiter))
			r.Use(OptionalSession(cfg.SessionValidator, cfg.Logger))
			r.Get("/", cfg.Invites.Preview)
			r.Post("/join", cfg.Invites.Join)
		})
	}

	if cfg.Participants != nil {
		r.Post("/participants/{participantID}/leave", cfg.Participants.Leave)
		r.Patch("/participants/{participantID}/connection", cfg.Participants.UpdateConnection)
	}

	if cfg.RTC != nil {
		r.Post("/rtc/token", cfg.RTC.Token)
		r.Get("/rtc/token", cfg.RTC.Health)
	}

	if cfg.SessionValidator == nil {
		return r
	}

	r.Group(func(r chi.Router) {
		r.Use(RequireSession(cfg.SessionValidator, cfg.Logger))

		if cfg.Employees != nil {
			r.Get("/employees/me", cfg.Employees.Me)
			r.Get("/employees", cfg.Employees.Search)
		}

		if cfg.Meetings != nil {
			r.Post("/meetings", cfg.Meetings.Create)
			r.Get("/meetings", cfg.Meetings.List)
			r.Get("/rooms/{roomID}", cfg.Meetings.GetByRoom)
			r.Route("/meetings/{meetingID}", func(r chi.Router) {
				r.Get("/", cfg.Meetings.Get)
				r.Post("/invites", cfg.Meetings.CreateInvite)
				r.Post("/start", cfg.Meetings.Start)
				r.Post("/end", cfg.Meetings.End)
				r.Post("/join", cfg.Meetings.Join)
				r.Get("/participants", cfg.Meetings.Participants)
			})
		}
	})

	return r
}

func limitWith(rl *RateLimiter) func(http.Handler) http.Handler {
	if rl == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return rl.Limit
}

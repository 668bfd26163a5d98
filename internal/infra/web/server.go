package web

import (
	"context"
	"net/http"
	"time"

	"resume-checkout/internal/domain/model"
	"resume-checkout/internal/domain/ports/adapter"
	"resume-checkout/internal/infra/logging"
	"resume-checkout/internal/infra/sched"
	"resume-checkout/internal/usecase"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

type ctxKey string

const sessionKey ctxKey = "checkout_session"

// SessionFromContext returns the authenticated checkout session id.
func SessionFromContext(ctx context.Context) (string, bool) {
	s, ok := ctx.Value(sessionKey).(string)
	return s, ok
}

// Server exposes the checkout payment API.
type Server struct {
	intents    usecase.IntentUseCase
	gateway    adapter.PaymentGateway
	gate       *usecase.UnlockGate
	reconciler *sched.Reconciler
	sessions   *SessionManager
	plans      map[string]int64 // plan name -> price in minor units
	currency   string
	country    string
	returnURL  string
	log        *zerolog.Logger
}

func NewServer(
	intents usecase.IntentUseCase,
	gateway adapter.PaymentGateway,
	gate *usecase.UnlockGate,
	reconciler *sched.Reconciler,
	sessions *SessionManager,
	plans map[string]int64,
	currency string,
	country string,
	returnURL string,
	logger *zerolog.Logger,
) *Server {
	if returnURL == "" {
		returnURL = "/checkout"
	}
	l := logger.With().Str("component", "WebServer").Logger()
	return &Server{
		intents:    intents,
		gateway:    gateway,
		gate:       gate,
		reconciler: reconciler,
		sessions:   sessions,
		plans:      plans,
		currency:   currency,
		country:    country,
		returnURL:  returnURL,
		log:        &l,
	}
}

// Routes builds the full handler chain.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1/payments", func(r chi.Router) {
		r.Use(s.requireSession)
		r.Post("/", s.handleCreate)
		r.Get("/callback", s.handleCallback)
		r.Get("/{depositID}", s.handleStatus)
		r.Post("/{depositID}/download", s.handleDownload)
	})

	return Chain(r,
		TraceID(),
		RequestLog(s.log),
		Recover(s.log),
		Timeout(15*time.Second),
	)
}

// requireSession authenticates the bearer token and stashes the session id
// in the request context.
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := s.sessions.ParseFromRequest(r)
		if err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		ctx := context.WithValue(r.Context(), sessionKey, claims.SessionID())
		ctx = logging.WithSessionID(ctx, claims.SessionID())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// planPrice resolves the charge for a plan, false when the plan is unknown
// or unpriced.
func (s *Server) planPrice(plan model.Plan) (int64, bool) {
	amount, ok := s.plans[string(plan)]
	if !ok || amount <= 0 {
		return 0, false
	}
	return amount, true
}

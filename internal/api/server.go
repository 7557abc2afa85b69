// Package api is the HTTP surface of the ledger. Every route is scoped to a
// tenant; mutations require an X-Actor header and posting additionally an
// Idempotency-Key header.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/cleared-dev/ledger/internal/accounts"
	"github.com/cleared-dev/ledger/internal/config"
	"github.com/cleared-dev/ledger/internal/importer"
	"github.com/cleared-dev/ledger/internal/journal"
	"github.com/cleared-dev/ledger/internal/periods"
	"github.com/cleared-dev/ledger/internal/reconcile"
	"github.com/cleared-dev/ledger/internal/rules"
)

// Services bundles the components the handlers call.
type Services struct {
	Config   *config.Config
	Accounts *accounts.Service
	Periods  *periods.Manager
	Journal  *journal.Service
	Rules    *rules.Service
	Matcher  *reconcile.Matcher
	Importer *importer.Service
}

// Server holds the handlers.
type Server struct {
	Services
	log logrus.FieldLogger
	now func() time.Time
}

// NewServer creates a Server over svc.
func NewServer(svc Services, log logrus.FieldLogger) *Server {
	return &Server{Services: svc, log: log, now: time.Now}
}

// SetClock replaces the clock used for default as-of dates.
func (s *Server) SetClock(now func() time.Time) {
	s.now = now
}

// Router builds the chi router.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	r.Route("/v1/tenants/{tenantID}", func(r chi.Router) {
		r.Route("/accounts", func(r chi.Router) {
			r.Get("/", s.listAccounts)
			r.Post("/", s.createAccount)
			r.Get("/{accountID}", s.getAccount)
			r.Get("/{accountID}/balance", s.accountBalance)
			r.Post("/{accountID}/deactivate", s.deactivateAccount)
		})

		r.Route("/periods", func(r chi.Router) {
			r.Get("/", s.listPeriods)
			r.Post("/", s.createPeriod)
			r.Get("/{periodID}/closure", s.checkClosure)
			r.Post("/{periodID}/close", s.closePeriod)
		})

		r.Route("/entries", func(r chi.Router) {
			r.Get("/", s.listEntries)
			r.Post("/", s.submitEntry)
			r.Get("/{entryID}", s.getEntry)
			r.Post("/{entryID}/void", s.voidEntry)
		})
		r.Post("/drafts", s.saveDraft)
		r.Delete("/drafts/{entryID}", s.discardDraft)
		r.Get("/trial-balance", s.trialBalance)

		r.Route("/bank-accounts/{bankAccountID}", func(r chi.Router) {
			r.Post("/transactions", s.importTransactions)
			r.Post("/reconcile", s.runReconciliation)
			r.Post("/sign-off", s.signOff)
			r.Get("/stats", s.stats)
		})

		r.Route("/matches", func(r chi.Router) {
			r.Get("/", s.listMatches)
			r.Post("/", s.manualMatch)
			r.Post("/{matchID}/review", s.reviewMatch)
		})

		r.Route("/rules", func(r chi.Router) {
			r.Get("/", s.listRules)
			r.Post("/", s.createRule)
			r.Post("/{ruleID}/active", s.setRuleActive)
		})
	})
	return r
}

// requestLogger logs one line per request through logrus.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.WithFields(logrus.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"bytes":      ww.BytesWritten(),
			"duration":   time.Since(start).String(),
			"request_id": middleware.GetReqID(r.Context()),
		}).Debug("request")
	})
}

package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/corefin/corefin/internal/accounts"
	"github.com/corefin/corefin/internal/journal"
	"github.com/corefin/corefin/internal/observability"
	"github.com/corefin/corefin/internal/periods"
	"github.com/corefin/corefin/internal/posting"
	"github.com/corefin/corefin/internal/stockledger"
	"github.com/corefin/corefin/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	Pool               *pgxpool.Pool
	PeriodsHandler     *periods.Handler
	AccountsHandler    *accounts.Handler
	StockLedgerHandler *stockledger.Handler
	JournalHandler     *journal.Handler
	PostingHandler     *posting.Handler
	JobHandler         *jobs.Handler
	Metrics            *observability.Metrics
}

// NewRouter constructs the chi.Router with application defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if params.Pool != nil {
			if err := params.Pool.Ping(r.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"status":"degraded"}`))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/api/v1", func(api chi.Router) {
		api.Route("/periods", params.PeriodsHandler.MountRoutes)
		api.Route("/accounts", params.AccountsHandler.MountRoutes)
		api.Route("/ledger", params.StockLedgerHandler.MountRoutes)
		api.Route("/journal", params.JournalHandler.MountRoutes)
		api.Route("/postings", params.PostingHandler.MountRoutes)
		if params.JobHandler != nil {
			api.Route("/jobs", params.JobHandler.MountRoutes)
		}
	})

	return r
}

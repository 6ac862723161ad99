package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/filmledger/filmledger/internal/process"
	"github.com/filmledger/filmledger/internal/product"
	"github.com/filmledger/filmledger/internal/sales"
	"github.com/filmledger/filmledger/internal/stock"
	"github.com/filmledger/filmledger/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	StockHandler   *stock.Handler
	ProcessHandler *process.Handler
	ProductHandler *product.Handler
	SalesHandler   *sales.Handler
	JobHandler     *jobs.Handler
}

// NewRouter constructs the chi.Router with filmledger defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger: params.Logger,
		Config: params.Config,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.StockHandler != nil {
		r.Route("/stock", params.StockHandler.MountRoutes)
	}
	if params.ProcessHandler != nil {
		r.Route("/processes", params.ProcessHandler.MountRoutes)
	}
	if params.ProductHandler != nil {
		r.Route("/products", params.ProductHandler.MountRoutes)
	}
	if params.SalesHandler != nil {
		r.Route("/sales", params.SalesHandler.MountRoutes)
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}

	return r
}

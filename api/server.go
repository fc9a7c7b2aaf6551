/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the dashboard

ROUTE GROUPS:
  /api/portfolio, /api/projects/*   Rollups and drill-downs
  /api/risks/*                      Risk detectors
  /api/change-orders                Change-order pipeline
  /api/query                        Ad hoc read-only SQL
  /api/export/*                     Workbook export
  /api/scenarios/*                  Demo datasets
  /                                 Endpoint index

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured. Empty origins
// fall back to the local dashboard ports.
func NewRouter(h *Handler, origins []string) *chi.Mux {
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173", "http://localhost:8080"}
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Get("/portfolio", h.GetPortfolio)

		// Project routes
		r.Route("/projects", func(r chi.Router) {
			r.Get("/", h.ListProjects)
			r.Get("/{id}", h.GetProject)
			r.Get("/{id}/line-items", h.GetLineItems)
		})

		// Risk routes
		r.Route("/risks", func(r chi.Router) {
			r.Get("/", h.ListRisks)
			r.Get("/scope-creep", h.GetScopeCreep)
			r.Get("/labor-overruns", h.GetLaborOverruns)
			r.Get("/billing-lag", h.GetBillingLag)
			r.Get("/change-orders", h.GetChangeOrderExposure)
			r.Get("/scan", h.GetLastScan)
		})

		r.Get("/change-orders", h.GetChangeOrders)
		r.Post("/query", h.RunQuery)
		r.Get("/export/portfolio.xlsx", h.ExportPortfolio)

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Post("/load", h.LoadScenario)
		})
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(indexPage))
	})

	return r
}

const indexPage = `<!DOCTYPE html>
<html>
<head><title>Margin Engine</title></head>
<body style="font-family: system-ui; max-width: 800px; margin: 50px auto; padding: 20px;">
<h1>Margin Engine API</h1>
<h2>API Endpoints</h2>
<ul>
<li><a href="/api/portfolio">/api/portfolio</a> - Portfolio summary</li>
<li><a href="/api/projects">/api/projects</a> - Project summaries</li>
<li><a href="/api/risks">/api/risks</a> - Ranked risk alerts</li>
<li><a href="/api/change-orders">/api/change-orders</a> - Change-order pipeline</li>
<li><a href="/api/scenarios">/api/scenarios</a> - Demo scenarios</li>
<li><a href="/api/export/portfolio.xlsx">/api/export/portfolio.xlsx</a> - Workbook export</li>
</ul>
</body>
</html>`

package web

import (
	"github.com/go-chi/chi/v5"

	"github.com/jromero/facetrack/internal/web/handlers"
)

func (s *Server) setupRoutes() {
	observationsHandler := handlers.NewObservationsHandler(s.tracker)
	identitiesHandler := handlers.NewIdentitiesHandler(s.tracker)
	summaryHandler := handlers.NewSummaryHandler(s.tracker)
	maintenanceHandler := handlers.NewMaintenanceHandler(s.tracker, s.config.Web.ExportDir)

	// Health check
	s.router.Get("/api/v1/health", handlers.HealthCheck)

	// API routes
	s.router.Route("/api/v1", func(r chi.Router) {
		r.Post("/observations", observationsHandler.Resolve)

		r.Get("/identities", identitiesHandler.List)
		r.Get("/identities/{id}", identitiesHandler.Get)

		r.Get("/summary", summaryHandler.Get)

		r.Post("/export", maintenanceHandler.Export)
		r.Post("/reset", maintenanceHandler.Reset)
	})
}

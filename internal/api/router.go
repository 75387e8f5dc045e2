package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// defaultWSPath prefixes the push channel routes when none is configured.
const defaultWSPath = "/ws"

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/status", s.handleStatus)

		r.Post("/auth/login", s.handleLogin)
		r.Post("/auth/register", s.handleRegister)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Post("/auth/ws-ticket", s.handleWSTicket)

			r.Post("/light/{id}", s.handleSetLight)
			r.Post("/door", s.handleSetDoor)
			r.Post("/clothesline", s.handleSetClothesline)
			r.Post("/clothesline/mode", s.handleSetClotheslineMode)
			r.Post("/sync-state", s.handleSyncState)

			r.Get("/latest-state/{channel}", s.handleLatestState)
			r.Get("/logs/{channel}", s.handleLogs)
			r.Get("/light-usage/hourly", s.handleLightUsageHourly)
		})
	})

	wsPath := s.wsCfg.Path
	if wsPath == "" || wsPath == "/" {
		wsPath = defaultWSPath
	}
	r.Get(wsPath+"/{channel}", s.handleChannelSocket)

	return r
}

package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Middleware chain
	chain := Chain(
		Recovery(h.logger),
		Logging(h.logger),
	)

	// Files
	mux.Handle("POST /api/v1/files/process", chain(http.HandlerFunc(h.ProcessFile)))
	mux.Handle("GET /api/v1/files/history", chain(http.HandlerFunc(h.FileHistory)))

	// Runs
	mux.Handle("GET /api/v1/runs/{id}/status", chain(http.HandlerFunc(h.RunStatus)))
	mux.Handle("GET /api/v1/runs/{id}/history", chain(http.HandlerFunc(h.RunHistory)))
	mux.Handle("POST /api/v1/runs/{id}/cancel", chain(http.HandlerFunc(h.CancelRun)))
	mux.Handle("POST /api/v1/runs/{id}/rerun", chain(http.HandlerFunc(h.RerunRun)))
}

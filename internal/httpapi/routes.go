package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/basketbox/backend/internal/registry"
	"github.com/basketbox/backend/internal/ws"
)

func SetupRoutes(h *registry.Hub, deps ws.Deps) http.Handler {
	r := chi.NewRouter()

	r.Get("/rooms", ListRooms(h))
	r.Get("/healthz", Healthz)
	r.Get("/ws", ws.Handler(deps))
	return r
}

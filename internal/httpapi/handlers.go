package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/basketbox/backend/internal/protocol"
	"github.com/basketbox/backend/internal/registry"
)

// ListRooms mirrors the websocket lobby list for plain HTTP clients.
func ListRooms(h *registry.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list := make([]protocol.RoomSummary, 0, 8)
		for s := range h.Summaries() {
			list = append(list, s)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(struct {
			Rooms []protocol.RoomSummary `json:"rooms"`
		}{Rooms: list})
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

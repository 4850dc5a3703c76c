package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/mcdev12/quizparty/go/internal/models"
	"github.com/mcdev12/quizparty/go/internal/snapshot"
	"github.com/rs/zerolog/log"
)

// WebSocketHandler serves the websocket endpoint and the read-only HTTP views.
type WebSocketHandler struct {
	connectionManager *ConnectionManager
	saves             snapshot.Store
	rooms             func() int
}

// NewWebSocketHandler serves cm; rooms reports the live room count.
func NewWebSocketHandler(cm *ConnectionManager, saves snapshot.Store, rooms func() int) *WebSocketHandler {
	return &WebSocketHandler{
		connectionManager: cm,
		saves:             saves,
		rooms:             rooms,
	}
}

// HandleConnection upgrades GET /ws. Every client, whatever its role, starts
// unbound and declares itself with its first event.
func (h *WebSocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	if err := h.connectionManager.UpgradeConnection(w, r); err != nil {
		log.Error().Err(err).Str("remote_addr", r.RemoteAddr).Msg("failed to upgrade websocket connection")
		return
	}
}

type statsResponse struct {
	Stats
	Rooms int `json:"rooms"`
}

// HandleStats handles GET /api/stats
func (h *WebSocketHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, statsResponse{Stats: h.connectionManager.Stats(), Rooms: h.rooms()})
}

// HandleListSaves handles GET /api/saves
func (h *WebSocketHandler) HandleListSaves(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	metas, err := h.saves.List(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("failed to list saves")
		http.Error(w, msgListFailed, http.StatusInternalServerError)
		return
	}
	if metas == nil {
		metas = []models.SnapshotMeta{}
	}
	writeJSON(w, metas)
}

// RegisterRoutes registers the websocket and JSON routes with an HTTP mux.
func (h *WebSocketHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", h.HandleConnection)
	mux.HandleFunc("/api/stats", h.HandleStats)
	mux.HandleFunc("/api/saves", h.HandleListSaves)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

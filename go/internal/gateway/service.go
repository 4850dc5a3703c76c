package gateway

import (
	"context"
	"net/http"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/quizparty/go/internal/events"
	"github.com/mcdev12/quizparty/go/internal/questions"
	"github.com/mcdev12/quizparty/go/internal/room"
	"github.com/mcdev12/quizparty/go/internal/session"
	"github.com/mcdev12/quizparty/go/internal/snapshot"
	"github.com/rs/zerolog/log"
)

// Dependencies are the collaborators the gateway wires into every room.
type Dependencies struct {
	Clock     clockwork.Clock
	Questions *questions.Set
	Saves     snapshot.Store
	Events    events.Publisher
}

// Service is the game server: websocket transport, router and room directory.
type Service struct {
	connectionManager *ConnectionManager
	wsHandler         *WebSocketHandler
}

// NewService wires a connection manager, session registry, room directory
// and router. A nil Clock means the real clock, nil Events logs only.
func NewService(config ConnectionConfig, deps Dependencies) *Service {
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	if deps.Events == nil {
		deps.Events = events.LogPublisher{}
	}

	cm := NewConnectionManager(config)
	sessions := session.NewRegistry(deps.Clock)
	rooms := room.NewDirectory(room.Deps{
		Clock:     deps.Clock,
		Questions: deps.Questions,
		Notifier:  cm,
		Sessions:  sessions,
		Snapshots: deps.Saves,
		Events:    deps.Events,
	})
	router := NewRouter(rooms, sessions, deps.Saves, cm, deps.Questions)
	cm.SetHandler(router)

	return &Service{
		connectionManager: cm,
		wsHandler:         NewWebSocketHandler(cm, deps.Saves, rooms.Len),
	}
}

// Start delivers outbound events until ctx is done.
func (s *Service) Start(ctx context.Context) {
	log.Info().Msg("starting game gateway")
	s.connectionManager.Start(ctx)
	log.Info().Msg("game gateway stopped")
}

// RegisterRoutes mounts /ws, /api/stats and /api/saves on mux.
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	s.wsHandler.RegisterRoutes(mux)
	log.Info().Msg("game gateway routes registered")
}

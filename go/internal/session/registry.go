package session

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// ErrSessionExpired is returned when a token does not resolve.
var ErrSessionExpired = errors.New("session expired")

// Session is the durable identity of a player. ConnID changes on every reconnect.
type Session struct {
	Token    string
	RoomCode string
	Name     string
	ConnID   string
	IssuedAt time.Time
}

// Registry maps session tokens to players. Safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	clock    clockwork.Clock
}

// NewRegistry returns an empty registry stamping sessions with clock.
func NewRegistry(clock clockwork.Clock) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		clock:    clock,
	}
}

// Issue creates a session bound to connID and returns its token.
func (r *Registry) Issue(roomCode, name, connID string) string {
	token := uuid.NewString()

	r.mu.Lock()
	r.sessions[token] = &Session{
		Token:    token,
		RoomCode: roomCode,
		Name:     name,
		ConnID:   connID,
		IssuedAt: r.clock.Now(),
	}
	r.mu.Unlock()

	log.Debug().
		Str("room_code", roomCode).
		Str("session", token).
		Str("connection_id", connID).
		Msg("session issued")
	return token
}

// Get resolves a token.
func (r *Registry) Get(token string) (Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[token]
	if !ok {
		return Session{}, ErrSessionExpired
	}
	return *s, nil
}

// Rebind points the session at a new connection.
func (r *Registry) Rebind(token, connID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[token]
	if !ok {
		return false
	}
	s.ConnID = connID
	return true
}

// ConnectionFor returns the connection currently bound to token.
func (r *Registry) ConnectionFor(token string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[token]
	if !ok || s.ConnID == "" {
		return "", false
	}
	return s.ConnID, true
}

// Revoke forgets token. Unknown tokens are ignored.
func (r *Registry) Revoke(token string) {
	r.mu.Lock()
	delete(r.sessions, token)
	r.mu.Unlock()
}

// RevokeRoom drops every session of a room and returns how many were removed.
func (r *Registry) RevokeRoom(roomCode string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for token, s := range r.sessions {
		if s.RoomCode == roomCode {
			delete(r.sessions, token)
			n++
		}
	}
	return n
}

// Len is the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

package room

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/mcdev12/quizparty/go/internal/events"
	"github.com/mcdev12/quizparty/go/internal/models"
	"github.com/rs/zerolog/log"
)

const (
	codeMin         = 100000
	codeSpan        = 900000
	maxCodeAttempts = 20
)

var ErrCodeSpaceExhausted = errors.New("could not allocate a unique room code")

// Directory maps room codes to rooms.
type Directory struct {
	mu      sync.RWMutex
	rooms   map[string]*Room
	deps    Deps
	newCode func() (string, error)
}

// NewDirectory returns an empty directory whose rooms share deps.
func NewDirectory(deps Deps) *Directory {
	return &Directory{
		rooms:   make(map[string]*Room),
		deps:    deps,
		newCode: generateCode,
	}
}

// generateCode returns a random six digit code.
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeSpan))
	if err != nil {
		return "", fmt.Errorf("generate room code: %w", err)
	}
	return fmt.Sprintf("%d", codeMin+n.Int64()), nil
}

// Create opens a fresh lobby hosted by hostConn.
func (d *Directory) Create(hostConn string) (*Room, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for i := 0; i < maxCodeAttempts; i++ {
		code, err := d.newCode()
		if err != nil {
			return nil, err
		}
		if _, taken := d.rooms[code]; taken {
			continue
		}

		r := newRoom(code, hostConn, d.deps)
		d.rooms[code] = r
		log.Info().Str("room_code", code).Msg("room created")

		r.publish(events.EventTypeRoomCreated, events.RoomCreatedPayload{
			TotalQuestions: d.deps.Questions.Len(),
			CreatedAt:      d.deps.Clock.Now(),
		})
		return r, nil
	}
	return nil, ErrCodeSpaceExhausted
}

// Get looks a room up by code.
func (d *Directory) Get(code string) (*Room, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	r, ok := d.rooms[code]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return r, nil
}

// Restore rebuilds a paused room from a snapshot, replacing any room already
// registered under the same code. Every saved player comes back disconnected.
func (d *Directory) Restore(snap models.Snapshot, hostConn string) *Room {
	r := newRoom(snap.RoomCode, hostConn, d.deps)

	idx := snap.CurrentQuestion - 1
	if last := d.deps.Questions.LastIndex(); idx > last {
		idx = last
	}
	if idx < -1 {
		idx = -1
	}
	r.index = idx

	for _, s := range snap.Scores {
		r.savedScores[s.Name] = s.Score
		r.players[restoredKeyPrefix+s.Name] = &Player{Name: s.Name, Score: s.Score}
	}

	d.mu.Lock()
	if old, ok := d.rooms[snap.RoomCode]; ok {
		old.Close()
	}
	d.rooms[snap.RoomCode] = r
	d.mu.Unlock()

	log.Info().
		Str("room_code", snap.RoomCode).
		Int("question_index", idx).
		Int("players", len(snap.Scores)).
		Msg("room restored")

	r.publish(events.EventTypeRoomRestored, events.RoomRestoredPayload{
		CurrentQuestion: snap.CurrentQuestion,
		PlayerCount:     len(snap.Scores),
		SavedAt:         snap.UpdatedAt,
		RestoredAt:      d.deps.Clock.Now(),
	})
	return r
}

// Len is the number of live rooms.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.rooms)
}

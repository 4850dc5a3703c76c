package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// EventType names a domain event.
type EventType string

const (
	EventTypeRoomCreated      EventType = "RoomCreated"
	EventTypeRoomRestored     EventType = "RoomRestored"
	EventTypeQuestionStarted  EventType = "QuestionStarted"
	EventTypeQuestionRevealed EventType = "QuestionRevealed"
	EventTypeGameFinished     EventType = "GameFinished"
)

// Event is a domain event emitted by a room.
type Event struct {
	ID        uuid.UUID
	RoomCode  string
	EventType EventType
	Payload   []byte
	CreatedAt time.Time
}

// Publisher delivers domain events to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// NewEvent marshals payload into an Event with a fresh id.
func NewEvent(roomCode string, t EventType, payload any, now time.Time) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s payload: %w", t, err)
	}
	return Event{
		ID:        uuid.New(),
		RoomCode:  roomCode,
		EventType: t,
		Payload:   data,
		CreatedAt: now,
	}, nil
}

// LogPublisher only logs events. Used when no broker is configured.
type LogPublisher struct{}

func (LogPublisher) Publish(_ context.Context, event Event) error {
	log.Debug().
		Str("room_code", event.RoomCode).
		Str("event_type", string(event.EventType)).
		Str("event_id", event.ID.String()).
		Msg("domain event")
	return nil
}

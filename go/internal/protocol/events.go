package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Message is an inbound frame sent by a host, display or player client.
type Message struct {
	Type EventType       `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Event is an outbound frame delivered to one connection or a whole room.
type Event struct {
	ID        string          `json:"id"`
	RoomCode  string          `json:"pin,omitempty"`
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// EventType names a wire event.
type EventType string

// Inbound.
const (
	HostCreate       EventType = "host:create"
	HostListSaves    EventType = "host:listSaves"
	HostLoadSave     EventType = "host:loadSave"
	HostReconnect    EventType = "host:reconnect"
	HostKick         EventType = "host:kick"
	HostStart        EventType = "host:start"
	HostNext         EventType = "host:next"
	HostNextQuestion EventType = "host:nextQuestion"

	DisplayJoin          EventType = "display:join"
	DisplayAudioEnded    EventType = "display:audioEnded"
	DisplayTriggerReveal EventType = "display:triggerReveal"

	PlayerJoin                    EventType = "player:join"
	PlayerReconnect               EventType = "player:reconnect"
	PlayerGetDisconnectedProfiles EventType = "player:getDisconnectedProfiles"
	PlayerAnswer                  EventType = "player:answer"

	Ping EventType = "ping"
)

// Outbound.
const (
	HostCreated        EventType = "host:created"
	HostSavesList      EventType = "host:savesList"
	HostReconnected    EventType = "host:reconnected"
	HostPlayersUpdate  EventType = "host:playersUpdate"
	HostAnswerCount    EventType = "host:answerCount"
	HostPlayerAnswered EventType = "host:playerAnswered"
	HostError          EventType = "host:error"

	DisplayJoined EventType = "display:joined"
	DisplayError  EventType = "display:error"

	PlayerJoined               EventType = "player:joined"
	PlayerReconnected          EventType = "player:reconnected"
	PlayerDisconnectedProfiles EventType = "player:disconnectedProfiles"
	PlayerAnswered             EventType = "player:answered"
	PlayerFeedback             EventType = "player:feedback"
	PlayerError                EventType = "player:error"

	GameQuestion    EventType = "game:question"
	GameAnswerCount EventType = "game:answerCount"
	GameReveal      EventType = "game:reveal"
	GameRanking     EventType = "game:ranking"
	GameFinal       EventType = "game:final"

	Pong EventType = "pong"
)

// NewEvent marshals payload into an outbound event.
func NewEvent(roomCode string, t EventType, payload any) (*Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", t, err)
	}
	return &Event{
		ID:        uuid.NewString(),
		RoomCode:  roomCode,
		Type:      t,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}, nil
}

// Decode unmarshals the message data into v. An empty body leaves v untouched.
func (m Message) Decode(v any) error {
	if len(m.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(m.Data, v); err != nil {
		return fmt.Errorf("decode %s: %w", m.Type, err)
	}
	return nil
}

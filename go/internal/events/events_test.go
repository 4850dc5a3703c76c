package events

import (
	"encoding/json"
	"testing"
	"time"
)

func TestNewEventAndEnvelope(t *testing.T) {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	ev, err := NewEvent("123456", EventTypeQuestionStarted, QuestionStartedPayload{
		QuestionIndex:  2,
		TotalQuestions: 5,
		TimeLimitSec:   30,
		StartedAt:      now,
	}, now)
	if err != nil {
		t.Fatalf("NewEvent() error = %v", err)
	}

	data, err := encodeEnvelope(ev)
	if err != nil {
		t.Fatalf("encodeEnvelope() error = %v", err)
	}

	var env struct {
		EventID   string                 `json:"eventId"`
		EventType string                 `json:"eventType"`
		RoomCode  string                 `json:"roomCode"`
		Payload   QuestionStartedPayload `json:"payload"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if env.EventID != ev.ID.String() {
		t.Errorf("eventId = %q, want %q", env.EventID, ev.ID)
	}
	if env.EventType != "QuestionStarted" || env.RoomCode != "123456" {
		t.Errorf("envelope = %+v", env)
	}
	if env.Payload.QuestionIndex != 2 {
		t.Errorf("payload.question_index = %d, want 2", env.Payload.QuestionIndex)
	}
}

func TestSubjectFor(t *testing.T) {
	tests := []struct {
		prefix string
		t      EventType
		want   string
	}{
		{"quiz.events", EventTypeGameFinished, "quiz.events.GameFinished"},
		{"x", EventTypeRoomRestored, "x.RoomRestored"},
	}
	for _, tt := range tests {
		if got := subjectFor(tt.prefix, tt.t); got != tt.want {
			t.Errorf("subjectFor(%q, %q) = %q, want %q", tt.prefix, tt.t, got, tt.want)
		}
	}
}

package events

import (
	"time"

	"github.com/mcdev12/quizparty/go/internal/models"
)

// Payload types published for every room lifecycle event.

// QuestionStartedPayload is the payload for a QuestionStarted event
type QuestionStartedPayload struct {
	QuestionIndex  int       `json:"question_index"`
	TotalQuestions int       `json:"total_questions"`
	PlayerCount    int       `json:"player_count"`
	TimeLimitSec   float64   `json:"time_limit_sec"`
	StartedAt      time.Time `json:"started_at"`
}

// QuestionRevealedPayload is the payload for a QuestionRevealed event
type QuestionRevealedPayload struct {
	QuestionIndex int       `json:"question_index"`
	CorrectIndex  int       `json:"correct_index"`
	AnswerCount   int       `json:"answer_count"`
	CorrectCount  int       `json:"correct_count"`
	PlayerCount   int       `json:"player_count"`
	RevealedAt    time.Time `json:"revealed_at"`
}

// GameFinishedPayload is the payload for a GameFinished event
type GameFinishedPayload struct {
	TotalQuestions int                 `json:"total_questions"`
	Ranking        []models.ScoreEntry `json:"ranking"`
	FinishedAt     time.Time           `json:"finished_at"`
}

// RoomCreatedPayload is the payload for a RoomCreated event
type RoomCreatedPayload struct {
	TotalQuestions int       `json:"total_questions"`
	CreatedAt      time.Time `json:"created_at"`
}

// RoomRestoredPayload is the payload for a RoomRestored event
type RoomRestoredPayload struct {
	CurrentQuestion int       `json:"current_question"`
	PlayerCount     int       `json:"player_count"`
	SavedAt         time.Time `json:"saved_at"`
	RestoredAt      time.Time `json:"restored_at"`
}

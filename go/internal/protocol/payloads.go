package protocol

import "github.com/mcdev12/quizparty/go/internal/models"

// Request payloads.

type PinRequest struct {
	Pin string `json:"pin"`
}

type KickRequest struct {
	Pin  string `json:"pin"`
	Name string `json:"name"`
}

type JoinRequest struct {
	Pin  string `json:"pin"`
	Name string `json:"name"`
}

type ReconnectRequest struct {
	SessionID string `json:"sessionId"`
}

type AnswerRequest struct {
	Pin    string `json:"pin"`
	Answer int    `json:"answer"`
}

// Response payloads.

// RankEntry is one leaderboard or roster row.
type RankEntry struct {
	Name      string `json:"name"`
	Score     int    `json:"score"`
	Connected bool   `json:"connected"`
}

type Profile struct {
	Name  string `json:"name"`
	Score int    `json:"score"`
}

type QuestionPayload struct {
	Index     int      `json:"index"`
	Total     int      `json:"total"`
	Question  string   `json:"question"`
	Options   []string `json:"options"`
	TimeLimit float64  `json:"timeLimit"`
}

type AnswerCountPayload struct {
	Count int `json:"count"`
	Total int `json:"total"`
}

type RevealPayload struct {
	Correct int `json:"correct"`
}

type FeedbackPayload struct {
	Correct bool `json:"correct"`
	Points  int  `json:"points"`
	TimeUp  bool `json:"timeUp,omitempty"`
}

type RankingPayload struct {
	Ranking []RankEntry `json:"ranking"`
}

type PlayersUpdatePayload struct {
	Players []RankEntry `json:"players"`
}

type PlayerAnsweredPayload struct {
	PlayerName string `json:"playerName"`
}

type HostCreatedPayload struct {
	Pin          string            `json:"pin"`
	AllQuestions []models.Question `json:"allQuestions"`
}

type HostReconnectedPayload struct {
	Pin             string               `json:"pin"`
	Players         []string             `json:"players"`
	CurrentQuestion int                  `json:"currentQuestion"`
	TotalQuestions  int                  `json:"totalQuestions"`
	AnswerCount     int                  `json:"answerCount"`
	Ranking         []RankEntry          `json:"ranking"`
	QuestionData    *models.QuestionData `json:"questionData"`
	AllQuestions    []models.Question    `json:"allQuestions"`
	IsRestored      bool                 `json:"isRestored"`
}

type DisplayJoinedPayload struct {
	Pin             string      `json:"pin"`
	Players         []string    `json:"players"`
	IsRestored      bool        `json:"isRestored"`
	Ranking         []RankEntry `json:"ranking"`
	CurrentQuestion int         `json:"currentQuestion"`
}

type PlayerJoinedPayload struct {
	Name      string `json:"name"`
	SessionID string `json:"sessionId"`
}

type PlayerReconnectedPayload struct {
	Name            string `json:"name"`
	Score           int    `json:"score"`
	GameStarted     bool   `json:"gameStarted"`
	CurrentQuestion int    `json:"currentQuestion"`
	HasAnswered     bool   `json:"hasAnswered"`
	IsRestored      bool   `json:"isRestored"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

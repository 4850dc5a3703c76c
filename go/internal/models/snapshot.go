package models

import (
	"sort"
	"time"
)

// ScoreEntry is one row of a saved scoreboard.
type ScoreEntry struct {
	Name  string `json:"name"`
	Score int    `json:"score"`
}

// Snapshot is the persisted scoreboard of a room, written at every reveal.
// CurrentQuestion counts completed questions (1-based).
type Snapshot struct {
	RoomCode        string       `json:"pin"`
	UpdatedAt       time.Time    `json:"updatedAt"`
	CurrentQuestion int          `json:"currentQuestion"`
	TotalQuestions  int          `json:"totalQuestions"`
	Scores          []ScoreEntry `json:"scores"`
}

// SnapshotMeta describes a saved game in listings.
type SnapshotMeta struct {
	File            string    `json:"file,omitempty"`
	RoomCode        string    `json:"pin"`
	UpdatedAt       time.Time `json:"updatedAt"`
	CurrentQuestion int       `json:"currentQuestion"`
	TotalQuestions  int       `json:"totalQuestions"`
	PlayerCount     int       `json:"playerCount"`
}

// Meta summarises the snapshot for listings.
func (s Snapshot) Meta() SnapshotMeta {
	return SnapshotMeta{
		RoomCode:        s.RoomCode,
		UpdatedAt:       s.UpdatedAt,
		CurrentQuestion: s.CurrentQuestion,
		TotalQuestions:  s.TotalQuestions,
		PlayerCount:     len(s.Scores),
	}
}

// SortScores orders entries by score descending, ties by name.
func SortScores(entries []ScoreEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].Name < entries[j].Name
	})
}

// SortMetas orders listings newest first.
func SortMetas(metas []SnapshotMeta) {
	sort.SliceStable(metas, func(i, j int) bool {
		return metas[i].UpdatedAt.After(metas[j].UpdatedAt)
	})
}

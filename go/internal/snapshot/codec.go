package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mcdev12/quizparty/go/internal/models"
)

var (
	// ErrNotFound is returned when no snapshot exists for a room code.
	ErrNotFound = errors.New("save file not found")
	// ErrInvalidCode rejects room codes that are not short numeric strings.
	ErrInvalidCode = errors.New("invalid room code")
)

// Store persists one snapshot per room code.
type Store interface {
	Save(ctx context.Context, snap models.Snapshot) error
	Load(ctx context.Context, roomCode string) (models.Snapshot, error)
	List(ctx context.Context) ([]models.SnapshotMeta, error)
}

// Encode renders a snapshot in the save file format.
func Encode(snap models.Snapshot) ([]byte, error) {
	if snap.Scores == nil {
		snap.Scores = []models.ScoreEntry{}
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return data, nil
}

// Decode parses a save file.
func Decode(data []byte) (models.Snapshot, error) {
	var snap models.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return models.Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	if err := ValidateCode(snap.RoomCode); err != nil {
		return models.Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	if snap.CurrentQuestion < 0 {
		return models.Snapshot{}, fmt.Errorf("decode snapshot: negative currentQuestion %d", snap.CurrentQuestion)
	}
	return snap, nil
}

// ValidateCode accepts 1 to 12 ASCII digits.
func ValidateCode(code string) error {
	if code == "" || len(code) > 12 {
		return ErrInvalidCode
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return ErrInvalidCode
		}
	}
	return nil
}

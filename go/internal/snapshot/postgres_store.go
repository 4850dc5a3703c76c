package snapshot

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mcdev12/quizparty/go/internal/models"
	"github.com/sqlc-dev/pqtype"
)

// Schema creates the snapshot table. Also used by the import tool.
const Schema = `
CREATE TABLE IF NOT EXISTS game_snapshots (
    pin              TEXT PRIMARY KEY,
    updated_at       TIMESTAMPTZ NOT NULL,
    current_question INTEGER NOT NULL,
    total_questions  INTEGER NOT NULL,
    scores           JSONB
)`

// PostgresStore keeps snapshots in the game_snapshots table.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore uses db as is; call EnsureSchema once at startup.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the game_snapshots table if missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("create game_snapshots: %w", err)
	}
	return nil
}

// Save upserts the snapshot row of its room code.
func (s *PostgresStore) Save(ctx context.Context, snap models.Snapshot) error {
	if err := ValidateCode(snap.RoomCode); err != nil {
		return err
	}
	scores, err := scoresToJSON(snap.Scores)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
        INSERT INTO game_snapshots (pin, updated_at, current_question, total_questions, scores)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (pin) DO UPDATE SET
          updated_at = EXCLUDED.updated_at,
          current_question = EXCLUDED.current_question,
          total_questions = EXCLUDED.total_questions,
          scores = EXCLUDED.scores
    `, snap.RoomCode, snap.UpdatedAt, snap.CurrentQuestion, snap.TotalQuestions, scores)
	if err != nil {
		return fmt.Errorf("upsert snapshot %s: %w", snap.RoomCode, err)
	}
	return nil
}

// Load returns ErrNotFound when no row exists for code.
func (s *PostgresStore) Load(ctx context.Context, code string) (models.Snapshot, error) {
	var (
		snap   models.Snapshot
		scores pqtype.NullRawMessage
	)
	err := s.db.QueryRowContext(ctx, `
        SELECT pin, updated_at, current_question, total_questions, scores
        FROM game_snapshots WHERE pin = $1
    `, code).Scan(&snap.RoomCode, &snap.UpdatedAt, &snap.CurrentQuestion, &snap.TotalQuestions, &scores)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Snapshot{}, ErrNotFound
	}
	if err != nil {
		return models.Snapshot{}, fmt.Errorf("load snapshot %s: %w", code, err)
	}

	snap.Scores, err = scoresFromJSON(scores)
	if err != nil {
		return models.Snapshot{}, err
	}
	return snap, nil
}

// List returns every snapshot's metadata, newest first.
func (s *PostgresStore) List(ctx context.Context) ([]models.SnapshotMeta, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT pin, updated_at, current_question, total_questions,
               COALESCE(jsonb_array_length(scores), 0)
        FROM game_snapshots
        ORDER BY updated_at DESC
    `)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var metas []models.SnapshotMeta
	for rows.Next() {
		var m models.SnapshotMeta
		if err := rows.Scan(&m.RoomCode, &m.UpdatedAt, &m.CurrentQuestion, &m.TotalQuestions, &m.PlayerCount); err != nil {
			return nil, fmt.Errorf("scan snapshot row: %w", err)
		}
		metas = append(metas, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}
	return metas, nil
}

func scoresToJSON(scores []models.ScoreEntry) (pqtype.NullRawMessage, error) {
	if scores == nil {
		scores = []models.ScoreEntry{}
	}
	data, err := json.Marshal(scores)
	if err != nil {
		return pqtype.NullRawMessage{}, fmt.Errorf("marshal scores: %w", err)
	}
	return pqtype.NullRawMessage{RawMessage: data, Valid: true}, nil
}

func scoresFromJSON(raw pqtype.NullRawMessage) ([]models.ScoreEntry, error) {
	if !raw.Valid || len(raw.RawMessage) == 0 {
		return []models.ScoreEntry{}, nil
	}
	var scores []models.ScoreEntry
	if err := json.Unmarshal(raw.RawMessage, &scores); err != nil {
		return nil, fmt.Errorf("unmarshal scores: %w", err)
	}
	return scores, nil
}

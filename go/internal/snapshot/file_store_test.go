package snapshot

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mcdev12/quizparty/go/internal/models"
)

func TestFileStoreSaveLoad(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileStore(filepath.Join(t.TempDir(), "saves"))
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}

	snap := models.Snapshot{
		RoomCode:        "654321",
		UpdatedAt:       time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
		CurrentQuestion: 3,
		TotalQuestions:  5,
		Scores:          []models.ScoreEntry{{Name: "Carl", Score: 900}},
	}
	if err := store.Save(ctx, snap); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	// second save overwrites the first
	snap.CurrentQuestion = 4
	if err := store.Save(ctx, snap); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := store.Load(ctx, "654321")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.CurrentQuestion != 4 || len(got.Scores) != 1 || got.Scores[0].Score != 900 {
		t.Fatalf("Load() = %+v", got)
	}

	if _, err := store.Load(ctx, "000000"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Load(missing) error = %v, want ErrNotFound", err)
	}
	if _, err := store.Load(ctx, "../../etc/passwd"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Load(traversal) error = %v, want ErrNotFound", err)
	}
}

func TestFileStoreListNewestFirst(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}

	base := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	saves := []models.Snapshot{
		{RoomCode: "100001", UpdatedAt: base, CurrentQuestion: 1, TotalQuestions: 5},
		{RoomCode: "100002", UpdatedAt: base.Add(2 * time.Hour), CurrentQuestion: 2, TotalQuestions: 5,
			Scores: []models.ScoreEntry{{Name: "a", Score: 1}, {Name: "b", Score: 0}}},
		{RoomCode: "100003", UpdatedAt: base.Add(time.Hour), CurrentQuestion: 5, TotalQuestions: 5},
	}
	for _, s := range saves {
		if err := store.Save(ctx, s); err != nil {
			t.Fatalf("Save(%s) error = %v", s.RoomCode, err)
		}
	}
	if err := os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{nope"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	metas, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(metas) != 3 {
		t.Fatalf("List() returned %d entries, want 3: %+v", len(metas), metas)
	}
	wantOrder := []string{"100002", "100003", "100001"}
	for i, code := range wantOrder {
		if metas[i].RoomCode != code {
			t.Errorf("metas[%d].RoomCode = %q, want %q", i, metas[i].RoomCode, code)
		}
	}
	if metas[0].PlayerCount != 2 || metas[0].File != "100002.json" {
		t.Errorf("metas[0] = %+v, want 2 players in 100002.json", metas[0])
	}
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/mcdev12/quizparty/go/internal/dbconfig"
	"github.com/mcdev12/quizparty/go/internal/models"
	"github.com/mcdev12/quizparty/go/internal/snapshot"
)

// loadedSave is one decoded save file.
type loadedSave struct {
	File     string
	Snapshot models.Snapshot
}

// collectSaves decodes every *.json file in dir, in file name order.
// Files that fail to decode are reported and left out.
func collectSaves(dir string) ([]loadedSave, []error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, []error{fmt.Errorf("read dir %s: %w", dir, err)}
	}

	var (
		saves []loadedSave
		errs  []error
	)
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			errs = append(errs, fmt.Errorf("read %s: %w", e.Name(), err))
			continue
		}
		snap, err := snapshot.Decode(data)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", e.Name(), err))
			continue
		}
		saves = append(saves, loadedSave{File: e.Name(), Snapshot: snap})
	}
	sort.Slice(saves, func(i, j int) bool { return saves[i].File < saves[j].File })
	return saves, errs
}

func main() {
	_ = godotenv.Load()

	dir := "saves"
	if len(os.Args) > 1 {
		dir = os.Args[1]
	} else if v := os.Getenv("SAVES_DIR"); v != "" {
		dir = v
	}

	// 1) Decode the save files
	saves, decodeErrs := collectSaves(dir)
	for _, err := range decodeErrs {
		fmt.Fprintf(os.Stderr, "skipping: %v\n", err)
	}

	// 2) Connect using shared dbconfig
	ctx := context.Background()
	cfg := dbconfig.NewConfigFromEnv()
	pool, err := pgxpool.New(ctx, cfg.PoolDSN())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	if _, err := pool.Exec(ctx, snapshot.Schema); err != nil {
		fmt.Fprintf(os.Stderr, "create table: %v\n", err)
		os.Exit(1)
	}

	// 3) Upsert and count; an older save never overwrites a newer row
	var (
		total    = len(saves)
		inserted int
		skipped  int
		errs     = len(decodeErrs)
	)

	for _, s := range saves {
		snap := s.Snapshot
		if snap.Scores == nil {
			snap.Scores = []models.ScoreEntry{}
		}
		scores, err := json.Marshal(snap.Scores)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error encoding scores of %s: %v\n", s.File, err)
			errs++
			continue
		}

		cmdTag, err := pool.Exec(ctx, `
            INSERT INTO game_snapshots (
              pin, updated_at, current_question, total_questions, scores
            ) VALUES (
              $1,$2,$3,$4,$5::jsonb
            )
            ON CONFLICT (pin) DO UPDATE SET
              updated_at = EXCLUDED.updated_at,
              current_question = EXCLUDED.current_question,
              total_questions = EXCLUDED.total_questions,
              scores = EXCLUDED.scores
            WHERE game_snapshots.updated_at < EXCLUDED.updated_at
        `,
			snap.RoomCode, snap.UpdatedAt, snap.CurrentQuestion, snap.TotalQuestions, string(scores),
		)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error importing save %s: %v\n", s.File, err)
			errs++
			continue
		}
		if cmdTag.RowsAffected() == 1 {
			inserted++
		} else {
			skipped++
		}
	}

	// 4) Print summary
	fmt.Printf(
		"Save import complete: %d total, %d imported, %d skipped, %d errors\n",
		total, inserted, skipped, errs,
	)
}

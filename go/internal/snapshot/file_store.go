package snapshot

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/mcdev12/quizparty/go/internal/models"
	"github.com/rs/zerolog/log"
)

// FileStore keeps snapshots as <dir>/<code>.json.
type FileStore struct {
	dir string
}

// NewFileStore creates dir if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create saves dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(code string) string {
	return filepath.Join(s.dir, code+".json")
}

// Save replaces <code>.json atomically through a temp file and rename.
func (s *FileStore) Save(_ context.Context, snap models.Snapshot) error {
	if err := ValidateCode(snap.RoomCode); err != nil {
		return err
	}
	data, err := Encode(snap)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, snap.RoomCode+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp save: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write save: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close save: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path(snap.RoomCode)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("rename save: %w", err)
	}
	return nil
}

// Load reads <code>.json; a missing file or malformed code is ErrNotFound.
func (s *FileStore) Load(_ context.Context, code string) (models.Snapshot, error) {
	if err := ValidateCode(code); err != nil {
		return models.Snapshot{}, ErrNotFound
	}
	data, err := os.ReadFile(s.path(code))
	if errors.Is(err, fs.ErrNotExist) {
		return models.Snapshot{}, ErrNotFound
	}
	if err != nil {
		return models.Snapshot{}, fmt.Errorf("read save %s: %w", code, err)
	}
	return Decode(data)
}

// List skips files that cannot be parsed.
func (s *FileStore) List(_ context.Context) ([]models.SnapshotMeta, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read saves dir: %w", err)
	}

	metas := make([]models.SnapshotMeta, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, e.Name()))
		if err != nil {
			log.Warn().Err(err).Str("file", e.Name()).Msg("skipping unreadable save")
			continue
		}
		snap, err := Decode(data)
		if err != nil {
			log.Warn().Err(err).Str("file", e.Name()).Msg("skipping malformed save")
			continue
		}
		meta := snap.Meta()
		meta.File = e.Name()
		metas = append(metas, meta)
	}
	models.SortMetas(metas)
	return metas, nil
}

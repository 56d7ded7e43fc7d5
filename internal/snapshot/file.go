package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/Chintiw/stonks/internal/model"
)

// Filename layout: portfolio_20060102_150405.json. The timestamp format
// sorts lexically, so the latest snapshot is the greatest filename.
const (
	filePrefix = "portfolio_"
	fileSuffix = ".json"
	fileStamp  = "20060102_150405"
)

// FileStore persists snapshots as JSON files in one directory, one file
// per snapshot.
type FileStore struct {
	dir string
}

// NewFileStore creates a file-backed store rooted at dir. The directory
// is created on first persist.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

func (s *FileStore) Persist(_ context.Context, snap *model.Snapshot) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("snapshot: create dir: %w", err)
	}

	name := filePrefix + snap.Timestamp.UTC().Format(fileStamp) + fileSuffix
	path := filepath.Join(s.dir, name)

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("snapshot: marshal: %w", err)
	}

	// O_EXCL enforces append-only: a second snapshot for the same
	// timestamp is a bug, not an update.
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return fmt.Errorf("%w: %s", ErrDuplicateSnapshot, name)
		}
		return fmt.Errorf("snapshot: write %s: %w", name, err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("snapshot: write %s: %w", name, err)
	}
	return nil
}

func (s *FileStore) LoadLatest(_ context.Context) (*model.Snapshot, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil // nothing persisted yet
		}
		return nil, fmt.Errorf("snapshot: read dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		stamp := strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), fileSuffix)
		if _, err := time.Parse(fileStamp, stamp); err != nil {
			continue // not a snapshot file
		}
		names = append(names, name)
	}
	if len(names) == 0 {
		return nil, nil
	}
	sort.Strings(names)
	latest := names[len(names)-1]

	data, err := os.ReadFile(filepath.Join(s.dir, latest))
	if err != nil {
		return nil, fmt.Errorf("snapshot: read %s: %w", latest, err)
	}

	var snap model.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("snapshot: unmarshal %s: %w", latest, err)
	}
	return &snap, nil
}

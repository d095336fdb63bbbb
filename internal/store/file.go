package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/couchcryptid/frcm-service/internal/domain"
)

// FileStore keeps one JSON document per fingerprint on the local filesystem:
//
//	<root>/<first two hex chars>/<fingerprint>.json
//
// Documents are written to a temporary file in the same directory and renamed
// into place, so readers never observe a partial entry.
type FileStore struct {
	root  string
	locks *keyLocks
}

// NewFileStore creates the root directory if needed and returns a store over it.
func NewFileStore(root string) (*FileStore, error) {
	if root == "" {
		return nil, errors.New("file store: empty root directory")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, unavailable("file store: create root", err)
	}
	return &FileStore{root: root, locks: newKeyLocks()}, nil
}

// Root returns the directory entries are stored under.
func (s *FileStore) Root() string { return s.root }

func (s *FileStore) path(fp domain.Fingerprint) string {
	hex := fp.String()
	return filepath.Join(s.root, hex[:2], hex+".json")
}

func (s *FileStore) Has(ctx context.Context, fp domain.Fingerprint) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	_, err := os.Stat(s.path(fp))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, unavailable("file store: stat", err)
	}
}

func (s *FileStore) Get(ctx context.Context, fp domain.Fingerprint) (*CacheEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.read(fp)
}

func (s *FileStore) read(fp domain.Fingerprint) (*CacheEntry, error) {
	data, err := os.ReadFile(s.path(fp))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, unavailable("file store: read", err)
	}

	var entry CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, &domain.IntegrityError{Fingerprint: fp, Reason: "undecodable entry: " + err.Error()}
	}
	if err := entry.verify(fp); err != nil {
		return nil, err
	}
	return &entry, nil
}

func (s *FileStore) Put(ctx context.Context, fp domain.Fingerprint, weather domain.WeatherSeries, risk domain.RiskSeries) error {
	entry, err := newEntry(fp, weather, risk)
	if err != nil {
		return err
	}

	unlock, err := s.locks.lock(ctx, fp)
	if err != nil {
		return err
	}
	defer unlock()

	existing, err := s.read(fp)
	switch {
	case err == nil:
		if existing.sameContent(risk) {
			return nil
		}
		return conflict(fp)
	case !errors.Is(err, ErrNotFound):
		return err
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("file store: encode entry: %w", err)
	}
	return s.writeAtomic(s.path(fp), data)
}

func (s *FileStore) writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return unavailable("file store: create shard dir", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return unavailable("file store: create temp file", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return unavailable("file store: write", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return unavailable("file store: sync", err)
	}
	if err := tmp.Close(); err != nil {
		return unavailable("file store: close", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return unavailable("file store: rename", err)
	}
	return nil
}

package session

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/leeforge/tenantkit/utils"
)

// FileStore keeps one file per session named <name>_<id> in dir.
type FileStore struct {
	dir  string
	name string
	now  func() time.Time
}

// NewFileStore creates dir if needed.
func NewFileStore(dir, name string) (*FileStore, error) {
	if err := utils.CreateDir(dir); err != nil {
		return nil, err
	}
	return &FileStore{dir: dir, name: name, now: time.Now}, nil
}

func (s *FileStore) Read(_ context.Context, id string) ([]byte, error) {
	if !ValidID(id) {
		return nil, nil
	}
	data, err := os.ReadFile(s.path(id))
	if os.IsNotExist(err) {
		return nil, nil
	}
	return data, err
}

func (s *FileStore) Write(_ context.Context, id string, data []byte) error {
	if !ValidID(id) {
		return errInvalidID(id)
	}
	tmp, err := os.CreateTemp(s.dir, ".sess-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), s.path(id))
}

func (s *FileStore) Destroy(_ context.Context, id string) error {
	if !ValidID(id) {
		return nil
	}
	err := os.Remove(s.path(id))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func (s *FileStore) GC(ctx context.Context, maxLifetime time.Duration) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, err
	}
	prefix := s.name + "_"
	cutoff := s.now().Add(-maxLifetime)
	removed := 0
	for _, e := range entries {
		if ctx.Err() != nil {
			return removed, ctx.Err()
		}
		if e.IsDir() || !strings.HasPrefix(e.Name(), prefix) {
			continue
		}
		info, err := e.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, e.Name())); err == nil {
			removed++
		}
	}
	return removed, nil
}

func (s *FileStore) path(id string) string {
	return filepath.Join(s.dir, s.name+"_"+id)
}

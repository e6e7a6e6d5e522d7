package cache

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/leeforge/tenantkit/utils"
)

// FileCache stores each blob as one file in a directory. Validity is judged
// by the file's modification time.
type FileCache struct {
	dir      string
	lifetime time.Duration
	now      func() time.Time
}

// NewFileCache creates a file cache rooted at dir.
func NewFileCache(dir string, lifetime time.Duration) *FileCache {
	return &FileCache{dir: dir, lifetime: lifetime, now: time.Now}
}

// Dir returns the directory the cache writes to.
func (c *FileCache) Dir() string {
	return c.dir
}

func (c *FileCache) Get(_ context.Context, key string) (Entry, bool, error) {
	path := c.path(key)
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	if expired(info.ModTime(), c.lifetime, c.now()) {
		return Entry{}, false, nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	return Entry{Data: data, ModTime: info.ModTime()}, true, nil
}

// Set writes the blob through a temp file and rename so readers never see a
// partial entry.
func (c *FileCache) Set(_ context.Context, key string, data []byte) error {
	if err := utils.CreateDir(c.dir); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(c.dir, ".cache_*")
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
	return os.Rename(tmp.Name(), c.path(key))
}

func (c *FileCache) Delete(_ context.Context, key string) error {
	err := os.Remove(c.path(key))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

var keyReplacer = strings.NewReplacer("/", "_", "\\", "_", "..", "_", string(filepath.Separator), "_")

func (c *FileCache) path(key string) string {
	return filepath.Join(c.dir, "cache_"+keyReplacer.Replace(key))
}

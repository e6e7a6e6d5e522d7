package classloader

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/leeforge/tenantkit/utils"
)

// SearchPath is the ordered, de-duplicated list of directories used both for
// symbol source lookup and for configuration document lookup.
type SearchPath struct {
	mu   sync.RWMutex
	dirs []string
}

// NewSearchPath creates a search path seeded with dirs.
func NewSearchPath(dirs ...string) *SearchPath {
	sp := &SearchPath{}
	sp.Append(dirs...)
	return sp
}

// Append adds dirs to the end of the path, skipping empty and known entries.
func (sp *SearchPath) Append(dirs ...string) {
	sp.mu.Lock()
	defer sp.mu.Unlock()

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		dir = filepath.Clean(dir)
		if !sp.containsLocked(dir) {
			sp.dirs = append(sp.dirs, dir)
		}
	}
}

// Dirs returns a copy of the current directories in priority order.
func (sp *SearchPath) Dirs() []string {
	sp.mu.RLock()
	defer sp.mu.RUnlock()
	return append([]string(nil), sp.dirs...)
}

// Contains reports whether dir is on the path.
func (sp *SearchPath) Contains(dir string) bool {
	sp.mu.RLock()
	defer sp.mu.RUnlock()
	return sp.containsLocked(filepath.Clean(dir))
}

// Find returns the first existing regular file dir/rel.
func (sp *SearchPath) Find(rel string) (string, bool) {
	for _, dir := range sp.Dirs() {
		candidate := filepath.Join(dir, rel)
		if utils.FileExists(candidate) {
			return candidate, true
		}
	}
	return "", false
}

// Relative returns the forms of abs relative to every directory on the path
// that contains it, in priority order.
func (sp *SearchPath) Relative(abs string) []string {
	var out []string
	for _, dir := range sp.Dirs() {
		rel, err := filepath.Rel(dir, abs)
		if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
			continue
		}
		out = append(out, filepath.ToSlash(rel))
	}
	return out
}

func (sp *SearchPath) String() string {
	return strings.Join(sp.Dirs(), string(os.PathListSeparator))
}

func (sp *SearchPath) containsLocked(dir string) bool {
	for _, d := range sp.dirs {
		if d == dir {
			return true
		}
	}
	return false
}

package template

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/valyala/fasttemplate"
)

// Fasttemplate substitutes {{name}} tags with assigned values. Outside debug
// mode rendered output is kept in the cache dir until the template changes.
type Fasttemplate struct {
	vars
	dirs Dirs
}

// NewFasttemplate creates the fasttemplate family adaptor.
func NewFasttemplate(dirs Dirs, _ string) (Adaptor, error) {
	if err := ensureDirs(dirs.Cache, dirs.Compile); err != nil {
		return nil, err
	}
	return &Fasttemplate{dirs: dirs}, nil
}

func (f *Fasttemplate) Fetch(name string) (string, error) {
	src, info, err := readTemplate(f.dirs.Templates, name)
	if err != nil {
		return "", err
	}
	values, debug := f.snapshot()

	cached := f.cachePath(name, values)
	if !debug && cached != "" {
		if ci, err := os.Stat(cached); err == nil && !ci.ModTime().Before(info.ModTime()) {
			if data, err := os.ReadFile(cached); err == nil {
				return string(data), nil
			}
		}
	}

	tpl, err := fasttemplate.NewTemplate(src, "{{", "}}")
	if err != nil {
		return "", fmt.Errorf("template %s: %w", name, err)
	}
	out := tpl.ExecuteFuncString(func(w io.Writer, tag string) (int, error) {
		v, ok := values[trimTag(tag)]
		if !ok {
			return 0, nil
		}
		return fmt.Fprint(w, v)
	})

	if !debug && cached != "" {
		_ = os.WriteFile(cached, []byte(out), 0o644)
	}
	return out, nil
}

func (f *Fasttemplate) Display(w io.Writer, name string) error {
	return display(f, w, name)
}

func (f *Fasttemplate) cachePath(name string, values map[string]any) string {
	if f.dirs.Cache == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(name + "\x00" + fingerprint(values)))
	return filepath.Join(f.dirs.Cache, hex.EncodeToString(sum[:16])+".html")
}

func trimTag(tag string) string {
	start, end := 0, len(tag)
	for start < end && tag[start] == ' ' {
		start++
	}
	for end > start && tag[end-1] == ' ' {
		end--
	}
	return tag[start:end]
}

package template

import (
	"bytes"
	"io"
	"path/filepath"
	texttemplate "text/template"

	"github.com/Masterminds/sprig/v3"
)

// Sprig renders text templates with the sprig function set. Every *.tmpl
// file in the config dir is parsed as a shared partial.
type Sprig struct {
	vars
	dirs Dirs
}

// NewSprig creates the sprig family adaptor.
func NewSprig(dirs Dirs, _ string) (Adaptor, error) {
	if err := ensureDirs(dirs.Cache, dirs.Compile); err != nil {
		return nil, err
	}
	return &Sprig{dirs: dirs}, nil
}

func (s *Sprig) Fetch(name string) (string, error) {
	src, _, err := readTemplate(s.dirs.Templates, name)
	if err != nil {
		return "", err
	}

	tpl := texttemplate.New(filepath.Base(name)).Funcs(sprig.TxtFuncMap())
	if s.dirs.Config != "" {
		partials, err := filepath.Glob(filepath.Join(s.dirs.Config, "*.tmpl"))
		if err != nil {
			return "", err
		}
		if len(partials) > 0 {
			if tpl, err = tpl.ParseFiles(partials...); err != nil {
				return "", err
			}
		}
	}
	if tpl, err = tpl.Parse(src); err != nil {
		return "", err
	}

	values, _ := s.snapshot()
	var buf bytes.Buffer
	if err := tpl.ExecuteTemplate(&buf, filepath.Base(name), values); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (s *Sprig) Display(w io.Writer, name string) error {
	return display(s, w, name)
}

package template

import (
	"bytes"
	"errors"
	htmltemplate "html/template"
	"io"
	"path/filepath"

	"github.com/Masterminds/sprig/v3"
)

// Native renders a single html template file with the sprig function set.
// A Native adaptor is bound to the unit it was built for.
type Native struct {
	vars
	dirs Dirs
	unit string
}

// NewNative creates an adaptor for the template file unit.
func NewNative(dirs Dirs, unit string) (Adaptor, error) {
	if unit == "" {
		return nil, errors.New("native template adaptor needs a unit")
	}
	return &Native{dirs: dirs, unit: unit}, nil
}

// Unit returns the template file the adaptor is bound to.
func (n *Native) Unit() string {
	return n.unit
}

func (n *Native) Fetch(name string) (string, error) {
	if name == "" {
		name = n.unit
	}
	src, _, err := readTemplate(n.dirs.Templates, name)
	if err != nil {
		return "", err
	}
	tpl, err := htmltemplate.New(filepath.Base(name)).Funcs(sprig.FuncMap()).Parse(src)
	if err != nil {
		return "", err
	}

	values, _ := n.snapshot()
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, values); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (n *Native) Display(w io.Writer, name string) error {
	return display(n, w, name)
}

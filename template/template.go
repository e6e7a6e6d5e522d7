// Package template holds the template adaptors a tenant renders pages with.
package template

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/leeforge/tenantkit/classloader"
	"github.com/leeforge/tenantkit/utils"
)

// Template kinds a tenant document may select.
const (
	KindNative       = "native"
	KindFasttemplate = "fasttemplate"
	KindSprig        = "sprig"
)

// Unit symbols.
const (
	UnitNative = "Tenantkit_Adaptor_Native"
)

// Families maps third-party kinds onto their symbol namespace.
var Families = map[string]string{
	KindFasttemplate: "Fasttemplate",
	KindSprig:        "Sprig",
}

// FamilyUnit returns the adaptor symbol of a template family.
func FamilyUnit(family string) string {
	return family + "_Adaptor"
}

// FamilySource returns the fixed source file of a template family.
func FamilySource(family string) string {
	return family + classloader.SourceExt
}

// Dirs are the four directory roles of a template setup.
type Dirs struct {
	Templates string `json:"templates"`
	Cache     string `json:"cache"`
	Config    string `json:"config,omitempty"`
	Compile   string `json:"compile,omitempty"`
}

// Adaptor renders named templates with assigned values.
type Adaptor interface {
	Assign(key string, value any)
	// Fetch renders name. Adaptors bound to one unit render it when name is empty.
	Fetch(name string) (string, error)
	Display(w io.Writer, name string) error
	SetDebug(debug bool)
}

// Constructor builds an adaptor. Family adaptors ignore unit.
type Constructor func(dirs Dirs, unit string) (Adaptor, error)

// Register defines the native unit and one unit per family.
func Register(catalog *classloader.Catalog) {
	classloader.DefineConvention(catalog, UnitNative, Constructor(NewNative))
	classloader.Define(catalog, FamilySource(Families[KindFasttemplate]), FamilyUnit(Families[KindFasttemplate]), Constructor(NewFasttemplate))
	classloader.Define(catalog, FamilySource(Families[KindSprig]), FamilyUnit(Families[KindSprig]), Constructor(NewSprig))
}

// vars is the assigned value set shared by every adaptor.
type vars struct {
	mu     sync.RWMutex
	values map[string]any
	debug  bool
}

func (v *vars) Assign(key string, value any) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.values == nil {
		v.values = make(map[string]any)
	}
	v.values[key] = value
}

func (v *vars) SetDebug(debug bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.debug = debug
}

func (v *vars) snapshot() (map[string]any, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make(map[string]any, len(v.values))
	for k, val := range v.values {
		out[k] = val
	}
	return out, v.debug
}

// fingerprint renders values deterministically for cache keys.
func fingerprint(values map[string]any) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var out string
	for _, k := range keys {
		out += fmt.Sprintf("%s=%v;", k, values[k])
	}
	return out
}

func display(a Adaptor, w io.Writer, name string) error {
	out, err := a.Fetch(name)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, out)
	return err
}

func ensureDirs(dirs ...string) error {
	for _, d := range dirs {
		if d == "" {
			continue
		}
		if err := utils.CreateDir(d); err != nil {
			return err
		}
	}
	return nil
}

func readTemplate(dir, name string) (string, os.FileInfo, error) {
	path := filepath.Join(dir, name)
	info, err := os.Stat(path)
	if err != nil {
		return "", nil, fmt.Errorf("template %s: %w", name, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", nil, fmt.Errorf("template %s: %w", name, err)
	}
	return string(data), info, nil
}

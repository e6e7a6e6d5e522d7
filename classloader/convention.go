package classloader

import (
	"path"
	"strings"
)

// SourceExt is the extension appended to file names derived from symbols.
const SourceExt = ".go"

// Convention maps symbol to the unit it must define and the relative source
// path that defines it.
//
//	a.b.Name    -> unit Name,        path a/b/Name.go
//	ns_sub_Name -> unit ns_sub_Name, path ns/sub/Name.go
//	Single      -> unit Single,      path Single.go
//
// Dots take precedence over underscores.
func Convention(symbol string) (unit, source string) {
	mustSymbol(symbol)

	switch {
	case strings.Contains(symbol, "."):
		parts := strings.Split(symbol, ".")
		name := parts[len(parts)-1]
		return name, sourcePath(parts[:len(parts)-1], name)
	case strings.Contains(symbol, "_"):
		parts := strings.Split(symbol, "_")
		return symbol, sourcePath(parts[:len(parts)-1], parts[len(parts)-1])
	default:
		return symbol, symbol + SourceExt
	}
}

// UnitName returns the unit a successful resolution of symbol defines.
func UnitName(symbol string) string {
	unit, _ := Convention(symbol)
	return unit
}

// NamespacePath maps an underscore separated symbol to a slash separated
// source path, e.g. Tenantkit_DO_PDO -> Tenantkit/DO/PDO.go.
func NamespacePath(symbol string) string {
	return strings.ReplaceAll(symbol, "_", "/") + SourceExt
}

// Namespace returns the leading underscore segment of symbol.
func Namespace(symbol string) string {
	ns, _, _ := strings.Cut(symbol, "_")
	return ns
}

func sourcePath(dirs []string, file string) string {
	return path.Join(append(dirs, file+SourceExt)...)
}

func mustSymbol(symbol string) {
	if symbol == "" {
		panic("classloader: empty symbol")
	}
}

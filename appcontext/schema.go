package appcontext

import (
	_ "embed"
	"os"
	"path/filepath"
)

// Schema is the JSON Schema context documents are validated against.
//
//go:embed schema/context.schema.json
var Schema []byte

// WriteSchema installs Schema at root/conf/context.schema.json.
func WriteSchema(root string) (string, error) {
	path := filepath.Join(root, filepath.FromSlash(SchemaFile))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	return path, os.WriteFile(path, Schema, 0o644)
}

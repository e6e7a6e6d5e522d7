package utils

import (
	"os"
	"path/filepath"
	"strings"
)

func Exists(path string) (isDir bool, exists bool, err error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false, false, nil
	}
	if err != nil {
		return false, false, err
	}
	return info.IsDir(), true, nil
}

// FileExists reports whether path names an existing regular file.
func FileExists(path string) bool {
	isDir, exists, err := Exists(path)
	return err == nil && exists && !isDir
}

func CreateDir(path string) error {
	return os.MkdirAll(path, os.ModePerm)
}

// WithTrailingSlash returns dir terminated by exactly one path separator.
func WithTrailingSlash(dir string) string {
	if dir == "" {
		return dir
	}
	return strings.TrimRight(dir, "/"+string(filepath.Separator)) + string(filepath.Separator)
}

// SplitList splits a colon separated search path, dropping empty entries.
func SplitList(list string) []string {
	var out []string
	for _, p := range filepath.SplitList(list) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

package handlers

import (
	"errors"
	"os"
)

// ensureDir guarantees the directory exists. Errors when the path exists but
// is a regular file.
func ensureDir(path string) error {
	if path == "" {
		return errors.New("empty dir path")
	}
	info, err := os.Stat(path)
	if err == nil {
		if !info.IsDir() {
			return errors.New("path exists and is not a directory")
		}
		return nil
	}
	if !os.IsNotExist(err) {
		return err
	}
	return os.MkdirAll(path, 0o755)
}

package gateways

import (
	"errors"
	"io/fs"
	"os"
)

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

// fileExists reports whether path exists without following a final symlink
func fileExists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

// isDirectory checks if a path is a directory
func isDirectory(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}

// Package storage provides the durable append sink the hub persists to.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
)

// Store is a path-addressed write API. Implementations must make a write
// either fully succeed or return an error; the hub treats any error as a
// permanent storage fault.
type Store interface {
	// Write stores data under path, appending when appendMode is true and
	// truncating otherwise. The file is created if missing.
	Write(path string, data []byte, appendMode bool) error
}

// FileStore writes files below a root directory.
type FileStore struct {
	root string
}

func NewFileStore(root string) (*FileStore, error) {
	if root != "" {
		if err := os.MkdirAll(root, 0o755); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}
	return &FileStore{root: root}, nil
}

func (s *FileStore) Write(path string, data []byte, appendMode bool) error {
	if path == "" {
		return fmt.Errorf("empty path")
	}
	full := path
	if s.root != "" {
		full = filepath.Join(s.root, path)
	}
	flags := os.O_CREATE | os.O_WRONLY
	if appendMode {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(full, flags, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", full, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", full, err)
	}
	return f.Close()
}

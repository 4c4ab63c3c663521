package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/dmitrijs2005/texbridge/internal/filex"
)

// LocalStore keeps blobs as files in a single directory.
type LocalStore struct {
	dir string
}

// NewLocalStore creates dir if needed.
func NewLocalStore(dir string) (*LocalStore, error) {
	abs, err := filex.EnsureDir(dir)
	if err != nil {
		return nil, err
	}
	return &LocalStore{dir: abs}, nil
}

// Dir returns the absolute directory backing the store.
func (s *LocalStore) Dir() string { return s.dir }

func (s *LocalStore) Put(ctx context.Context, name, _ string, r io.Reader) (int64, error) {
	if !ValidName(name) {
		return 0, ErrInvalidName
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return filex.WriteFileAtomic(filepath.Join(s.dir, name), r)
}

func (s *LocalStore) Delete(_ context.Context, name string) error {
	if !ValidName(name) {
		return ErrInvalidName
	}
	err := os.Remove(filepath.Join(s.dir, name))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", name, err)
	}
	return nil
}

// List includes leftover temporary files from interrupted writes so the
// orphan sweeper can collect them.
func (s *LocalStore) List(ctx context.Context) ([]Object, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	out := make([]Object, 0, len(entries))
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !e.Type().IsRegular() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			// removed concurrently
			continue
		}
		out = append(out, Object{Name: e.Name(), ModTime: info.ModTime()})
	}
	return out, nil
}

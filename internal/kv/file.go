package kv

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
)

const (
	fileSuffix     = ".json"
	tempFilePrefix = "codenotes-tmp-"
	filePerm       = 0o600
	dirPerm        = 0o700
)

// FileStore keeps one file per key inside a directory. Writes replace the file atomically.
type FileStore struct {
	dir string
}

// NewFileStore creates the directory if needed and returns a FileStore rooted at it.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("kv: file store directory is required")
	}
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return nil, fmt.Errorf("kv: create directory %s: %w", dir, err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) pathFor(key string) string {
	return filepath.Join(s.dir, url.PathEscape(key)+fileSuffix)
}

func (s *FileStore) Get(ctx context.Context, key string) (string, bool, error) {
	if err := validateKey(key); err != nil {
		return "", false, err
	}
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	data, err := os.ReadFile(s.pathFor(key))
	if errors.Is(err, os.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return string(data), true, nil
}

func (s *FileStore) Set(ctx context.Context, key, value string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return replaceFile(s.pathFor(key), []byte(value), filePerm)
}

// replaceFile stages value next to the key's file and renames it over the old one.
func replaceFile(target string, value []byte, perm os.FileMode) (err error) {
	staged, err := os.CreateTemp(filepath.Dir(target), tempFilePrefix+"*")
	if err != nil {
		return fmt.Errorf("kv: stage %s: %w", filepath.Base(target), err)
	}
	stagedName := staged.Name()
	defer func() {
		if err != nil {
			staged.Close()
			os.Remove(stagedName)
		}
	}()

	if _, err = staged.Write(value); err != nil {
		return fmt.Errorf("kv: write %s: %w", filepath.Base(target), err)
	}
	if err = staged.Sync(); err != nil {
		return fmt.Errorf("kv: sync %s: %w", filepath.Base(target), err)
	}
	if err = staged.Chmod(perm); err != nil {
		return fmt.Errorf("kv: chmod %s: %w", filepath.Base(target), err)
	}
	if err = staged.Close(); err != nil {
		return fmt.Errorf("kv: close %s: %w", filepath.Base(target), err)
	}
	if err = os.Rename(stagedName, target); err != nil {
		return fmt.Errorf("kv: replace %s: %w", filepath.Base(target), err)
	}
	return nil
}

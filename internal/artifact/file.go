package artifact

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// tempSuffix marks in-flight writes; List skips such files.
const tempSuffix = ".tmp"

// FileStore stores artifacts as files under a root directory.
// Writes go to a temporary file first and are renamed into place, so a
// reader never observes a partial artifact.
type FileStore struct {
	// root is the artifact directory path.
	root string
}

// NewFileStore creates a file store rooted at dir.
// The directory will be created if it doesn't exist.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, errors.New("artifact directory cannot be empty")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create artifact directory: %w", err)
	}
	return &FileStore{root: dir}, nil
}

// Root returns the artifact directory path.
func (s *FileStore) Root() string {
	return s.root
}

// Put writes data under key, replacing any previous artifact.
func (s *FileStore) Put(_ context.Context, key string, data []byte) error {
	filePath, err := s.keyToFilePath(key)
	if err != nil {
		return err
	}
	if mkErr := os.MkdirAll(filepath.Dir(filePath), 0o750); mkErr != nil {
		return fmt.Errorf("failed to create artifact directory: %w", mkErr)
	}

	tmp, err := os.CreateTemp(filepath.Dir(filePath), filepath.Base(filePath)+".*"+tempSuffix)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tempPath := tmp.Name()

	if _, writeErr := tmp.Write(data); writeErr != nil {
		_ = tmp.Close()
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to write artifact %s: %w", key, writeErr)
	}
	if closeErr := tmp.Close(); closeErr != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to write artifact %s: %w", key, closeErr)
	}

	if renameErr := os.Rename(tempPath, filePath); renameErr != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to rename artifact file: %w", renameErr)
	}
	return nil
}

// Get reads the artifact stored under key.
// Returns ErrNotFound if it doesn't exist.
func (s *FileStore) Get(_ context.Context, key string) ([]byte, error) {
	filePath, err := s.keyToFilePath(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("failed to read artifact %s: %w", key, err)
	}
	return data, nil
}

// Exists reports whether a regular file is stored under key.
func (s *FileStore) Exists(_ context.Context, key string) (bool, error) {
	filePath, err := s.keyToFilePath(key)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat artifact %s: %w", key, err)
	}
	return info.Mode().IsRegular(), nil
}

// List walks the directory below prefix. An empty prefix lists everything.
func (s *FileStore) List(ctx context.Context, prefix string) ([]string, error) {
	start := s.root
	if prefix = strings.Trim(prefix, "/"); prefix != "" {
		p, err := s.keyToFilePath(prefix)
		if err != nil {
			return nil, err
		}
		start = p
	}

	var keys []string
	err := filepath.WalkDir(start, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if errors.Is(walkErr, fs.ErrNotExist) {
				return fs.SkipAll
			}
			return walkErr
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() || strings.HasSuffix(d.Name(), tempSuffix) {
			return nil
		}
		rel, relErr := filepath.Rel(s.root, p)
		if relErr != nil {
			return relErr
		}
		keys = append(keys, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list artifacts under %q: %w", prefix, err)
	}

	sort.Strings(keys)
	return keys, nil
}

// Close is a no-op for the file store.
func (s *FileStore) Close() error { return nil }

// keyToFilePath converts a validated key to a path below root.
// Colons are replaced so keys stay portable to Windows file systems.
func (s *FileStore) keyToFilePath(key string) (string, error) {
	if err := ValidateKey(key); err != nil {
		return "", err
	}
	safeKey := strings.ReplaceAll(key, ":", "_")
	return filepath.Join(s.root, filepath.FromSlash(safeKey)), nil
}

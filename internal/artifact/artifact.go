package artifact

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"
)

// ManifestName is the file name of the per-record manifest.
const ManifestName = "manifest.json"

// Common artifact errors.
var (
	ErrNotFound   = errors.New("artifact not found")
	ErrInvalidKey = errors.New("invalid artifact key")
)

// Store persists artifacts by key. Implementations are safe for concurrent use.
type Store interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Exists(ctx context.Context, key string) (bool, error)
	// List returns the keys under prefix in lexical order.
	List(ctx context.Context, prefix string) ([]string, error)
	Close() error
}

// Key joins a group, an id and a file name into an artifact key.
func Key(group string, id int64, name string) string {
	return path.Join(group, strconv.FormatInt(id, 10), name)
}

// ManifestKey returns the manifest key for one record.
func ManifestKey(group string, id int64) string {
	return Key(group, id, ManifestName)
}

// ValidateKey rejects keys that are empty, absolute, or escape their root.
func ValidateKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("%w: key cannot be empty", ErrInvalidKey)
	}
	if strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	for _, seg := range strings.Split(key, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return fmt.Errorf("%w: %q", ErrInvalidKey, key)
		}
	}
	return nil
}

// ManifestFile describes one stored artifact.
type ManifestFile struct {
	Name  string `json:"name"`
	Key   string `json:"key"`
	Bytes int64  `json:"bytes"`
}

// Manifest records what the backend produced for one record.
type Manifest struct {
	ID        int64          `json:"id"`
	Group     string         `json:"group"`
	RunID     string         `json:"run_id"`
	Files     []ManifestFile `json:"files"`
	Bytes     int64          `json:"bytes"`
	CreatedAt time.Time      `json:"created_at"`
}

// WriteManifest stores m under its manifest key.
func WriteManifest(ctx context.Context, s Store, m Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling manifest: %w", err)
	}
	return s.Put(ctx, ManifestKey(m.Group, m.ID), data)
}

// ReadManifest loads the manifest for one record.
func ReadManifest(ctx context.Context, s Store, group string, id int64) (*Manifest, error) {
	data, err := s.Get(ctx, ManifestKey(group, id))
	if err != nil {
		return nil, err
	}
	var m Manifest
	if unmarshalErr := json.Unmarshal(data, &m); unmarshalErr != nil {
		return nil, fmt.Errorf("decoding manifest for %s/%d: %w", group, id, unmarshalErr)
	}
	return &m, nil
}

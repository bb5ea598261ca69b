package questions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/dailypoll/backend/internal/models"
)

// Snapshot persists the local question pool.
type Snapshot interface {
	Load(ctx context.Context) ([]models.Question, error)
	Save(ctx context.Context, pool []models.Question) error
}

// FileSnapshot keeps the pool as an indented JSON array on disk.
type FileSnapshot struct {
	Path string
}

// Load reads the snapshot file.
func (f FileSnapshot) Load(_ context.Context) ([]models.Question, error) {
	raw, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, err
	}
	return decode(raw)
}

// Save rewrites the snapshot file via a temp file + rename so readers never see a partial file.
func (f FileSnapshot) Save(_ context.Context, pool []models.Question) error {
	raw, err := encode(pool)
	if err != nil {
		return err
	}
	dir := filepath.Dir(f.Path)
	tmp, err := os.CreateTemp(dir, ".questions-*.json")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), f.Path)
}

// ObjectStore is the subset of object storage used for snapshots.
type ObjectStore interface {
	GetObject(ctx context.Context, key string) ([]byte, error)
	PutObject(ctx context.Context, key, contentType string, body []byte) error
}

// S3Snapshot keeps the pool as a JSON object in a bucket, for hosts without durable disks.
type S3Snapshot struct {
	Store ObjectStore
	Key   string
}

// Load fetches and decodes the snapshot object.
func (s S3Snapshot) Load(ctx context.Context) ([]models.Question, error) {
	raw, err := s.Store.GetObject(ctx, s.Key)
	if err != nil {
		return nil, err
	}
	return decode(raw)
}

// Save uploads the encoded pool.
func (s S3Snapshot) Save(ctx context.Context, pool []models.Question) error {
	raw, err := encode(pool)
	if err != nil {
		return err
	}
	return s.Store.PutObject(ctx, s.Key, "application/json", raw)
}

func decode(raw []byte) ([]models.Question, error) {
	var pool []models.Question
	if err := json.Unmarshal(raw, &pool); err != nil {
		return nil, fmt.Errorf("parse question snapshot: %w", err)
	}
	return normalize(pool), nil
}

func encode(pool []models.Question) ([]byte, error) {
	if pool == nil {
		pool = []models.Question{}
	}
	return json.MarshalIndent(pool, "", "  ")
}

// IsNotExist reports whether err means the snapshot has never been written.
func IsNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

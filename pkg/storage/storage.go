// Package storage persists payment proof files behind a backend-neutral interface.
package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/angelmondragon/carrental-backend/pkg/config"
	"github.com/angelmondragon/carrental-backend/pkg/logger"
	"github.com/angelmondragon/carrental-backend/pkg/storage/gcs"
)

// ErrObjectNotFound is returned by Get when the key has no object.
var ErrObjectNotFound = errors.New("storage object not found")

// ObjectStore saves and retrieves opaque blobs by key.
type ObjectStore interface {
	Put(ctx context.Context, key, contentType string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
}

// New builds the configured backend.
func New(ctx context.Context, cfg *config.Config, logg *logger.Logger) (ObjectStore, error) {
	if cfg.Storage.IsGCS() {
		client, err := gcs.NewClient(ctx, cfg.GCS, cfg.GCP, logg)
		if err != nil {
			return nil, err
		}
		return &gcsStore{client: client}, nil
	}
	store, err := NewLocal(cfg.Storage.LocalDir)
	if err != nil {
		return nil, err
	}
	if logg != nil {
		logg.Info(logg.WithField(ctx, "dir", cfg.Storage.LocalDir), "local proof storage ready")
	}
	return store, nil
}

// ProofKey builds the object key for a proof file of a rental.
func ProofKey(rentalID, sha256Hex, extension string) string {
	ext := strings.TrimPrefix(strings.ToLower(extension), ".")
	if ext == "" {
		ext = "bin"
	}
	return path.Join("proofs", rentalID, fmt.Sprintf("%s.%s", sha256Hex, ext))
}

type gcsStore struct {
	client *gcs.Client
}

func (s *gcsStore) Put(ctx context.Context, key, contentType string, data []byte) error {
	return s.client.UploadObject(ctx, "", key, contentType, data)
}

func (s *gcsStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.DownloadObject(ctx, "", key)
	if errors.Is(err, gcs.ErrNotFound) {
		return nil, ErrObjectNotFound
	}
	return data, err
}

func (s *gcsStore) Delete(ctx context.Context, key string) error {
	return s.client.DeleteObject(ctx, "", key)
}

func (s *gcsStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx)
}

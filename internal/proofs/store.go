package proofs

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/carrental-backend/pkg/errors"
	"github.com/angelmondragon/carrental-backend/pkg/storage"
)

// Store writes proofs under content-addressed keys per rental.
type Store struct {
	objects storage.ObjectStore
}

// NewStore wraps an object store.
func NewStore(objects storage.ObjectStore) (*Store, error) {
	if objects == nil {
		return nil, fmt.Errorf("object store required")
	}
	return &Store{objects: objects}, nil
}

// Save persists file and returns its key. Saving identical content twice
// yields the same key.
func (s *Store) Save(ctx context.Context, rentalID uuid.UUID, file File) (string, error) {
	key := storage.ProofKey(rentalID.String(), file.SHA256, file.Extension)
	if err := s.objects.Put(ctx, key, file.ContentType, file.Content); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store payment proof")
	}
	return key, nil
}

// Open loads a stored proof.
func (s *Store) Open(ctx context.Context, key string) ([]byte, error) {
	data, err := s.objects.Get(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment proof not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment proof")
	}
	return data, nil
}

// Delete removes a stored proof; a missing object is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.objects.Delete(ctx, key); err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
		return err
	}
	return nil
}

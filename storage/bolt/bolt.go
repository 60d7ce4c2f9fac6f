package bolt

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/titpetric/hilink-cli/model"
	"github.com/titpetric/hilink-cli/storage"
)

var _ storage.Store = (*Store)(nil)

var bucketAuth = []byte("auth")

// Store is a BoltDB-backed storage.Store.
type Store struct {
	db *bolt.DB
}

// New opens or creates the database at path.
func New(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketAuth)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveAuth stores or replaces the snapshot for auth.Host.
func (s *Store) SaveAuth(ctx context.Context, auth model.Auth) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if auth.Host == "" {
		return errors.New("auth snapshot has no host")
	}
	payload, err := json.Marshal(auth)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketAuth).Put([]byte(auth.Host), payload)
	})
}

// LoadAuth returns the snapshot for host or storage.ErrNotFound.
func (s *Store) LoadAuth(ctx context.Context, host string) (model.Auth, error) {
	if err := ctx.Err(); err != nil {
		return model.Auth{}, err
	}
	var auth model.Auth
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketAuth).Get([]byte(host))
		if v == nil {
			return storage.ErrNotFound
		}
		return json.Unmarshal(v, &auth)
	})
	if err != nil {
		return model.Auth{}, err
	}
	return auth, nil
}

// DeleteAuth removes the snapshot for host. Deleting a missing key is not
// an error.
func (s *Store) DeleteAuth(ctx context.Context, host string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketAuth).Delete([]byte(host))
	})
}

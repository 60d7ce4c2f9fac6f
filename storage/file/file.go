package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/titpetric/hilink-cli/model"
	"github.com/titpetric/hilink-cli/storage"
)

var _ storage.Store = (*Store)(nil)

// Store keeps one JSON file per host under a data directory.
type Store struct {
	dataDir string
}

// New creates dataDir if needed.
func New(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, err
	}
	return &Store{dataDir: dataDir}, nil
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}

func hostKey(host string) string {
	r := strings.NewReplacer("://", "_", ":", "_", "/", "_", ".", "_")
	return r.Replace(strings.TrimSuffix(host, "/"))
}

func (s *Store) authFilePath(host string) string {
	return filepath.Join(s.dataDir, fmt.Sprintf("auth_%s.json", hostKey(host)))
}

// SaveAuth writes the snapshot for auth.Host.
func (s *Store) SaveAuth(ctx context.Context, auth model.Auth) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if auth.Host == "" {
		return errors.New("auth snapshot has no host")
	}
	data, err := json.MarshalIndent(auth, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.authFilePath(auth.Host), data, 0o600)
}

// LoadAuth reads the snapshot for host or returns storage.ErrNotFound.
func (s *Store) LoadAuth(ctx context.Context, host string) (model.Auth, error) {
	if err := ctx.Err(); err != nil {
		return model.Auth{}, err
	}
	data, err := os.ReadFile(s.authFilePath(host))
	if err != nil {
		if os.IsNotExist(err) {
			return model.Auth{}, storage.ErrNotFound
		}
		return model.Auth{}, err
	}

	var auth model.Auth
	if err := json.Unmarshal(data, &auth); err != nil {
		return model.Auth{}, fmt.Errorf("decode %s: %w", s.authFilePath(host), err)
	}
	return auth, nil
}

// DeleteAuth removes the snapshot for host, if any.
func (s *Store) DeleteAuth(ctx context.Context, host string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Remove(s.authFilePath(host)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

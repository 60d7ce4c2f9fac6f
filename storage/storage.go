package storage

import (
	"context"
	"errors"

	"github.com/titpetric/hilink-cli/model"
)

// ErrNotFound indicates no snapshot is stored for the host.
var ErrNotFound = errors.New("not found")

// Store persists auth snapshots keyed by device host.
type Store interface {
	SaveAuth(ctx context.Context, auth model.Auth) error
	LoadAuth(ctx context.Context, host string) (model.Auth, error)
	DeleteAuth(ctx context.Context, host string) error
	Close() error
}

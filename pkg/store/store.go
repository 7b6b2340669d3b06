// Package store persists home screen configurations. Every operation is
// scoped to the caller identity that the auth gate verified: a record is
// only visible to, and mutable by, the user who created it.
package store

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"

	"ConfigService/pkg/homescreen"
)

// ErrNotFound is returned for records that do not exist or belong to
// someone else; callers cannot tell the two apart.
var ErrNotFound = errors.New("configuration not found or access denied")

type Store interface {
	// List returns the user's configurations, most recently updated first.
	List(ctx context.Context, userID string) ([]homescreen.Configuration, error)
	Get(ctx context.Context, id, userID string) (homescreen.Configuration, error)
	Create(ctx context.Context, userID string, data homescreen.Config) (homescreen.Configuration, error)
	Update(ctx context.Context, id, userID string, data homescreen.Config) (homescreen.Configuration, error)
	Delete(ctx context.Context, id, userID string) error
	Close() error
}

type clock func() time.Time

func (c clock) now() homescreen.Timestamp {
	if c == nil {
		return homescreen.Timestamp{Time: time.Now().UTC().Truncate(time.Millisecond)}
	}
	return homescreen.Timestamp{Time: c().UTC().Truncate(time.Millisecond)}
}

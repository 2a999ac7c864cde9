// Package store persists room snapshots. A snapshot is the pretty JSON
// encoding of a room's graph, stored under the room's name.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned by Load when a room has never been saved.
var ErrNotFound = errors.New("store: snapshot not found")

// Store loads and saves room snapshots. Save must replace a snapshot
// atomically: a concurrent or interrupted Save never leaves a torn document.
type Store interface {
	Load(ctx context.Context, room string) ([]byte, error)
	Save(ctx context.Context, room string, data []byte) error
	Close() error
}

// Open selects a store from uri:
//
//	""                    file store rooted at snapshotPath
//	redis://host:port/db  Redis store
//	sqlite:<path>         SQLite store
func Open(uri, snapshotPath string) (Store, error) {
	switch {
	case uri == "":
		return NewFileStore(snapshotPath), nil
	case strings.HasPrefix(uri, "redis://"), strings.HasPrefix(uri, "rediss://"):
		return OpenRedis(uri)
	case strings.HasPrefix(uri, "sqlite:"):
		return OpenSQLite(strings.TrimPrefix(uri, "sqlite:"))
	}
	return nil, fmt.Errorf("store: unsupported uri %q", uri)
}

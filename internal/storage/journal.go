// Package storage keeps a journal of completed exchanges, in memory or in
// PostgreSQL.
package storage

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/RegistryAccord/discovery-go/internal/model"
)

// Standard errors returned by the storage layer
var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

// Journal records exchanges and lists them back, newest first.
type Journal interface {
	Record(ctx context.Context, exchange model.Exchange) error
	Get(ctx context.Context, id string) (*model.Exchange, error)
	List(ctx context.Context, query model.ListExchangesQuery) (*model.ListExchangesResult, error)
	Backend() string
	Close()
}

// Open returns a PostgreSQL journal when dsn is set, else an in-memory one.
func Open(ctx context.Context, dsn string) (Journal, error) {
	if dsn == "" {
		return NewMemory(), nil
	}
	return NewPostgres(ctx, dsn)
}

const (
	defaultLimit = 25
	maxLimit     = 100
)

func pageSize(limit int) int {
	if limit <= 0 {
		return defaultLimit
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}

// Cursors carry the ID of the last exchange of a page. IDs are ULIDs, so
// they sort by completion order.
func encodeCursor(id string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(id))
}

func decodeCursor(cursor string) (string, error) {
	b, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return "", fmt.Errorf("invalid cursor: %w", err)
	}
	return string(b), nil
}

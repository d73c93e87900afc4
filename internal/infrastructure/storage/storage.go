// Package storage provides the local persistence infrastructure: the
// relational backend of the offline queue and the small key-value store that
// keeps device identity and sync bookkeeping.
package storage

import (
	"context"
	"errors"
	"strings"

	"revi/agent-core/internal/pkg/agenterror"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// Database defines the contract for offline-queue persistence.
type Database interface {
	// WithContext returns a shallow copy of the database connection assigned
	// to the provided context so timeouts and cancellations are respected.
	WithContext(ctx context.Context) *gorm.DB

	// GetDB returns the direct GORM database instance.
	GetDB() *gorm.DB

	// Close gracefully shuts down the database connection pool.
	Close() error
}

// MapDBError converts raw database errors into structured AgentErrors.
// Anything that looks like a lost backend becomes StorageDegraded so the
// offline store can fall back to in-memory buffering.
func MapDBError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return agenterror.New(agenterror.CodeStorageDegraded, "local store operation timed out", agenterror.KindStorage, err)
	}

	if pgErr := mapPgError(err); pgErr != nil {
		return pgErr
	}

	msg := err.Error()
	if strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "can't assign requested address") ||
		strings.Contains(msg, "connection reset by peer") ||
		strings.Contains(msg, "broken pipe") {
		return agenterror.New(agenterror.CodeStorageDegraded, "local store connection failed", agenterror.KindStorage, err)
	}

	return agenterror.NewInternal(agenterror.CodeInternalError, "unexpected local store error", err)
}

// mapPgError handles Postgres specific errors using pgconn driver codes.
func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return nil
	}

	switch pgErr.Code {
	// Connection exceptions and shutdown states: backend is unusable.
	case "08000", "08003", "08006", "57P01", "57P02", "57P03":
		return agenterror.New(agenterror.CodeStorageDegraded, "local store connection failed", agenterror.KindStorage, err)
	// Lock and serialization failures: retryable at the caller's leisure.
	case "40001", "40P01", "55P03":
		return agenterror.NewTransport(agenterror.CodeTransport, "local store contention", err)
	default:
		return agenterror.NewInternal(agenterror.CodeInternalError, "local store error "+pgErr.Code, err)
	}
}

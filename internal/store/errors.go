package store

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/rukoai/ruko-admin/internal/postgres"
)

// Error taxonomy surfaced to callers. The boundary layer maps these to
// transport status codes; raw database diagnostics never leave this package.
var (
	// ErrNotFound indicates a detail lookup matched zero rows. This is a
	// legitimate empty result, not a database fault.
	ErrNotFound = errors.New("not found")

	// ErrUnavailable indicates the database could not be reached or timed
	// out. Transient; callers may retry or degrade gracefully.
	ErrUnavailable = errors.New("database unavailable")

	// ErrQueryFailed indicates a query-execution fault. Not retryable
	// without a code change.
	ErrQueryFailed = errors.New("database query failed")
)

// classify maps a low-level database failure to the coarse taxonomy above.
// The underlying diagnostic detail is logged here and only the sentinel
// crosses the package boundary.
func (s *Store) classify(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound):
		// Already classified; NotFound is expected and not logged as an error.
		return ErrNotFound
	case errors.Is(err, pgx.ErrNoRows):
		return ErrNotFound
	case errors.Is(err, postgres.ErrNotInitialized):
		s.logger.Warn("database unavailable", "op", op, "error", err)
		return ErrUnavailable
	case isUnavailable(err):
		s.logger.Warn("database unavailable", "op", op, "error", err)
		return ErrUnavailable
	default:
		s.logger.Error("database query failed", "op", op, "error", err)
		return ErrQueryFailed
	}
}

// isUnavailable reports whether err is a connectivity-level fault rather
// than a query fault.
func isUnavailable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// Class 08: connection exceptions. 53300: too many connections.
		// 57P01..57P03: server shutdown or crash.
		code := pgErr.Code
		return strings.HasPrefix(code, "08") ||
			code == "53300" ||
			strings.HasPrefix(code, "57P")
	}

	return false
}

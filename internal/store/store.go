// Package store is the read-only data layer of the admin service.
//
// It answers filtered, paginated, and aggregated queries about users,
// conversations, and messages. Every operation follows the same shape:
// lease a connection from the pool, compile the caller's optional filters
// into a predicate once, run the data query and the count query against
// that same predicate, and return the page. Nothing in this package
// mutates data.
//
// Failures are classified into the coarse taxonomy in errors.go before
// they leave the package; see classify.
package store

import (
	"context"
	"slices"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rukoai/ruko-admin/internal/log"
	"github.com/rukoai/ruko-admin/internal/postgres"
)

// Per-entity pagination bounds. Limits are clamped, not rejected, so the
// returned envelope always echoes the effective limit.
const (
	DefaultUserLimit = 50
	MaxUserLimit     = 200

	DefaultConversationLimit = 50
	MaxConversationLimit     = 200

	// DefaultUserConversationsLimit is the default page size for the
	// conversations embedded in a user detail lookup.
	DefaultUserConversationsLimit = 25

	DefaultMessageLimit = 100
	MaxMessageLimit     = 500
)

// Store executes analytics queries over the admin database.
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	db     *postgres.Client
	logger log.Logger
}

// New creates a Store on top of a connection pool client.
func New(db *postgres.Client, logger log.Logger) *Store {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Store{db: db, logger: logger}
}

// Page is one bounded slice of a filtered result set plus the full
// matching count. Total comes from a COUNT query sharing the compiled
// predicate, never from len(Items).
type Page[T any] struct {
	Items  []T   `json:"items"`
	Total  int64 `json:"total"`
	Limit  int   `json:"limit"`
	Offset int   `json:"offset"`
}

// pageQuery describes one paginated list operation. selectSQL and countSQL
// are the statement prefixes up to (not including) WHERE; tail carries
// GROUP BY / ORDER BY for the select statement only.
type pageQuery[T any] struct {
	selectSQL string
	countSQL  string
	where     *whereClause
	tail      string
	limit     int
	offset    int
	scan      func(rows pgx.Rows) (T, error)
}

// listPage runs the data query and the count query of q on a single leased
// connection and assembles the page envelope.
func listPage[T any](ctx context.Context, s *Store, op string, q pageQuery[T]) (*Page[T], error) {
	var page *Page[T]

	err := s.db.WithConn(ctx, func(conn *pgxpool.Conn) error {
		args := q.where.Args()

		sql := q.selectSQL + " WHERE " + q.where.SQL() + " " + q.tail +
			" LIMIT " + placeholder(len(args)+1) + " OFFSET " + placeholder(len(args)+2)
		listArgs := append(slices.Clone(args), q.limit, q.offset)

		rows, err := conn.Query(ctx, sql, listArgs...)
		if err != nil {
			return err
		}
		items, err := collectRows(rows, q.scan)
		if err != nil {
			return err
		}

		var total int64
		countSQL := q.countSQL + " WHERE " + q.where.SQL()
		if err := conn.QueryRow(ctx, countSQL, args...).Scan(&total); err != nil {
			return err
		}

		page = &Page[T]{Items: items, Total: total, Limit: q.limit, Offset: q.offset}
		return nil
	})
	if err != nil {
		return nil, s.classify(op, err)
	}

	return page, nil
}

// collectRows drains rows through scan, always closing the row set.
func collectRows[T any](rows pgx.Rows, scan func(pgx.Rows) (T, error)) ([]T, error) {
	defer rows.Close()

	items := make([]T, 0)
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// clampLimit bounds a requested page size to [1, max]; zero or negative
// requests fall back to the entity default.
func clampLimit(limit, def, max int) int {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}

// clampOffset bounds a requested offset to be non-negative.
func clampOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}

// DBHealth is a connectivity probe result with quick table totals.
type DBHealth struct {
	ServerTime       time.Time `json:"server_time"`
	Users            int64     `json:"users"`
	Conversations    int64     `json:"conversations"`
	Messages         int64     `json:"messages"`
	MessagesLastHour int64     `json:"messages_last_hour"`
	Errors           int64     `json:"errors"`
}

// DBHealth checks database connectivity and returns headline totals.
func (s *Store) DBHealth(ctx context.Context) (*DBHealth, error) {
	var health DBHealth

	err := s.db.WithConn(ctx, func(conn *pgxpool.Conn) error {
		if err := conn.QueryRow(ctx, "SELECT NOW()").Scan(&health.ServerTime); err != nil {
			return err
		}

		return conn.QueryRow(ctx, `
			SELECT
				(SELECT COUNT(*) FROM users),
				(SELECT COUNT(*) FROM conversations),
				(SELECT COUNT(*) FROM messages),
				(SELECT COUNT(*) FROM messages WHERE timestamp > NOW() - INTERVAL '1 hour'),
				(SELECT COUNT(*) FROM messages WHERE error IS NOT NULL)
		`).Scan(
			&health.Users,
			&health.Conversations,
			&health.Messages,
			&health.MessagesLastHour,
			&health.Errors,
		)
	})
	if err != nil {
		return nil, s.classify("db_health", err)
	}

	return &health, nil
}

// Ping verifies database connectivity without running queries.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.Ping(ctx); err != nil {
		return s.classify("ping", err)
	}
	return nil
}

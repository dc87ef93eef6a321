package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// User is one identity as written by the telemetry producer. ExternalID is
// the unique subject identifier assigned by the upstream identity provider.
type User struct {
	ID          int64     `json:"id"`
	ExternalID  string    `json:"external_id"`
	DisplayName *string   `json:"display_name"`
	Email       *string   `json:"email"`
	FirstSeen   time.Time `json:"first_seen"`
	LastActive  time.Time `json:"last_active"`
}

// UserRow is a user with activity aggregates for list and detail views.
// Aggregates are zero (not absent) for users without related rows.
type UserRow struct {
	User
	ConversationCount int64 `json:"conversation_count"`
	MessageCount      int64 `json:"message_count"`
	ErrorCount        int64 `json:"error_count"`
}

// UserDetail is a user plus one page of their conversations.
type UserDetail struct {
	User          UserRow                `json:"user"`
	Conversations *Page[ConversationRow] `json:"conversations"`
}

const userSelectSQL = `
	SELECT
		u.id,
		u.external_id,
		u.display_name,
		u.email,
		u.first_seen,
		u.last_active,
		COUNT(DISTINCT c.id) AS conversation_count,
		COUNT(m.id) AS message_count,
		COUNT(m.id) FILTER (WHERE m.error IS NOT NULL) AS error_count
	FROM users u
	LEFT JOIN conversations c ON u.id = c.user_id
	LEFT JOIN messages m ON c.id = m.conversation_id`

// The count query skips the joins and the grouping: user filters predicate
// on columns of users alone, and COUNT(*) over grouped rows would be wrong.
const userCountSQL = `SELECT COUNT(*) FROM users u`

func scanUserRow(rows pgx.Rows) (UserRow, error) {
	var u UserRow
	err := rows.Scan(
		&u.ID,
		&u.ExternalID,
		&u.DisplayName,
		&u.Email,
		&u.FirstSeen,
		&u.LastActive,
		&u.ConversationCount,
		&u.MessageCount,
		&u.ErrorCount,
	)
	return u, err
}

// ListUsers returns one page of users matching the filter, most recently
// active first.
func (s *Store) ListUsers(ctx context.Context, filter UserFilter, limit, offset int) (*Page[UserRow], error) {
	return listPage(ctx, s, "list_users", pageQuery[UserRow]{
		selectSQL: userSelectSQL,
		countSQL:  userCountSQL,
		where:     filter.compile(),
		tail:      "GROUP BY u.id ORDER BY u.last_active DESC",
		limit:     clampLimit(limit, DefaultUserLimit, MaxUserLimit),
		offset:    clampOffset(offset),
		scan:      scanUserRow,
	})
}

// GetUser returns one user with aggregates plus a page of their
// conversations. Returns ErrNotFound when the id does not exist; a user
// with no related rows comes back with zero-valued aggregates and an empty
// conversation page.
func (s *Store) GetUser(ctx context.Context, id int64, convLimit, convOffset int) (*UserDetail, error) {
	var user UserRow

	err := s.db.WithConn(ctx, func(conn *pgxpool.Conn) error {
		return conn.QueryRow(ctx, userSelectSQL+`
			WHERE u.id = $1
			GROUP BY u.id
		`, id).Scan(
			&user.ID,
			&user.ExternalID,
			&user.DisplayName,
			&user.Email,
			&user.FirstSeen,
			&user.LastActive,
			&user.ConversationCount,
			&user.MessageCount,
			&user.ErrorCount,
		)
	})
	if err != nil {
		return nil, s.classify("get_user", err)
	}

	if convLimit <= 0 {
		convLimit = DefaultUserConversationsLimit
	}
	conversations, err := s.ListConversations(ctx,
		ConversationFilter{UserID: &id}, convLimit, convOffset)
	if err != nil {
		return nil, err
	}

	return &UserDetail{User: user, Conversations: conversations}, nil
}

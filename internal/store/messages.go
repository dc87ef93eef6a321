package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
)

// Message is one chat message as written by the telemetry producer.
// Error being non-nil marks the message as failed. ResponseTimeMS is only
// meaningful for assistant messages.
type Message struct {
	ID              int64      `json:"id"`
	ConversationID  *int64     `json:"conversation_id"`
	Role            string     `json:"role"`
	Content         string     `json:"content"`
	Timestamp       time.Time  `json:"timestamp"`
	ResponseTimeMS  *int32     `json:"response_time_ms"`
	ToolsUsed       []string   `json:"tools_used"`
	SQLQuery        *string    `json:"sql_query"`
	SQLResultsCount *int32     `json:"sql_results_count"`
	Error           *string    `json:"error"`
}

// MessageRow is a message joined with its owner's identity for list views.
type MessageRow struct {
	Message
	DisplayName *string `json:"display_name"`
	Email       *string `json:"email"`
	ExternalID  *string `json:"external_id"`
}

const messageSelectSQL = `
	SELECT
		m.id,
		m.conversation_id,
		m.role,
		m.content,
		m.timestamp,
		m.response_time_ms,
		m.tools_used,
		m.sql_query,
		m.sql_results_count,
		m.error,
		u.display_name,
		u.email,
		u.external_id
	FROM messages m
	LEFT JOIN conversations c ON m.conversation_id = c.id
	LEFT JOIN users u ON c.user_id = u.id`

// The count query skips the joins: every message filter predicates on
// columns of messages alone.
const messageCountSQL = `SELECT COUNT(*) FROM messages m`

func scanMessageRow(rows pgx.Rows) (MessageRow, error) {
	var m MessageRow
	err := rows.Scan(
		&m.ID,
		&m.ConversationID,
		&m.Role,
		&m.Content,
		&m.Timestamp,
		&m.ResponseTimeMS,
		&m.ToolsUsed,
		&m.SQLQuery,
		&m.SQLResultsCount,
		&m.Error,
		&m.DisplayName,
		&m.Email,
		&m.ExternalID,
	)
	return m, err
}

// ListMessages returns one page of messages matching the filter, most
// recent first.
func (s *Store) ListMessages(ctx context.Context, filter MessageFilter, limit, offset int) (*Page[MessageRow], error) {
	return listPage(ctx, s, "list_messages", pageQuery[MessageRow]{
		selectSQL: messageSelectSQL,
		countSQL:  messageCountSQL,
		where:     filter.compile(),
		tail:      "ORDER BY m.timestamp DESC",
		limit:     clampLimit(limit, DefaultMessageLimit, MaxMessageLimit),
		offset:    clampOffset(offset),
		scan:      scanMessageRow,
	})
}

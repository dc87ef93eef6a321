package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Conversation is one chat thread. UserID is nullable: orphan conversations
// are valid.
type Conversation struct {
	ID            int64     `json:"id"`
	ThreadID      string    `json:"thread_id"`
	UserID        *int64    `json:"user_id"`
	StartedAt     time.Time `json:"started_at"`
	LastMessageAt time.Time `json:"last_message_at"`
	MessageCount  int32     `json:"message_count"`
}

// ConversationRow is a conversation joined with its owner's identity and
// per-conversation error/latency aggregates for list views.
type ConversationRow struct {
	Conversation
	DisplayName                *string    `json:"display_name"`
	Email                      *string    `json:"email"`
	ExternalID                 *string    `json:"external_id"`
	ErrorCount                 int64      `json:"error_count"`
	AvgAssistantResponseTimeMS int64      `json:"avg_assistant_response_time_ms"`
	LastErrorAt                *time.Time `json:"last_error_at"`
}

// ConversationStats are the per-role message aggregates of a single
// conversation.
type ConversationStats struct {
	TotalMessages              int64      `json:"total_messages"`
	UserMessages               int64      `json:"user_messages"`
	AssistantMessages          int64      `json:"assistant_messages"`
	ErrorCount                 int64      `json:"error_count"`
	AvgAssistantResponseTimeMS int64      `json:"avg_assistant_response_time_ms"`
	FirstMessageAt             *time.Time `json:"first_message_at"`
}

// ConversationWithStats is the detail view of a conversation.
type ConversationWithStats struct {
	Conversation
	DisplayName *string `json:"display_name"`
	Email       *string `json:"email"`
	ExternalID  *string `json:"external_id"`
	ConversationStats
}

// ConversationDetail is a conversation plus its complete ordered message
// history.
type ConversationDetail struct {
	Conversation ConversationWithStats `json:"conversation"`
	Messages     []Message             `json:"messages"`
}

const conversationSelectSQL = `
	SELECT
		c.id,
		c.thread_id,
		c.user_id,
		c.started_at,
		c.last_message_at,
		c.message_count,
		u.display_name,
		u.email,
		u.external_id,
		COALESCE(ms.error_count, 0) AS error_count,
		COALESCE(ms.avg_assistant_response_time_ms, 0)::BIGINT AS avg_assistant_response_time_ms,
		ms.last_error_at
	FROM conversations c
	LEFT JOIN users u ON c.user_id = u.id
	LEFT JOIN (
		SELECT
			conversation_id,
			COUNT(*) FILTER (WHERE error IS NOT NULL) AS error_count,
			MAX(timestamp) FILTER (WHERE error IS NOT NULL) AS last_error_at,
			ROUND(
				AVG(response_time_ms) FILTER (
					WHERE role = 'assistant' AND response_time_ms IS NOT NULL
				)
			) AS avg_assistant_response_time_ms
		FROM messages
		GROUP BY conversation_id
	) ms ON ms.conversation_id = c.id`

// The count query keeps the joins the predicate may reference (owner
// columns for search, ms.error_count for the has-error filter) but drops
// the aggregates it never reads.
const conversationCountSQL = `
	SELECT COUNT(*)
	FROM conversations c
	LEFT JOIN users u ON c.user_id = u.id
	LEFT JOIN (
		SELECT conversation_id, COUNT(*) FILTER (WHERE error IS NOT NULL) AS error_count
		FROM messages
		GROUP BY conversation_id
	) ms ON ms.conversation_id = c.id`

func scanConversationRow(rows pgx.Rows) (ConversationRow, error) {
	var c ConversationRow
	err := rows.Scan(
		&c.ID,
		&c.ThreadID,
		&c.UserID,
		&c.StartedAt,
		&c.LastMessageAt,
		&c.MessageCount,
		&c.DisplayName,
		&c.Email,
		&c.ExternalID,
		&c.ErrorCount,
		&c.AvgAssistantResponseTimeMS,
		&c.LastErrorAt,
	)
	return c, err
}

// ListConversations returns one page of conversations matching the filter,
// most recently active first.
func (s *Store) ListConversations(ctx context.Context, filter ConversationFilter, limit, offset int) (*Page[ConversationRow], error) {
	return listPage(ctx, s, "list_conversations", pageQuery[ConversationRow]{
		selectSQL: conversationSelectSQL,
		countSQL:  conversationCountSQL,
		where:     filter.compile(),
		tail:      "ORDER BY c.last_message_at DESC",
		limit:     clampLimit(limit, DefaultConversationLimit, MaxConversationLimit),
		offset:    clampOffset(offset),
		scan:      scanConversationRow,
	})
}

// GetConversation returns one conversation with its per-role aggregates and
// full message history in chronological order. Returns ErrNotFound when the
// id does not exist.
func (s *Store) GetConversation(ctx context.Context, id int64) (*ConversationDetail, error) {
	var detail ConversationDetail

	err := s.db.WithConn(ctx, func(conn *pgxpool.Conn) error {
		c := &detail.Conversation
		err := conn.QueryRow(ctx, `
			SELECT
				c.id,
				c.thread_id,
				c.user_id,
				c.started_at,
				c.last_message_at,
				c.message_count,
				u.display_name,
				u.email,
				u.external_id,
				COALESCE(ms.total_messages, 0),
				COALESCE(ms.user_messages, 0),
				COALESCE(ms.assistant_messages, 0),
				COALESCE(ms.error_count, 0),
				COALESCE(ms.avg_assistant_response_time_ms, 0)::BIGINT,
				ms.first_message_at
			FROM conversations c
			LEFT JOIN users u ON c.user_id = u.id
			LEFT JOIN (
				SELECT
					conversation_id,
					COUNT(*) AS total_messages,
					COUNT(*) FILTER (WHERE role = 'user') AS user_messages,
					COUNT(*) FILTER (WHERE role = 'assistant') AS assistant_messages,
					COUNT(*) FILTER (WHERE error IS NOT NULL) AS error_count,
					MIN(timestamp) AS first_message_at,
					ROUND(
						AVG(response_time_ms) FILTER (
							WHERE role = 'assistant' AND response_time_ms IS NOT NULL
						)
					) AS avg_assistant_response_time_ms
				FROM messages
				WHERE conversation_id = $1
				GROUP BY conversation_id
			) ms ON ms.conversation_id = c.id
			WHERE c.id = $2
		`, id, id).Scan(
			&c.ID,
			&c.ThreadID,
			&c.UserID,
			&c.StartedAt,
			&c.LastMessageAt,
			&c.MessageCount,
			&c.DisplayName,
			&c.Email,
			&c.ExternalID,
			&c.TotalMessages,
			&c.UserMessages,
			&c.AssistantMessages,
			&c.ErrorCount,
			&c.AvgAssistantResponseTimeMS,
			&c.FirstMessageAt,
		)
		if err != nil {
			return err
		}

		rows, err := conn.Query(ctx, `
			SELECT
				id, conversation_id, role, content, timestamp,
				response_time_ms, tools_used, sql_query, sql_results_count, error
			FROM messages
			WHERE conversation_id = $1
			ORDER BY timestamp ASC
		`, id)
		if err != nil {
			return err
		}

		detail.Messages, err = collectRows(rows, func(rows pgx.Rows) (Message, error) {
			var m Message
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
			)
			return m, err
		})
		return err
	})
	if err != nil {
		return nil, s.classify("get_conversation", err)
	}

	return &detail, nil
}

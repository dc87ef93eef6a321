package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rukoai/ruko-admin/internal/log"
	"github.com/rukoai/ruko-admin/internal/postgres"
	"github.com/rukoai/ruko-admin/internal/store"
	"github.com/rukoai/ruko-admin/internal/testutil"
)

func ptr[T any](v T) *T { return &v }

type fixture struct {
	db *testutil.TestDB
	st *store.Store
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db := testutil.SetupTestDB(t)
	client := postgres.NewFromPool(db.Pool, log.NewNop())
	return &fixture{db: db, st: store.New(client, log.NewNop())}
}

func (f *fixture) seedUser(t *testing.T, externalID string, lastActive time.Time) int64 {
	t.Helper()
	var id int64
	err := f.db.Pool.QueryRow(context.Background(), `
		INSERT INTO users (external_id, display_name, email, first_seen, last_active)
		VALUES ($1, $2, $3, $4, $4)
		RETURNING id
	`, externalID, "User "+externalID, externalID+"@example.com", lastActive).Scan(&id)
	require.NoError(t, err)
	return id
}

func (f *fixture) seedConversation(t *testing.T, userID *int64, threadID string, startedAt time.Time) int64 {
	t.Helper()
	var id int64
	err := f.db.Pool.QueryRow(context.Background(), `
		INSERT INTO conversations (thread_id, user_id, started_at, last_message_at)
		VALUES ($1, $2, $3, $3)
		RETURNING id
	`, threadID, userID, startedAt).Scan(&id)
	require.NoError(t, err)
	return id
}

type seedMsg struct {
	role    string
	content string
	ts      time.Time
	respMS  *int32
	tools   []string
	errText *string
}

func (f *fixture) seedMessage(t *testing.T, convID int64, m seedMsg) {
	t.Helper()
	_, err := f.db.Pool.Exec(context.Background(), `
		INSERT INTO messages (conversation_id, role, content, timestamp, response_time_ms, tools_used, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, convID, m.role, m.content, m.ts, m.respMS, m.tools, m.errText)
	require.NoError(t, err)
}

func TestStoreIntegration(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	now := time.Now().UTC()

	t.Run("list totals stay consistent across pages", func(t *testing.T) {
		f.db.TruncateAll(t)

		userID := f.seedUser(t, "paging", now)
		convID := f.seedConversation(t, &userID, "thread-paging", now.Add(-time.Hour))
		for i := 0; i < 12; i++ {
			f.seedMessage(t, convID, seedMsg{
				role:    "user",
				content: "message",
				ts:      now.Add(-time.Duration(i) * time.Minute),
			})
		}

		var totals []int64
		for _, offset := range []int{0, 5, 10} {
			page, err := f.st.ListMessages(ctx, store.MessageFilter{}, 5, offset)
			require.NoError(t, err)
			totals = append(totals, page.Total)
		}
		assert.Equal(t, []int64{12, 12, 12}, totals)

		// With limit >= total and offset 0, total equals len(items).
		page, err := f.st.ListMessages(ctx, store.MessageFilter{}, 50, 0)
		require.NoError(t, err)
		assert.EqualValues(t, 12, page.Total)
		assert.Len(t, page.Items, 12)
		assert.Equal(t, 50, page.Limit)
		assert.Equal(t, 0, page.Offset)

		// Ordering is most recent first.
		for i := 1; i < len(page.Items); i++ {
			assert.False(t, page.Items[i-1].Timestamp.Before(page.Items[i].Timestamp),
				"messages must be ordered by timestamp descending")
		}
	})

	t.Run("single-day date range covers the full calendar day", func(t *testing.T) {
		f.db.TruncateAll(t)

		userID := f.seedUser(t, "dates", now)
		convID := f.seedConversation(t, &userID, "thread-dates", now)

		day := time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC)
		f.seedMessage(t, convID, seedMsg{role: "user", content: "midnight", ts: day})
		f.seedMessage(t, convID, seedMsg{role: "user", content: "last-instant",
			ts: day.Add(23*time.Hour + 59*time.Minute + 59*time.Second + 999*time.Millisecond)})
		f.seedMessage(t, convID, seedMsg{role: "user", content: "next-day", ts: day.AddDate(0, 0, 1)})

		page, err := f.st.ListMessages(ctx, store.MessageFilter{
			DateFrom: &day,
			DateTo:   &day,
		}, 0, 0)
		require.NoError(t, err)
		assert.EqualValues(t, 2, page.Total)
		for _, m := range page.Items {
			assert.NotEqual(t, "next-day", m.Content)
		}
	})

	t.Run("message filters combine", func(t *testing.T) {
		f.db.TruncateAll(t)

		userID := f.seedUser(t, "filters", now)
		convID := f.seedConversation(t, &userID, "thread-filters", now)
		otherID := f.seedConversation(t, &userID, "thread-other", now)

		f.seedMessage(t, convID, seedMsg{role: "user", content: "please run the report", ts: now})
		f.seedMessage(t, convID, seedMsg{role: "assistant", content: "REPORT attached", ts: now, respMS: ptr(int32(120))})
		f.seedMessage(t, convID, seedMsg{role: "assistant", content: "query failed", ts: now,
			errText: ptr("upstream timeout")})
		f.seedMessage(t, otherID, seedMsg{role: "assistant", content: "report for other thread", ts: now})

		// Case-insensitive substring search.
		page, err := f.st.ListMessages(ctx, store.MessageFilter{Search: ptr("report")}, 0, 0)
		require.NoError(t, err)
		assert.EqualValues(t, 3, page.Total)

		// Search scoped to one conversation.
		page, err = f.st.ListMessages(ctx, store.MessageFilter{
			ConversationID: &convID,
			Search:         ptr("report"),
		}, 0, 0)
		require.NoError(t, err)
		assert.EqualValues(t, 2, page.Total)

		// Tri-state error filter.
		page, err = f.st.ListMessages(ctx, store.MessageFilter{HasError: ptr(true)}, 0, 0)
		require.NoError(t, err)
		require.EqualValues(t, 1, page.Total)
		require.NotNil(t, page.Items[0].Error)
		assert.Equal(t, "upstream timeout", *page.Items[0].Error)

		page, err = f.st.ListMessages(ctx, store.MessageFilter{HasError: ptr(false)}, 0, 0)
		require.NoError(t, err)
		assert.EqualValues(t, 3, page.Total)

		// Role filter.
		page, err = f.st.ListMessages(ctx, store.MessageFilter{Role: ptr("assistant")}, 0, 0)
		require.NoError(t, err)
		assert.EqualValues(t, 3, page.Total)
	})

	t.Run("conversation has_error filter", func(t *testing.T) {
		f.db.TruncateAll(t)

		userID := f.seedUser(t, "scenario", now)
		conv1 := f.seedConversation(t, &userID, "thread-1", now.Add(-2*time.Hour))
		conv2 := f.seedConversation(t, &userID, "thread-2", now.Add(-time.Hour))

		f.seedMessage(t, conv1, seedMsg{role: "user", content: "hi", ts: now.Add(-2 * time.Hour)})
		f.seedMessage(t, conv1, seedMsg{role: "assistant", content: "hello", ts: now.Add(-119 * time.Minute), respMS: ptr(int32(300))})
		f.seedMessage(t, conv1, seedMsg{role: "assistant", content: "broke", ts: now.Add(-118 * time.Minute),
			errText: ptr("boom")})

		page, err := f.st.ListConversations(ctx, store.ConversationFilter{
			UserID:   &userID,
			HasError: ptr(true),
		}, 0, 0)
		require.NoError(t, err)
		require.EqualValues(t, 1, page.Total)
		assert.Equal(t, conv1, page.Items[0].ID)
		assert.EqualValues(t, 1, page.Items[0].ErrorCount)
		assert.NotNil(t, page.Items[0].LastErrorAt)
		assert.EqualValues(t, 300, page.Items[0].AvgAssistantResponseTimeMS)

		page, err = f.st.ListConversations(ctx, store.ConversationFilter{
			UserID:   &userID,
			HasError: ptr(false),
		}, 0, 0)
		require.NoError(t, err)
		require.EqualValues(t, 1, page.Total)
		assert.Equal(t, conv2, page.Items[0].ID)
		assert.EqualValues(t, 0, page.Items[0].ErrorCount)
	})

	t.Run("orphan conversations are listed", func(t *testing.T) {
		f.db.TruncateAll(t)

		f.seedConversation(t, nil, "thread-orphan", now)

		page, err := f.st.ListConversations(ctx, store.ConversationFilter{}, 0, 0)
		require.NoError(t, err)
		require.EqualValues(t, 1, page.Total)
		assert.Nil(t, page.Items[0].UserID)
		assert.Nil(t, page.Items[0].DisplayName)
	})

	t.Run("detail lookups", func(t *testing.T) {
		f.db.TruncateAll(t)

		// Missing ids are NotFound, not faults.
		_, err := f.st.GetUser(ctx, 99999, 0, 0)
		assert.ErrorIs(t, err, store.ErrNotFound)

		_, err = f.st.GetConversation(ctx, 99999)
		assert.ErrorIs(t, err, store.ErrNotFound)

		// A user with no related rows has zero aggregates.
		lonely := f.seedUser(t, "lonely", now)
		detail, err := f.st.GetUser(ctx, lonely, 0, 0)
		require.NoError(t, err)
		assert.EqualValues(t, 0, detail.User.ConversationCount)
		assert.EqualValues(t, 0, detail.User.MessageCount)
		assert.EqualValues(t, 0, detail.User.ErrorCount)
		assert.Empty(t, detail.Conversations.Items)
		assert.EqualValues(t, 0, detail.Conversations.Total)

		// A conversation with messages reports per-role aggregates and
		// chronologically ordered history.
		userID := f.seedUser(t, "detail", now)
		convID := f.seedConversation(t, &userID, "thread-detail", now.Add(-time.Hour))
		f.seedMessage(t, convID, seedMsg{role: "user", content: "first", ts: now.Add(-50 * time.Minute)})
		f.seedMessage(t, convID, seedMsg{role: "assistant", content: "second", ts: now.Add(-49 * time.Minute), respMS: ptr(int32(100))})
		f.seedMessage(t, convID, seedMsg{role: "assistant", content: "third", ts: now.Add(-48 * time.Minute), respMS: ptr(int32(200)),
			errText: ptr("late failure")})

		conv, err := f.st.GetConversation(ctx, convID)
		require.NoError(t, err)
		assert.EqualValues(t, 3, conv.Conversation.TotalMessages)
		assert.EqualValues(t, 1, conv.Conversation.UserMessages)
		assert.EqualValues(t, 2, conv.Conversation.AssistantMessages)
		assert.EqualValues(t, 1, conv.Conversation.ErrorCount)
		assert.EqualValues(t, 150, conv.Conversation.AvgAssistantResponseTimeMS)
		require.Len(t, conv.Messages, 3)
		assert.Equal(t, "first", conv.Messages[0].Content)
		assert.Equal(t, "third", conv.Messages[2].Content)
	})

	t.Run("user list aggregates and search", func(t *testing.T) {
		f.db.TruncateAll(t)

		ada := f.seedUser(t, "ada", now)
		f.seedUser(t, "grace", now.Add(-time.Hour))

		convID := f.seedConversation(t, &ada, "thread-ada", now)
		f.seedMessage(t, convID, seedMsg{role: "user", content: "hi", ts: now})
		f.seedMessage(t, convID, seedMsg{role: "assistant", content: "oops", ts: now, errText: ptr("failed")})

		page, err := f.st.ListUsers(ctx, store.UserFilter{}, 0, 0)
		require.NoError(t, err)
		require.EqualValues(t, 2, page.Total)
		// Most recently active first.
		assert.Equal(t, "ada", page.Items[0].ExternalID)
		assert.EqualValues(t, 1, page.Items[0].ConversationCount)
		assert.EqualValues(t, 2, page.Items[0].MessageCount)
		assert.EqualValues(t, 1, page.Items[0].ErrorCount)

		page, err = f.st.ListUsers(ctx, store.UserFilter{Search: ptr("GRACE")}, 0, 0)
		require.NoError(t, err)
		require.EqualValues(t, 1, page.Total)
		assert.Equal(t, "grace", page.Items[0].ExternalID)
	})

	t.Run("activity series is gap-filled", func(t *testing.T) {
		f.db.TruncateAll(t)

		// Even a fully empty window yields complete, zeroed series.
		activity, err := f.st.Activity(ctx)
		require.NoError(t, err)
		require.Len(t, activity.Hourly, 24)
		require.Len(t, activity.Daily, 14)
		for _, b := range activity.Hourly {
			assert.Zero(t, b.Messages)
			assert.Zero(t, b.Errors)
		}

		userID := f.seedUser(t, "activity", now)
		convID := f.seedConversation(t, &userID, "thread-activity", now)
		f.seedMessage(t, convID, seedMsg{role: "user", content: "a", ts: now.Add(-2 * time.Minute)})
		f.seedMessage(t, convID, seedMsg{role: "user", content: "b", ts: now.Add(-3 * time.Hour)})
		f.seedMessage(t, convID, seedMsg{role: "assistant", content: "c", ts: now.Add(-3 * time.Hour),
			errText: ptr("failed")})

		activity, err = f.st.Activity(ctx)
		require.NoError(t, err)
		require.Len(t, activity.Hourly, 24)

		var messages, errorsTotal int64
		for i, b := range activity.Hourly {
			if i > 0 {
				assert.True(t, b.Bucket.After(activity.Hourly[i-1].Bucket),
					"buckets must be strictly ascending")
			}
			messages += b.Messages
			errorsTotal += b.Errors
		}
		assert.EqualValues(t, 3, messages, "bucket counts must sum to the 24h total")
		assert.EqualValues(t, 1, errorsTotal)
	})

	t.Run("dashboard stats", func(t *testing.T) {
		f.db.TruncateAll(t)

		// Empty population: counts are zero, order statistics are absent.
		stats, err := f.st.DashboardStats(ctx)
		require.NoError(t, err)
		assert.Zero(t, stats.TotalMessages)
		assert.Nil(t, stats.LastMessageAt)
		assert.Nil(t, stats.AvgResponseTimeMS7d)
		assert.Nil(t, stats.P50ResponseTimeMS7d)
		assert.Nil(t, stats.P95ResponseTimeMS7d)

		userID := f.seedUser(t, "stats", now)
		convID := f.seedConversation(t, &userID, "thread-stats", now)
		for i, ms := range []int32{100, 200, 300, 400, 1000} {
			f.seedMessage(t, convID, seedMsg{
				role:    "assistant",
				content: "reply",
				ts:      now.Add(-time.Duration(i) * time.Minute),
				respMS:  ptr(ms),
			})
		}
		f.seedMessage(t, convID, seedMsg{role: "user", content: "question", ts: now,
			errText: ptr("user-side error")})

		stats, err = f.st.DashboardStats(ctx)
		require.NoError(t, err)
		assert.EqualValues(t, 1, stats.TotalUsers)
		assert.EqualValues(t, 1, stats.TotalConversations)
		assert.EqualValues(t, 6, stats.TotalMessages)
		assert.EqualValues(t, 6, stats.Messages24h)
		assert.EqualValues(t, 1, stats.Errors24h)
		assert.EqualValues(t, 5, stats.AssistantMessages24h)
		assert.NotNil(t, stats.LastMessageAt)

		require.NotNil(t, stats.AvgResponseTimeMS7d)
		require.NotNil(t, stats.P50ResponseTimeMS7d)
		require.NotNil(t, stats.P95ResponseTimeMS7d)
		assert.LessOrEqual(t, *stats.P50ResponseTimeMS7d, *stats.P95ResponseTimeMS7d)
		assert.InDelta(t, 300, *stats.P50ResponseTimeMS7d, 0.001)
	})

	t.Run("top tools ranking", func(t *testing.T) {
		f.db.TruncateAll(t)

		userID := f.seedUser(t, "tools", now)
		convID := f.seedConversation(t, &userID, "thread-tools", now)
		f.seedMessage(t, convID, seedMsg{role: "assistant", content: "a", ts: now,
			tools: []string{"sql", "charts"}})
		f.seedMessage(t, convID, seedMsg{role: "assistant", content: "b", ts: now,
			tools: []string{"sql"}})
		f.seedMessage(t, convID, seedMsg{role: "assistant", content: "c", ts: now,
			tools: []string{"sql", "export"}})

		tools, err := f.st.TopTools(ctx, 0)
		require.NoError(t, err)
		require.Len(t, tools, 3)
		assert.Equal(t, store.ToolCount{Tool: "sql", Count: 3}, tools[0])

		// Top-N truncation.
		tools, err = f.st.TopTools(ctx, 1)
		require.NoError(t, err)
		require.Len(t, tools, 1)
		assert.Equal(t, "sql", tools[0].Tool)
	})

	t.Run("db health", func(t *testing.T) {
		f.db.TruncateAll(t)

		health, err := f.st.DBHealth(ctx)
		require.NoError(t, err)
		assert.False(t, health.ServerTime.IsZero())
		assert.Zero(t, health.Users)
	})
}

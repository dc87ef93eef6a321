package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Reporting windows. The source data is append-only telemetry, so these are
// fixed rather than caller-configurable.
const (
	// hourlyBuckets is the number of buckets in the hourly activity series.
	hourlyBuckets = 24

	// dailyBuckets is the number of buckets in the daily activity series.
	dailyBuckets = 14

	// DefaultToolLimit is the default size of the tool ranking.
	DefaultToolLimit = 8

	// MaxToolLimit bounds the tool ranking size.
	MaxToolLimit = 50
)

// DashboardStats is a single row of point-in-time KPIs. Counts are zero
// when no rows qualify; latency aggregates are nil (never zero) when the
// assistant sub-population is empty.
type DashboardStats struct {
	GeneratedAt          time.Time  `json:"generated_at"`
	TotalUsers           int64      `json:"total_users"`
	TotalConversations   int64      `json:"total_conversations"`
	TotalMessages        int64      `json:"total_messages"`
	MessagesToday        int64      `json:"messages_today"`
	Messages24h          int64      `json:"messages_24h"`
	Errors24h            int64      `json:"errors_24h"`
	AssistantMessages24h int64      `json:"assistant_messages_24h"`
	ActiveUsersToday     int64      `json:"active_users_today"`
	LastMessageAt        *time.Time `json:"last_message_at"`
	AvgResponseTimeMS7d  *float64   `json:"avg_response_time_ms_7d"`
	P50ResponseTimeMS7d  *float64   `json:"p50_response_time_ms_7d"`
	P95ResponseTimeMS7d  *float64   `json:"p95_response_time_ms_7d"`
}

// ActivityBucket is one fixed-width time bucket of the activity series.
type ActivityBucket struct {
	Bucket   time.Time `json:"bucket"`
	Messages int64     `json:"messages"`
	Errors   int64     `json:"errors"`
}

// Activity carries the gap-filled hourly and daily message series. Every
// bucket of the calendar range is present even when no events fall in it.
type Activity struct {
	GeneratedAt time.Time        `json:"generated_at"`
	Hourly      []ActivityBucket `json:"hourly"`
	Daily       []ActivityBucket `json:"daily"`
}

// ToolCount is one entry of the tool usage ranking.
type ToolCount struct {
	Tool  string `json:"tool"`
	Count int64  `json:"count"`
}

// DashboardStats computes the dashboard KPI row. Percentiles use
// continuous (interpolated) semantics over assistant messages with a
// recorded response time in the trailing 7 days.
func (s *Store) DashboardStats(ctx context.Context) (*DashboardStats, error) {
	stats := DashboardStats{GeneratedAt: time.Now().UTC()}

	err := s.db.WithConn(ctx, func(conn *pgxpool.Conn) error {
		return conn.QueryRow(ctx, `
			SELECT
				(SELECT COUNT(*) FROM users),
				(SELECT COUNT(*) FROM conversations),
				(SELECT COUNT(*) FROM messages),
				(SELECT COUNT(*) FROM messages
				 WHERE timestamp >= CURRENT_DATE),
				(SELECT COUNT(*) FROM messages
				 WHERE timestamp >= NOW() - INTERVAL '24 hours'),
				(SELECT COUNT(*) FROM messages
				 WHERE error IS NOT NULL
				 AND timestamp >= NOW() - INTERVAL '24 hours'),
				(SELECT COUNT(*) FROM messages
				 WHERE role = 'assistant'
				 AND timestamp >= NOW() - INTERVAL '24 hours'),
				(SELECT COUNT(DISTINCT user_id) FROM conversations
				 WHERE last_message_at >= CURRENT_DATE),
				(SELECT MAX(timestamp) FROM messages),
				(SELECT AVG(response_time_ms)::FLOAT8 FROM messages
				 WHERE role = 'assistant'
				 AND response_time_ms IS NOT NULL
				 AND timestamp >= NOW() - INTERVAL '7 days'),
				(SELECT percentile_cont(0.5) WITHIN GROUP (ORDER BY response_time_ms)
				 FROM messages
				 WHERE role = 'assistant'
				 AND response_time_ms IS NOT NULL
				 AND timestamp >= NOW() - INTERVAL '7 days'),
				(SELECT percentile_cont(0.95) WITHIN GROUP (ORDER BY response_time_ms)
				 FROM messages
				 WHERE role = 'assistant'
				 AND response_time_ms IS NOT NULL
				 AND timestamp >= NOW() - INTERVAL '7 days')
		`).Scan(
			&stats.TotalUsers,
			&stats.TotalConversations,
			&stats.TotalMessages,
			&stats.MessagesToday,
			&stats.Messages24h,
			&stats.Errors24h,
			&stats.AssistantMessages24h,
			&stats.ActiveUsersToday,
			&stats.LastMessageAt,
			&stats.AvgResponseTimeMS7d,
			&stats.P50ResponseTimeMS7d,
			&stats.P95ResponseTimeMS7d,
		)
	})
	if err != nil {
		return nil, s.classify("dashboard_stats", err)
	}

	return &stats, nil
}

// activitySeriesSQL produces a gap-filled bucket series: a generated
// calendar sequence LEFT JOINed against sparse grouped counts, so empty
// buckets report zero instead of being omitted. trunc is the date_trunc
// unit ("hour" or "day"); the window parameters are interval literals.
const activitySeriesSQL = `
	WITH series AS (
		SELECT generate_series(
			date_trunc('%[1]s', NOW() - INTERVAL '%[2]s'),
			date_trunc('%[1]s', NOW()),
			INTERVAL '1 %[1]s'
		) AS bucket
	),
	counts AS (
		SELECT
			date_trunc('%[1]s', timestamp) AS bucket,
			COUNT(*) AS messages,
			COUNT(*) FILTER (WHERE error IS NOT NULL) AS errors
		FROM messages
		WHERE timestamp >= NOW() - INTERVAL '%[3]s'
		GROUP BY 1
	)
	SELECT
		s.bucket,
		COALESCE(c.messages, 0) AS messages,
		COALESCE(c.errors, 0) AS errors
	FROM series s
	LEFT JOIN counts c USING (bucket)
	ORDER BY s.bucket`

// Fixed-window instantiations of the series template. Only package
// constants are interpolated, never caller input.
var (
	hourlyActivitySQL = fmt.Sprintf(activitySeriesSQL, "hour", "23 hours", "24 hours")
	dailyActivitySQL  = fmt.Sprintf(activitySeriesSQL, "day", "13 days", "14 days")
)

func scanActivityBucket(rows pgx.Rows) (ActivityBucket, error) {
	var b ActivityBucket
	err := rows.Scan(&b.Bucket, &b.Messages, &b.Errors)
	return b, err
}

// Activity returns the hourly series over the trailing 24 hours (inclusive
// of the current partial hour) and the daily series over the trailing 14
// days, both in ascending chronological order.
func (s *Store) Activity(ctx context.Context) (*Activity, error) {
	activity := Activity{GeneratedAt: time.Now().UTC()}

	err := s.db.WithConn(ctx, func(conn *pgxpool.Conn) error {
		rows, err := conn.Query(ctx, hourlyActivitySQL)
		if err != nil {
			return err
		}
		if activity.Hourly, err = collectRows(rows, scanActivityBucket); err != nil {
			return err
		}

		rows, err = conn.Query(ctx, dailyActivitySQL)
		if err != nil {
			return err
		}
		activity.Daily, err = collectRows(rows, scanActivityBucket)
		return err
	})
	if err != nil {
		return nil, s.classify("activity", err)
	}

	return &activity, nil
}

// TopTools flattens the per-message tool arrays over the trailing 7 days
// and returns the most used tools, descending by count.
func (s *Store) TopTools(ctx context.Context, limit int) ([]ToolCount, error) {
	limit = clampLimit(limit, DefaultToolLimit, MaxToolLimit)

	var tools []ToolCount
	err := s.db.WithConn(ctx, func(conn *pgxpool.Conn) error {
		rows, err := conn.Query(ctx, `
			SELECT tool, COUNT(*) AS count
			FROM (
				SELECT unnest(tools_used) AS tool
				FROM messages
				WHERE tools_used IS NOT NULL
				  AND timestamp >= NOW() - INTERVAL '7 days'
			) t
			GROUP BY tool
			ORDER BY count DESC, tool ASC
			LIMIT $1
		`, limit)
		if err != nil {
			return err
		}

		tools, err = collectRows(rows, func(rows pgx.Rows) (ToolCount, error) {
			var tc ToolCount
			err := rows.Scan(&tc.Tool, &tc.Count)
			return tc, err
		})
		return err
	})
	if err != nil {
		return nil, s.classify("top_tools", err)
	}

	return tools, nil
}

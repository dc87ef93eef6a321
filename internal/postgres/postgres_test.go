package postgres_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rukoai/ruko-admin/internal/log"
	"github.com/rukoai/ruko-admin/internal/postgres"
	"github.com/rukoai/ruko-admin/internal/testutil"
)

func TestNilClient(t *testing.T) {
	var c *postgres.Client

	err := c.WithConn(context.Background(), func(conn *pgxpool.Conn) error {
		t.Fatal("fn must not run without a pool")
		return nil
	})
	assert.ErrorIs(t, err, postgres.ErrNotInitialized)
	assert.ErrorIs(t, c.Ping(context.Background()), postgres.ErrNotInitialized)
	assert.Nil(t, c.Stat())

	// Close on an uninitialized client is a no-op, not a panic.
	c.Close()
}

func TestWithConn(t *testing.T) {
	db := testutil.SetupTestDB(t)
	client := postgres.NewFromPool(db.Pool, log.NewNop())
	ctx := context.Background()

	t.Run("runs queries and releases", func(t *testing.T) {
		baseline := client.Stat().AcquiredConns()

		var one int
		err := client.WithConn(ctx, func(conn *pgxpool.Conn) error {
			return conn.QueryRow(ctx, "SELECT 1").Scan(&one)
		})
		require.NoError(t, err)
		assert.Equal(t, 1, one)
		assert.Equal(t, baseline, client.Stat().AcquiredConns())
	})

	t.Run("releases on error", func(t *testing.T) {
		baseline := client.Stat().AcquiredConns()

		err := client.WithConn(ctx, func(conn *pgxpool.Conn) error {
			_, err := conn.Exec(ctx, "SELECT definitely_not_a_column FROM nowhere")
			return err
		})
		require.Error(t, err)
		assert.Equal(t, baseline, client.Stat().AcquiredConns())
	})

	t.Run("releases on panic", func(t *testing.T) {
		baseline := client.Stat().AcquiredConns()

		require.Panics(t, func() {
			_ = client.WithConn(ctx, func(conn *pgxpool.Conn) error {
				panic("worker blew up mid-query")
			})
		})
		assert.Equal(t, baseline, client.Stat().AcquiredConns())
	})

	t.Run("rolls back abandoned transaction before release", func(t *testing.T) {
		sentinel := errors.New("business error")

		err := client.WithConn(ctx, func(conn *pgxpool.Conn) error {
			if _, err := conn.Exec(ctx, "BEGIN"); err != nil {
				return err
			}
			// Poison the transaction, then bail without rollback.
			_, _ = conn.Exec(ctx, "SELECT broken syntax here")
			return sentinel
		})
		require.ErrorIs(t, err, sentinel)

		// The next borrower must see a clean connection.
		err = client.WithConn(ctx, func(conn *pgxpool.Conn) error {
			assert.EqualValues(t, 'I', conn.Conn().PgConn().TxStatus())
			var one int
			return conn.QueryRow(ctx, "SELECT 1").Scan(&one)
		})
		require.NoError(t, err)
	})

	t.Run("no leak across concurrent workers", func(t *testing.T) {
		baseline := client.Stat().AcquiredConns()

		const workers = 16
		var wg sync.WaitGroup
		wg.Add(workers)
		for i := 0; i < workers; i++ {
			fail := i%3 == 0
			go func() {
				defer wg.Done()
				_ = client.WithConn(ctx, func(conn *pgxpool.Conn) error {
					if fail {
						_, err := conn.Exec(ctx, "SELECT broken")
						return err
					}
					var n int
					return conn.QueryRow(ctx, "SELECT COUNT(*) FROM users").Scan(&n)
				})
			}()
		}
		wg.Wait()

		assert.Equal(t, baseline, client.Stat().AcquiredConns())
	})
}

package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/meikuraledutech/flow/storetest"
	"github.com/stretchr/testify/require"
)

// TestPGStore runs against a scratch database named by
// FLOW_TEST_DATABASE_URL. The flow tables in it are dropped.
func TestPGStore(t *testing.T) {
	url := os.Getenv("FLOW_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("FLOW_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, url)
	require.NoError(t, err)
	defer pool.Close()

	s := New(pool)
	require.NoError(t, s.DropSchema(ctx))
	t.Cleanup(func() { s.DropSchema(context.Background()) })

	storetest.Run(t, s)
}

func TestRowID(t *testing.T) {
	n, ok := rowID("42")
	require.True(t, ok)
	require.Equal(t, int64(42), n)

	_, ok = rowID("tmp-42")
	require.False(t, ok)
}

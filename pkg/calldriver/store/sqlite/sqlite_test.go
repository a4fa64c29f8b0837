package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognicore/calldriver/pkg/calldriver/store"
	"github.com/cognicore/calldriver/pkg/calldriver/store/storetest"
)

func TestSQLiteStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		st, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "runs.db"))
		require.NoError(t, err)
		return st
	})
}

func TestSQLiteInMemory(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		st, err := OpenSQLite(context.Background(), ":memory:")
		require.NoError(t, err)
		return st
	})
}

func TestSQLiteReopenKeepsRuns(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "runs.db")

	st, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	r := store.Run{ID: store.NewIDs().New(time.Now()), CreatedAt: time.Now(), Tickets: 2}
	require.NoError(t, st.SaveRun(ctx, r, []store.Ticket{{Index: 0, Driver: "VPN"}, {Index: 1, Driver: "Other"}}, nil))
	require.NoError(t, st.Close())

	st, err = OpenSQLite(ctx, path)
	require.NoError(t, err)
	defer st.Close()

	got, err := st.GetRun(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Tickets)
	tickets, err := st.Tickets(ctx, r.ID)
	require.NoError(t, err)
	assert.Len(t, tickets, 2)
}

func TestSQLiteRollbackOnFailure(t *testing.T) {
	ctx := context.Background()
	st, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	defer st.Close()

	r := store.Run{ID: store.NewIDs().New(time.Now()), CreatedAt: time.Now()}
	dup := []store.Ticket{{Index: 0, Driver: "VPN"}, {Index: 0, Driver: "VPN"}}
	require.Error(t, st.SaveRun(ctx, r, dup, nil))

	runs, err := st.ListRuns(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

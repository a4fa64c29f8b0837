// Package storetest holds the behavior every store.Store must share.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognicore/calldriver/pkg/calldriver/internalerr"
	"github.com/cognicore/calldriver/pkg/calldriver/store"
)

// Run exercises a fresh store returned by open.
func Run(t *testing.T, open func(t *testing.T) store.Store) {
	t.Run("SaveAndGet", func(t *testing.T) { testSaveAndGet(t, open(t)) })
	t.Run("ListNewestFirst", func(t *testing.T) { testList(t, open(t)) })
	t.Run("Errors", func(t *testing.T) { testErrors(t, open(t)) })
}

func testSaveAndGet(t *testing.T, st store.Store) {
	defer st.Close()
	ctx := context.Background()
	created := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	ids := store.NewIDs()

	run := store.Run{
		ID:          ids.New(created),
		CreatedAt:   created,
		Tickets:     3,
		OtherBefore: 2.0 / 3,
		OtherAfter:  1.0 / 3,
		Rounds:      1,
		Stop:        "target_reached",
	}
	tickets := []store.Ticket{
		{Index: 0, Ref: "INC001", Text: "vpn tunnel broken", Driver: "VPN", Source: "rule"},
		{Index: 1, Ref: "INC002", Text: "badge reader offline", Driver: "Badge Reader", Source: "cluster"},
		{Index: 2, Text: "random gibberish", Driver: "Other", Source: "other"},
	}
	labels := []store.ClusterLabel{
		{Driver: "cluster_0", Title: "Badge Reader", Rationale: "salience", Source: "local", Size: 1},
	}
	require.NoError(t, st.SaveRun(ctx, run, tickets, labels))

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, got.ID)
	assert.True(t, created.Equal(got.CreatedAt))
	assert.Equal(t, 3, got.Tickets)
	assert.InDelta(t, run.OtherAfter, got.OtherAfter, 1e-12)
	assert.Equal(t, "target_reached", got.Stop)

	gotTickets, err := st.Tickets(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, tickets, gotTickets)

	gotLabels, err := st.ClusterLabels(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, labels, gotLabels)
}

func testList(t *testing.T, st store.Store) {
	defer st.Close()
	ctx := context.Background()
	ids := store.NewIDs()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	var want []string
	for i := 0; i < 3; i++ {
		at := base.Add(time.Duration(i) * time.Hour)
		r := store.Run{ID: ids.New(at), CreatedAt: at, Tickets: i}
		require.NoError(t, st.SaveRun(ctx, r, nil, nil))
		want = append([]string{r.ID}, want...)
	}

	runs, err := st.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	for i, r := range runs {
		assert.Equal(t, want[i], r.ID)
	}

	runs, err = st.ListRuns(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
	assert.Equal(t, want[0], runs[0].ID)

	tickets, err := st.Tickets(ctx, want[0])
	require.NoError(t, err)
	assert.Empty(t, tickets)
}

func testErrors(t *testing.T, st store.Store) {
	defer st.Close()
	ctx := context.Background()

	_, err := st.GetRun(ctx, "missing")
	assert.ErrorIs(t, err, internalerr.ErrNotFound)
	_, err = st.Tickets(ctx, "missing")
	assert.ErrorIs(t, err, internalerr.ErrNotFound)
	_, err = st.ClusterLabels(ctx, "missing")
	assert.ErrorIs(t, err, internalerr.ErrNotFound)

	assert.ErrorIs(t, st.SaveRun(ctx, store.Run{}, nil, nil), internalerr.ErrInvalidInput)

	r := store.Run{ID: store.NewIDs().New(time.Now()), CreatedAt: time.Now()}
	require.NoError(t, st.SaveRun(ctx, r, nil, nil))
	assert.ErrorIs(t, st.SaveRun(ctx, r, nil, nil), internalerr.ErrDuplicate)
}

package tracker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweepArchivesOldProcessedUpdates(t *testing.T) {
	svc, st := newTestService(t)
	tr := seedTracker(t, svc)
	ctx := context.Background()

	old := seedUpdate(t, st, tr.ID, nil)
	fresh := seedUpdate(t, st, tr.ID, nil)
	pending := seedUpdate(t, st, tr.ID, nil)

	// One decision well past retention, one recent, one still pending.
	_, err := st.MarkProcessed(ctx, old.ID, false, time.Now().UTC().Add(-2*time.Hour))
	require.NoError(t, err)
	_, err = st.MarkProcessed(ctx, fresh.ID, true, time.Now().UTC())
	require.NoError(t, err)

	svc.runSweep(ctx)

	after, err := st.GetUpdate(ctx, old.ID)
	require.NoError(t, err)
	assert.NotNil(t, after.ArchivedAt)

	after, err = st.GetUpdate(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Nil(t, after.ArchivedAt)

	after, err = st.GetUpdate(ctx, pending.ID)
	require.NoError(t, err)
	assert.Nil(t, after.ArchivedAt, "pending updates are never swept")
}

func TestSweeperStopsOnCancel(t *testing.T) {
	svc, _ := newTestService(t)
	svc.sweeper.CheckInterval = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.StartArchiveSweeper(ctx)
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop after context cancellation")
	}
}

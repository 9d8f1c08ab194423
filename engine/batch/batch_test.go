package batch

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBroken = errors.New("broken page")

func stages(step Step) error {
	for _, s := range []State{Planning, Stretching, Rebuilding} {
		if err := step(s); err != nil {
			return err
		}
	}
	return nil
}

func TestRunCollectsInIDOrder(t *testing.T) {
	ids := []int{0, 1, 2, 3, 4, 5, 6, 7}
	tracker := NewTracker()
	res, err := Run(context.Background(), ids, Options{Workers: 3, Tracker: tracker},
		func(ctx context.Context, id int, step Step) (string, error) {
			// Later pages finish first.
			time.Sleep(time.Duration(len(ids)-id) * time.Millisecond)
			if err := stages(step); err != nil {
				return "", err
			}
			return fmt.Sprintf("page-%d", id), nil
		})
	require.NoError(t, err)
	require.Len(t, res, len(ids))
	for i, r := range res {
		assert.Equal(t, i, r.ID)
		assert.Equal(t, Done, r.State)
		assert.Equal(t, fmt.Sprintf("page-%d", i), r.Value)
	}
	assert.Equal(t, map[State]int{Done: len(ids)}, tracker.Counts())
}

func TestRunBoundsWorkers(t *testing.T) {
	var running, peak atomic.Int32
	_, err := Run(context.Background(), []int{1, 2, 3, 4, 5, 6}, Options{Workers: 2},
		func(ctx context.Context, id int, step Step) (int, error) {
			n := running.Add(1)
			defer running.Add(-1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			return id, nil
		})
	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestContinueAndCollect(t *testing.T) {
	res, err := Run(context.Background(), []int{0, 1, 2}, Options{Workers: 2},
		func(ctx context.Context, id int, step Step) (int, error) {
			if id == 1 {
				return 0, errBroken
			}
			return id, stages(step)
		})
	require.Error(t, err)

	var berr *Error
	require.True(t, errors.As(err, &berr))
	assert.False(t, berr.Aborted)
	require.Len(t, berr.Pages, 1)
	assert.Equal(t, 1, berr.Pages[0].ID)
	assert.ErrorIs(t, err, ErrPageFailed)
	assert.ErrorIs(t, err, errBroken)
	assert.NotErrorIs(t, err, ErrAborted)

	assert.Equal(t, Done, res[0].State)
	assert.Equal(t, Failed, res[1].State)
	assert.ErrorIs(t, res[1].Err, errBroken)
	assert.Equal(t, Done, res[2].State)
}

func TestAbortOnFirstFailure(t *testing.T) {
	ids := make([]int, 20)
	for i := range ids {
		ids[i] = i
	}
	res, err := Run(context.Background(), ids, Options{Workers: 1, Abort: true},
		func(ctx context.Context, id int, step Step) (int, error) {
			if id == 2 {
				return 0, errBroken
			}
			return id, stages(step)
		})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAborted)
	assert.ErrorIs(t, err, errBroken)

	require.Len(t, res, len(ids))
	assert.Equal(t, Done, res[0].State)
	assert.Equal(t, Done, res[1].State)
	assert.ErrorIs(t, res[2].Err, errBroken)
	for _, r := range res[3:] {
		assert.Equal(t, Failed, r.State, "page %d", r.ID)
		assert.ErrorIs(t, r.Err, ErrAborted)
	}
}

func TestDeadlineFailsUnfinishedPages(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	res, err := Run(ctx, []int{0, 1}, Options{Workers: 2},
		func(ctx context.Context, id int, step Step) (int, error) {
			if id == 1 {
				<-ctx.Done()
				if err := stages(step); err != nil {
					return 0, err
				}
			}
			return id, nil
		})
	require.Error(t, err)
	var berr *Error
	require.True(t, errors.As(err, &berr))
	assert.False(t, berr.Aborted)

	assert.Equal(t, Done, res[0].State)
	assert.Equal(t, Failed, res[1].State)
	assert.ErrorIs(t, res[1].Err, ErrTimeout)
}

func TestCancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls atomic.Int32
	res, err := Run(ctx, []int{4, 2}, Options{},
		func(ctx context.Context, id int, step Step) (int, error) {
			calls.Add(1)
			return id, nil
		})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAborted)
	assert.Zero(t, calls.Load())
	require.Len(t, res, 2)
	assert.Equal(t, 2, res[0].ID)
	assert.Equal(t, 4, res[1].ID)
}

func TestPanicFailsOnlyItsPage(t *testing.T) {
	res, err := Run(context.Background(), []int{0, 1}, Options{},
		func(ctx context.Context, id int, step Step) (int, error) {
			if id == 0 {
				panic("bad geometry")
			}
			return id, nil
		})
	require.Error(t, err)
	assert.Equal(t, Failed, res[0].State)
	assert.Contains(t, res[0].Err.Error(), "bad geometry")
	assert.Equal(t, Done, res[1].State)
}

func TestTrackerSnapshotIsCopy(t *testing.T) {
	tr := NewTracker()
	tr.set(1, Planning)
	snap := tr.Snapshot()
	tr.set(1, Done)
	assert.Equal(t, Planning, snap[1])
	assert.Equal(t, "done", tr.Snapshot()[1].String())
	assert.True(t, Failed.Terminal())
	assert.False(t, Rebuilding.Terminal())
}

func TestStatesArriveInOrderFromOneGoroutine(t *testing.T) {
	tr := NewTracker()
	// No lock: OnState must never be called concurrently.
	seen := map[int][]State{}
	opts := Options{Workers: 4, Tracker: tr, OnState: func(id int, s State) {
		seen[id] = append(seen[id], s)
		assert.Equal(t, s, tr.Snapshot()[id], "tracker already holds the state")
	}}
	ids := make([]int, 16)
	for i := range ids {
		ids[i] = i
	}
	_, err := Run(context.Background(), ids, opts, func(ctx context.Context, id int, step Step) (int, error) {
		return id, stages(step)
	})
	require.NoError(t, err)

	want := []State{Pending, Detecting, Planning, Stretching, Rebuilding, Done}
	for _, id := range ids {
		assert.Equal(t, want, seen[id], "page %d", id)
	}
	assert.Equal(t, map[State]int{Done: len(ids)}, tr.Counts())
}

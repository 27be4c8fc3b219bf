package listing

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/HerbHall/ihttstats/internal/query"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pagedSource serves ints 0..total-1 in pages of size per.
type pagedSource struct {
	total int
	per   int
	calls atomic.Int32
	pages []int
	mu    sync.Mutex
}

func (s *pagedSource) fetch(_ context.Context, _ query.Filter, page int) ([]int, int, error) {
	s.calls.Add(1)
	s.mu.Lock()
	s.pages = append(s.pages, page)
	s.mu.Unlock()

	start := (page - 1) * s.per
	end := start + s.per
	if end > s.total {
		end = s.total
	}
	if start > end {
		start = end
	}
	out := make([]int, 0, end-start)
	for i := start; i < end; i++ {
		out = append(out, i)
	}
	return out, s.total, nil
}

func TestAccumulator_TwentyFiveInPagesOfNine(t *testing.T) {
	src := &pagedSource{total: 25, per: 9}
	acc := NewAccumulator[int](src.fetch, 9, nil)
	ctx := context.Background()

	require.NoError(t, acc.SubmitNewFilter(ctx, query.Filter{}))
	assert.Equal(t, 9, acc.State().Loaded)

	require.NoError(t, acc.OnDisplayPageChange(ctx, 3))

	st := acc.State()
	assert.Equal(t, 25, st.Loaded)
	assert.Equal(t, 25, st.Total)
	assert.Equal(t, 3, st.Pages)
	assert.Equal(t, int32(3), src.calls.Load(), "no fourth load")
	assert.Equal(t, []int{1, 2, 3}, src.pages)
	assert.Equal(t, []int{18, 19, 20, 21, 22, 23, 24}, acc.Window())

	// Moving back and forth never triggers another load once complete.
	require.NoError(t, acc.OnDisplayPageChange(ctx, 1))
	require.NoError(t, acc.OnDisplayPageChange(ctx, 3))
	assert.Equal(t, int32(3), src.calls.Load())
}

func TestAccumulator_LoadNextPageDoesNotChain(t *testing.T) {
	src := &pagedSource{total: 25, per: 9}
	acc := NewAccumulator[int](src.fetch, 9, nil)
	ctx := context.Background()

	require.NoError(t, acc.SubmitNewFilter(ctx, query.Filter{}))
	require.NoError(t, acc.LoadNextPage(ctx))
	assert.Equal(t, 18, acc.State().Loaded)
	require.NoError(t, acc.LoadNextPage(ctx))
	assert.Equal(t, 25, acc.State().Loaded)
	assert.Equal(t, 3, acc.State().BackendPage, "counter does not advance past the last page")
	assert.Equal(t, int32(3), src.calls.Load())
}

func TestAccumulator_DisplayPageOneLoadsOnlyWhenWindowReachesEnd(t *testing.T) {
	src := &pagedSource{total: 25, per: 10}
	acc := NewAccumulator[int](src.fetch, 9, nil)
	ctx := context.Background()

	require.NoError(t, acc.SubmitNewFilter(ctx, query.Filter{}))
	require.NoError(t, acc.OnDisplayPageChange(ctx, 1))
	// Window [0,9) ends before the 10 accumulated records.
	assert.Equal(t, int32(1), src.calls.Load())

	require.NoError(t, acc.OnDisplayPageChange(ctx, 2))
	// Window [9,18) reaches past 10, so one more page is fetched.
	assert.Equal(t, int32(2), src.calls.Load())
	assert.Len(t, acc.Window(), 9)
}

func TestAccumulator_TotalZero(t *testing.T) {
	src := &pagedSource{total: 0, per: 9}
	acc := NewAccumulator[int](src.fetch, 9, nil)
	ctx := context.Background()

	require.NoError(t, acc.SubmitNewFilter(ctx, query.Filter{}))
	require.NoError(t, acc.OnDisplayPageChange(ctx, 2))

	assert.Empty(t, acc.Window())
	assert.Equal(t, 0, acc.State().Pages)
	assert.Equal(t, int32(1), src.calls.Load())
}

func TestAccumulator_FailureLeavesListAndClearsInflight(t *testing.T) {
	src := &pagedSource{total: 25, per: 9}
	fail := atomic.Bool{}
	boom := errors.New("backend down")
	fetch := func(ctx context.Context, f query.Filter, page int) ([]int, int, error) {
		if fail.Load() {
			return nil, 0, boom
		}
		return src.fetch(ctx, f, page)
	}
	acc := NewAccumulator[int](fetch, 9, nil)
	ctx := context.Background()

	require.NoError(t, acc.SubmitNewFilter(ctx, query.Filter{}))
	fail.Store(true)

	err := acc.OnDisplayPageChange(ctx, 2)
	assert.ErrorIs(t, err, boom)
	st := acc.State()
	assert.Equal(t, 9, st.Loaded)
	assert.Equal(t, 25, st.Total)
	assert.Equal(t, 2, st.BackendPage)
	assert.False(t, st.Loading)

	// No automatic retry, but the caller may try again.
	fail.Store(false)
	require.NoError(t, acc.OnDisplayPageChange(ctx, 2))
	// Window [9,18) ends exactly at 18 accumulated, so the last page follows.
	assert.Equal(t, 25, acc.State().Loaded)
}

func TestAccumulator_StaleGenerationDiscarded(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	var stale atomic.Int32

	fetch := func(_ context.Context, f query.Filter, _ int) ([]string, int, error) {
		if f["status"] == "OLD" {
			close(started)
			<-release
			return []string{"old-1", "old-2"}, 2, nil
		}
		return []string{"new-1"}, 1, nil
	}
	acc := NewAccumulator[string](fetch, 9, func() { stale.Add(1) })
	ctx := context.Background()

	done := make(chan error, 1)
	go func() { done <- acc.SubmitNewFilter(ctx, query.Filter{"status": "OLD"}) }()
	<-started

	require.NoError(t, acc.SubmitNewFilter(ctx, query.Filter{"status": "NEW"}))
	assert.Equal(t, []string{"new-1"}, acc.Items())

	close(release)
	require.NoError(t, <-done)

	assert.Equal(t, []string{"new-1"}, acc.Items(), "generation-1 response must not overwrite generation 2")
	assert.Equal(t, int32(1), stale.Load())
	st := acc.State()
	assert.Equal(t, uint64(2), st.Generation)
	assert.Equal(t, 1, st.Total)
	assert.False(t, st.Loading)
}

func TestAccumulator_StaleResponseKeepsNewInflight(t *testing.T) {
	oldRelease := make(chan struct{})
	oldStarted := make(chan struct{})
	newRelease := make(chan struct{})
	newStarted := make(chan struct{})

	fetch := func(_ context.Context, f query.Filter, _ int) ([]int, int, error) {
		if f["g"] == 1 {
			close(oldStarted)
			<-oldRelease
			return []int{1}, 1, nil
		}
		close(newStarted)
		<-newRelease
		return []int{2}, 1, nil
	}
	acc := NewAccumulator[int](fetch, 9, nil)
	ctx := context.Background()

	oldDone := make(chan error, 1)
	go func() { oldDone <- acc.SubmitNewFilter(ctx, query.Filter{"g": 1}) }()
	<-oldStarted
	newDone := make(chan error, 1)
	go func() { newDone <- acc.SubmitNewFilter(ctx, query.Filter{"g": 2}) }()
	<-newStarted

	close(oldRelease)
	require.NoError(t, <-oldDone)
	assert.True(t, acc.State().Loading, "stale response must not clear the newer generation's in-flight flag")

	close(newRelease)
	require.NoError(t, <-newDone)
	assert.False(t, acc.State().Loading)
	assert.Equal(t, []int{2}, acc.Items())
}

func TestAccumulator_InflightPreventsDoubleFetch(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	var calls atomic.Int32

	fetch := func(_ context.Context, _ query.Filter, page int) ([]int, int, error) {
		if calls.Add(1) == 2 {
			started <- struct{}{}
			<-release
		}
		return []int{page}, 10, nil
	}
	acc := NewAccumulator[int](fetch, 1, nil)
	ctx := context.Background()
	require.NoError(t, acc.SubmitNewFilter(ctx, query.Filter{}))

	done := make(chan error, 1)
	go func() { done <- acc.LoadNextPage(ctx) }()
	<-started

	// Same cursor while the first load is outstanding: no second request.
	require.NoError(t, acc.LoadNextPage(ctx))
	require.NoError(t, acc.OnDisplayPageChange(ctx, 5))
	assert.Equal(t, int32(2), calls.Load())

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, []int{1, 2}, acc.Items())
}

func TestAccumulator_SubmitResetsDisplayPage(t *testing.T) {
	src := &pagedSource{total: 30, per: 9}
	acc := NewAccumulator[int](src.fetch, 9, nil)
	ctx := context.Background()

	require.NoError(t, acc.SubmitNewFilter(ctx, query.Filter{}))
	require.NoError(t, acc.OnDisplayPageChange(ctx, 3))
	require.NoError(t, acc.SubmitNewFilter(ctx, query.Filter{"x": "y"}))

	st := acc.State()
	assert.Equal(t, 1, st.DisplayPage)
	assert.Equal(t, 9, st.Loaded)
	assert.Equal(t, 2, st.BackendPage)
	assert.Equal(t, query.Filter{"x": "y"}, acc.Filter())
}

func TestAccumulator_SnapshotBelongsToOneGeneration(t *testing.T) {
	fetch := func(_ context.Context, f query.Filter, _ int) ([]string, int, error) {
		return []string{f["tag"].(string)}, 1, nil
	}
	acc := NewAccumulator[string](fetch, 9, nil)
	ctx := context.Background()
	require.NoError(t, acc.SubmitNewFilter(ctx, query.Filter{"tag": "a"}))

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			tag := "a"
			if i%2 == 1 {
				tag = "b"
			}
			_ = acc.SubmitNewFilter(ctx, query.Filter{"tag": tag})
		}
	}()

	for i := 0; i < 500; i++ {
		snap := acc.Snapshot()
		assert.Equal(t, len(snap.Window), snap.State.Loaded)
		for _, item := range snap.Window {
			assert.Equal(t, snap.Filter["tag"], item)
		}
	}
	close(stop)
	wg.Wait()
}

func TestAccumulator_SnapshotMatchesAccessors(t *testing.T) {
	src := &pagedSource{total: 25, per: 9}
	acc := NewAccumulator[int](src.fetch, 9, nil)
	ctx := context.Background()
	require.NoError(t, acc.SubmitNewFilter(ctx, query.Filter{"x": "y"}))
	require.NoError(t, acc.OnDisplayPageChange(ctx, 2))

	snap := acc.Snapshot()
	assert.Equal(t, acc.Window(), snap.Window)
	assert.Equal(t, acc.State(), snap.State)
	assert.Equal(t, query.Filter{"x": "y"}, snap.Filter)
}

package listing

import (
	"context"
	"sync"

	"github.com/HerbHall/ihttstats/internal/query"
)

// PageFunc fetches one backend page (1-based) for filter and returns its
// items and the server-side total.
type PageFunc[T any] func(ctx context.Context, filter query.Filter, page int) ([]T, int, error)

// State is a point-in-time snapshot of an Accumulator.
type State struct {
	Generation  uint64 `json:"generation"`
	Loaded      int    `json:"loaded"`
	Total       int    `json:"total"`
	BackendPage int    `json:"backend_page"`
	DisplayPage int    `json:"display_page"`
	PageSize    int    `json:"page_size"`
	Pages       int    `json:"pages"`
	Loading     bool   `json:"loading"`
}

// Accumulator grows an in-memory list from backend pages and serves a
// fixed-size display window over it.
//
// Every filter submission starts a new generation. Responses issued under an
// older generation are dropped when they arrive, and they never clear the
// in-flight flag of the current one. The backend call runs outside the lock.
type Accumulator[T any] struct {
	fetch    PageFunc[T]
	pageSize int
	onStale  func()

	mu          sync.Mutex
	items       []T
	total       int
	backendPage int
	displayPage int
	filter      query.Filter
	generation  uint64
	inflight    bool
	inflightGen uint64
}

// NewAccumulator creates an empty Accumulator. onStale, if non-nil, is
// called once for every discarded stale response.
func NewAccumulator[T any](fetch PageFunc[T], pageSize int, onStale func()) *Accumulator[T] {
	if pageSize <= 0 {
		pageSize = 9
	}
	return &Accumulator[T]{
		fetch:       fetch,
		pageSize:    pageSize,
		onStale:     onStale,
		backendPage: 1,
		displayPage: 1,
		filter:      query.Filter{},
	}
}

// busy reports whether a load for the current generation is outstanding.
// Callers hold mu.
func (a *Accumulator[T]) busy() bool {
	return a.inflight && a.inflightGen == a.generation
}

// LoadNextPage fetches the current backend page and appends it. The page
// counter advances only while more records remain. It does not chain; if a
// load for the current generation is already in flight it returns at once.
func (a *Accumulator[T]) LoadNextPage(ctx context.Context) error {
	a.mu.Lock()
	if a.busy() {
		a.mu.Unlock()
		return nil
	}
	gen := a.generation
	page := a.backendPage
	filter := a.filter.Clone()
	a.inflight = true
	a.inflightGen = gen
	a.mu.Unlock()

	items, total, err := a.fetch(ctx, filter, page)
	return a.apply(gen, items, total, err, false)
}

// SubmitNewFilter starts a new generation: the list is cleared, both page
// counters reset to 1, and the first page replaces the list.
func (a *Accumulator[T]) SubmitNewFilter(ctx context.Context, filter query.Filter) error {
	a.mu.Lock()
	a.generation++
	gen := a.generation
	a.filter = filter.Clone()
	a.items = nil
	a.total = 0
	a.backendPage = 1
	a.displayPage = 1
	a.inflight = true
	a.inflightGen = gen
	f := a.filter.Clone()
	a.mu.Unlock()

	items, total, err := a.fetch(ctx, f, 1)
	return a.apply(gen, items, total, err, true)
}

func (a *Accumulator[T]) apply(gen uint64, items []T, total int, err error, replace bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if gen != a.generation {
		if a.onStale != nil {
			a.onStale()
		}
		return nil
	}
	a.inflight = false
	if err != nil {
		return err
	}

	if replace {
		a.items = append([]T(nil), items...)
	} else {
		a.items = append(a.items, items...)
	}
	a.total = total
	if len(a.items) < a.total {
		a.backendPage++
	}
	return nil
}

// needsMore reports whether the display window reaches past what has been
// accumulated while the server still has records. Callers hold mu.
func (a *Accumulator[T]) needsMore() bool {
	end := a.displayPage * a.pageSize
	return end >= len(a.items) && len(a.items) < a.total && !a.busy()
}

// OnDisplayPageChange moves the display window and loads backend pages until
// the window is satisfied, the list is complete, or a load makes no progress.
func (a *Accumulator[T]) OnDisplayPageChange(ctx context.Context, page int) error {
	if page < 1 {
		page = 1
	}
	a.mu.Lock()
	a.displayPage = page
	a.mu.Unlock()

	for {
		a.mu.Lock()
		if !a.needsMore() {
			a.mu.Unlock()
			return nil
		}
		before := len(a.items)
		gen := a.generation
		a.mu.Unlock()

		if err := a.LoadNextPage(ctx); err != nil {
			return err
		}

		a.mu.Lock()
		stalled := len(a.items) == before || a.generation != gen
		a.mu.Unlock()
		if stalled {
			return nil
		}
	}
}

// Window returns a copy of the records in the current display window.
func (a *Accumulator[T]) Window() []T {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.windowLocked()
}

func (a *Accumulator[T]) windowLocked() []T {
	start := (a.displayPage - 1) * a.pageSize
	end := a.displayPage * a.pageSize
	if start > len(a.items) {
		start = len(a.items)
	}
	if end > len(a.items) {
		end = len(a.items)
	}
	out := make([]T, end-start)
	copy(out, a.items[start:end])
	return out
}

// Items returns a copy of the whole accumulated list.
func (a *Accumulator[T]) Items() []T {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]T, len(a.items))
	copy(out, a.items)
	return out
}

// Filter returns a copy of the current generation's filter.
func (a *Accumulator[T]) Filter() query.Filter {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.filter.Clone()
}

// State returns a snapshot of the accumulator's counters.
func (a *Accumulator[T]) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stateLocked()
}

func (a *Accumulator[T]) stateLocked() State {
	pages := 0
	if a.total > 0 {
		pages = (a.total + a.pageSize - 1) / a.pageSize
	}
	return State{
		Generation:  a.generation,
		Loaded:      len(a.items),
		Total:       a.total,
		BackendPage: a.backendPage,
		DisplayPage: a.displayPage,
		PageSize:    a.pageSize,
		Pages:       pages,
		Loading:     a.busy(),
	}
}

// Snapshot is the filter, counters and display window of one generation,
// read together.
type Snapshot[T any] struct {
	Filter query.Filter
	State  State
	Window []T
}

// Snapshot reads filter, state and window under a single lock so the three
// always belong to the same generation.
func (a *Accumulator[T]) Snapshot() Snapshot[T] {
	a.mu.Lock()
	defer a.mu.Unlock()
	return Snapshot[T]{
		Filter: a.filter.Clone(),
		State:  a.stateLocked(),
		Window: a.windowLocked(),
	}
}

package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"slices"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

var (
	ErrPageFailed = errors.New("page failed")
	ErrAborted    = errors.New("batch aborted")
	ErrTimeout    = errors.New("page timed out")
)

// State is the pipeline position of one page.
type State int

const (
	Pending State = iota
	Detecting
	Planning
	Stretching
	Rebuilding
	Done
	Failed
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Detecting:
		return "detecting"
	case Planning:
		return "planning"
	case Stretching:
		return "stretching"
	case Rebuilding:
		return "rebuilding"
	case Done:
		return "done"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

func (s State) Terminal() bool { return s == Done || s == Failed }

// Result is the terminal record of one page. Err is set when State is Failed.
type Result[T any] struct {
	ID    int
	State State
	Value T
	Err   error
}

// PageError is one failed page inside an Error.
type PageError struct {
	ID  int
	Err error
}

// Error aggregates the page failures of a run.
type Error struct {
	Aborted bool
	Pages   []PageError
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Aborted {
		b.WriteString("batch aborted: ")
	}
	fmt.Fprintf(&b, "%d page(s) failed", len(e.Pages))
	for i, p := range e.Pages {
		if i == 3 {
			fmt.Fprintf(&b, "; and %d more", len(e.Pages)-i)
			break
		}
		fmt.Fprintf(&b, "; page %d: %v", p.ID, p.Err)
	}
	return b.String()
}

func (e *Error) Unwrap() []error {
	errs := []error{ErrPageFailed}
	if e.Aborted {
		errs = append(errs, ErrAborted)
	}
	for _, p := range e.Pages {
		errs = append(errs, p.Err)
	}
	return errs
}

// Tracker exposes page states for progress reporting. Readers get a copy
// that may lag behind the workers.
type Tracker struct {
	mu     sync.RWMutex
	states map[int]State
}

func NewTracker() *Tracker {
	return &Tracker{states: make(map[int]State)}
}

func (t *Tracker) set(id int, s State) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.states[id] = s
}

func (t *Tracker) Snapshot() map[int]State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[int]State, len(t.states))
	for id, s := range t.states {
		out[id] = s
	}
	return out
}

// Counts returns how many pages are in each state.
func (t *Tracker) Counts() map[State]int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[State]int)
	for _, s := range t.states {
		out[s]++
	}
	return out
}

// Step moves a page to the next stage. It fails once the run is cancelled,
// so a task stops between stages and never hands back partial work.
type Step func(State) error

// Task runs the pipeline of one page. The page is already Detecting when
// the task starts.
type Task[T any] func(ctx context.Context, id int, step Step) (T, error)

type Options struct {
	Workers int
	// Abort stops the run at the first failed page. Pages that have not
	// started are recorded as Failed with ErrAborted.
	Abort   bool
	Tracker *Tracker
	Logger  *slog.Logger
	// OnState sees every state change in order. It is only ever called
	// from one goroutine at a time.
	OnState func(id int, s State)
}

// update is a state change sent to the collector. Result is set for the
// terminal one.
type update[T any] struct {
	id     int
	state  State
	result *Result[T]
}

// Run executes task for every id on a bounded pool. Results come back in
// id order whatever the completion order was. The error is an *Error when
// any page failed.
func Run[T any](ctx context.Context, ids []int, opts Options, task Task[T]) ([]Result[T], error) {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	tracker := opts.Tracker
	if tracker == nil {
		tracker = NewTracker()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	record := func(id int, s State) {
		tracker.set(id, s)
		if opts.OnState != nil {
			opts.OnState(id, s)
		}
	}
	for _, id := range ids {
		record(id, Pending)
	}

	runCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	var g errgroup.Group
	g.SetLimit(workers)

	// The collector is the only writer of page states while workers run.
	updates := make(chan update[T])
	results := make(map[int]Result[T], len(ids))
	collected := make(chan struct{})
	go func() {
		defer close(collected)
		for u := range updates {
			if u.result != nil {
				results[u.id] = *u.result
			}
			record(u.id, u.state)
		}
	}()

	for _, id := range ids {
		if runCtx.Err() != nil {
			break
		}
		g.Go(func() error {
			report := func(s State) { updates <- update[T]{id: id, state: s} }
			r := runPage(runCtx, id, task, report)
			updates <- update[T]{id: id, state: r.State, result: &r}
			if r.State == Failed {
				logger.Warn("page failed", "page", id, "err", r.Err)
				if opts.Abort {
					cancel(ErrAborted)
				}
			}
			return nil
		})
	}
	_ = g.Wait()
	close(updates)
	<-collected

	out := make([]Result[T], 0, len(ids))
	agg := &Error{Aborted: runCtx.Err() != nil && !errors.Is(interrupted(runCtx), ErrTimeout)}
	for _, id := range ids {
		r, ok := results[id]
		if !ok {
			r = Result[T]{ID: id, State: Failed, Err: interrupted(runCtx)}
			record(id, Failed)
		}
		if r.State == Failed {
			agg.Pages = append(agg.Pages, PageError{ID: id, Err: r.Err})
		}
		out = append(out, r)
	}
	slices.SortStableFunc(out, func(a, b Result[T]) int { return a.ID - b.ID })
	if len(agg.Pages) > 0 {
		return out, agg
	}
	return out, nil
}

func runPage[T any](ctx context.Context, id int, task Task[T], report func(State)) (r Result[T]) {
	r.ID = id
	defer func() {
		if p := recover(); p != nil {
			r.State = Failed
			r.Err = fmt.Errorf("panic: %v", p)
		}
	}()
	step := func(s State) error {
		if ctx.Err() != nil {
			return interrupted(ctx)
		}
		report(s)
		return nil
	}
	if err := step(Detecting); err != nil {
		r.State, r.Err = Failed, err
		return r
	}
	v, err := task(ctx, id, step)
	if err != nil {
		r.State, r.Err = Failed, err
		return r
	}
	// A page that finished its last stage counts even if the run was
	// cancelled meanwhile.
	r.State, r.Value = Done, v
	return r
}

// interrupted classifies why ctx ended. A deadline from the caller is a
// timeout; anything else, including an abort after another page failed,
// is an abort.
func interrupted(ctx context.Context) error {
	if errors.Is(context.Cause(ctx), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrTimeout, context.DeadlineExceeded)
	}
	return ErrAborted
}

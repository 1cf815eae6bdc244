// Package dashboard owns the paginated, searchable user listing: the page
// state, the fetch state machine and its HTTP surface.
package dashboard

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/userboard/internal/directory"
	"github.com/noah-isme/userboard/internal/observability"
)

// Lister is the user-listing collaborator.
type Lister interface {
	List(ctx context.Context, q directory.Query) (directory.Listing, error)
}

// Options configures a Dashboard. Page and Search seed the initial page state.
type Options struct {
	PerPage int
	Page    int
	Search  string
	Logger  *slog.Logger
	Metrics *observability.Metrics
}

// Dashboard is the state machine behind one user's view. Every page or
// search change dispatches exactly one fetch; only the most recently
// dispatched fetch may settle the state.
type Dashboard struct {
	lister  Lister
	logger  *slog.Logger
	metrics *observability.Metrics

	mu     sync.Mutex
	page   PageState
	state  State
	total  int
	seq    uint64
	cancel context.CancelFunc
	done   chan struct{}
	closed bool
}

// New builds a Dashboard in the Idle state. Call Start to mount it.
func New(lister Lister, opts Options) *Dashboard {
	if opts.PerPage <= 0 {
		opts.PerPage = DefaultPerPage
	}
	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Dashboard{
		lister:  lister,
		logger:  opts.Logger,
		metrics: opts.Metrics,
		page:    PageState{Page: opts.Page, Search: strings.TrimSpace(opts.Search), PerPage: opts.PerPage},
		state:   Idle{},
	}
}

// Start dispatches the initial fetch.
func (d *Dashboard) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.dispatchLocked()
}

// SubmitSearch sets a new search term and returns to page 1.
func (d *Dashboard) SubmitSearch(text string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.page.Search = strings.TrimSpace(text)
	d.page.Page = 1
	d.dispatchLocked()
}

// SelectPage moves to page n. Pages outside [1, TotalPages] and the current
// page are ignored; the return value reports whether a fetch was dispatched.
func (d *Dashboard) SelectPage(n int) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.selectLocked(n)
}

// Previous moves one page back; inert on page 1.
func (d *Dashboard) Previous() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.selectLocked(d.page.Page - 1)
}

// Next moves one page forward; inert on the last page.
func (d *Dashboard) Next() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.selectLocked(d.page.Page + 1)
}

// Reload re-fetches the current page state.
func (d *Dashboard) Reload() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.dispatchLocked()
}

// Snapshot returns a consistent copy of the dashboard.
func (d *Dashboard) Snapshot() Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Snapshot{
		PageState: d.page,
		State:     d.state,
		Pager:     NewPager(d.page.Page, d.page.PerPage, d.total),
	}
}

// Wait blocks until no fetch is in flight or ctx is done.
func (d *Dashboard) Wait(ctx context.Context) error {
	d.mu.Lock()
	done := d.done
	d.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close cancels any in-flight fetch. Later operations are ignored.
func (d *Dashboard) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.closed = true
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if d.done != nil {
		close(d.done)
		d.done = nil
	}
}

func (d *Dashboard) selectLocked(n int) bool {
	if d.closed {
		return false
	}
	if n < 1 || n > TotalPages(d.total, d.page.PerPage) || n == d.page.Page {
		return false
	}
	d.page.Page = n
	d.dispatchLocked()
	return true
}

func (d *Dashboard) dispatchLocked() {
	if d.cancel != nil {
		d.cancel()
	}
	d.seq++
	seq := d.seq
	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	if d.done == nil {
		d.done = make(chan struct{})
	}
	d.state = Loading{Seq: seq}
	go d.fetchPage(ctx, seq, d.page)
}

func (d *Dashboard) fetchPage(ctx context.Context, seq uint64, page PageState) {
	fetchID := uuid.NewString()
	start := time.Now()
	listing, err := d.lister.List(ctx, page.Query())

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	if seq != d.seq {
		d.metrics.StaleResult()
		d.logger.Debug("discarding superseded fetch", slog.String("fetch_id", fetchID), slog.Uint64("seq", seq), slog.Uint64("latest", d.seq))
		return
	}
	d.cancel()
	d.cancel = nil

	if err != nil {
		d.logger.Warn("dashboard fetch failed",
			slog.String("fetch_id", fetchID),
			slog.Uint64("seq", seq),
			slog.Int("page", page.Page),
			slog.String("search", page.Search),
			slog.Any("error", err))
		d.state = Failed{Message: FetchErrorMessage}
		d.total = 0
		d.settleLocked()
		return
	}

	users := listing.Users
	if users == nil {
		users = []directory.User{}
	}
	d.state = Loaded{Users: users, Total: listing.Total}
	d.total = listing.Total
	d.logger.Debug("dashboard fetch settled",
		slog.String("fetch_id", fetchID),
		slog.Uint64("seq", seq),
		slog.Int("users", len(users)),
		slog.Int("total", listing.Total),
		slog.Duration("duration", time.Since(start)))

	// The collection shrank under us: move to the new last page.
	if last := TotalPages(d.total, d.page.PerPage); last > 0 && d.page.Page > last {
		d.page.Page = last
		d.dispatchLocked()
		return
	}
	d.settleLocked()
}

func (d *Dashboard) settleLocked() {
	if d.done != nil {
		close(d.done)
		d.done = nil
	}
}

package dashboard

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/noah-isme/userboard/internal/observability"
)

// DefaultMaxDashboards caps the registry when no limit is configured.
const DefaultMaxDashboards = 1000

// RegistryConfig collects dependencies for a Registry.
type RegistryConfig struct {
	Lister        Lister
	PerPage       int
	IdleTTL       time.Duration
	SweepInterval time.Duration
	// MaxDashboards bounds how many sessions hold a mounted dashboard. The
	// least recently seen one is unmounted to make room.
	MaxDashboards int
	Logger        *slog.Logger
	Metrics       *observability.Metrics
}

type entry struct {
	dashboard *Dashboard
	lastSeen  time.Time
}

// Registry keeps one Dashboard per browser session.
type Registry struct {
	cfg     RegistryConfig
	clock   func() time.Time
	mu      sync.Mutex
	entries map[string]*entry
}

// NewRegistry constructs a Registry.
func NewRegistry(cfg RegistryConfig) *Registry {
	if cfg.PerPage <= 0 {
		cfg.PerPage = DefaultPerPage
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 30 * time.Minute
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Minute
	}
	if cfg.MaxDashboards <= 0 {
		cfg.MaxDashboards = DefaultMaxDashboards
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Registry{
		cfg:     cfg,
		clock:   time.Now,
		entries: make(map[string]*entry),
	}
}

// PerPage returns the page size every Dashboard in the registry uses.
func (r *Registry) PerPage() int {
	return r.cfg.PerPage
}

// Get returns the session's Dashboard, mounting one seeded with seed when
// none exists.
func (r *Registry) Get(sessionID string, seed PageState) *Dashboard {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.clock()
	if e, ok := r.entries[sessionID]; ok {
		e.lastSeen = now
		return e.dashboard
	}
	for len(r.entries) >= r.cfg.MaxDashboards {
		r.evictOldest()
	}
	d := New(r.cfg.Lister, Options{
		PerPage: r.cfg.PerPage,
		Page:    seed.Page,
		Search:  seed.Search,
		Logger:  r.cfg.Logger.With(slog.String("session", sessionID)),
		Metrics: r.cfg.Metrics,
	})
	r.entries[sessionID] = &entry{dashboard: d, lastSeen: now}
	d.Start()
	return d
}

// Lookup returns the session's Dashboard without mounting one.
func (r *Registry) Lookup(sessionID string) (*Dashboard, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[sessionID]
	if !ok {
		return nil, false
	}
	e.lastSeen = r.clock()
	return e.dashboard, true
}

// Len reports how many dashboards are mounted.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Sweep unmounts dashboards idle for longer than IdleTTL.
func (r *Registry) Sweep(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	evicted := 0
	for id, e := range r.entries {
		if now.Sub(e.lastSeen) > r.cfg.IdleTTL {
			e.dashboard.Close()
			delete(r.entries, id)
			evicted++
		}
	}
	return evicted
}

// Run sweeps until ctx is done, then unmounts everything.
func (r *Registry) Run(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.closeAll()
			return
		case <-ticker.C:
			if n := r.Sweep(r.clock()); n > 0 {
				r.cfg.Logger.Debug("evicted idle dashboards", slog.Int("count", n))
			}
		}
	}
}

// evictOldest unmounts the least recently seen dashboard. Callers hold r.mu.
func (r *Registry) evictOldest() {
	var (
		oldestID string
		oldest   *entry
	)
	for id, e := range r.entries {
		if oldest == nil || e.lastSeen.Before(oldest.lastSeen) {
			oldestID, oldest = id, e
		}
	}
	if oldest == nil {
		return
	}
	oldest.dashboard.Close()
	delete(r.entries, oldestID)
	r.cfg.Logger.Debug("evicted dashboard over capacity", slog.String("session", oldestID))
}

func (r *Registry) closeAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, e := range r.entries {
		e.dashboard.Close()
		delete(r.entries, id)
	}
}

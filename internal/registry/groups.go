// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HyperPerms Contributors

package registry

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"

	"github.com/hyperperms/hyperperms/internal/inheritance"
	"github.com/hyperperms/hyperperms/internal/model"
)

const defaultStalenessThreshold = 30 * time.Second

// GroupSource lists groups for registry loads. Implemented by the storage
// layer; must be safe for repeated calls.
type GroupSource interface {
	ListGroups(ctx context.Context) ([]*model.Group, error)
}

// Listener abstracts a change-notification stream (e.g. PostgreSQL
// LISTEN/NOTIFY) for registry invalidation. The returned channel emits an
// opaque payload per change and closes when the context is cancelled.
type Listener interface {
	Listen(ctx context.Context) (<-chan string, error)
}

// GroupsOption configures GroupRegistry behavior.
type GroupsOption func(*groupsConfig)

type groupsConfig struct {
	stalenessThreshold time.Duration
	lastUpdateGauge    prometheus.Gauge
}

// WithStalenessThreshold sets how long a registry stays fresh after a reload.
func WithStalenessThreshold(d time.Duration) GroupsOption {
	return func(c *groupsConfig) {
		c.stalenessThreshold = d
	}
}

// WithLastUpdateGauge records the last successful reload timestamp in the
// given Prometheus gauge.
func WithLastUpdateGauge(g prometheus.Gauge) GroupsOption {
	return func(c *groupsConfig) {
		c.lastUpdateGauge = g
	}
}

// GroupRegistry is the in-memory, case-insensitive group store the resolver's
// GroupLoader reads from. Reads take a shared lock only; Reload swaps the
// whole map under the write lock after building it lock-free.
type GroupRegistry struct {
	source GroupSource
	cfg    groupsConfig

	mu     sync.RWMutex
	groups map[string]*model.Group

	// lastUpdate stores the Unix nanosecond timestamp of the last successful
	// reload; zero means never loaded.
	lastUpdate atomic.Int64

	// wg tracks the notification goroutine for graceful shutdown.
	wg sync.WaitGroup
}

// NewGroupRegistry creates a registry over the given source. The source may
// be nil for registries populated only through Put.
func NewGroupRegistry(source GroupSource, opts ...GroupsOption) *GroupRegistry {
	cfg := groupsConfig{stalenessThreshold: defaultStalenessThreshold}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &GroupRegistry{
		source: source,
		cfg:    cfg,
		groups: make(map[string]*model.Group),
	}
}

// Get returns the group registered under the (case-insensitive) name.
func (gr *GroupRegistry) Get(name string) (*model.Group, bool) {
	gr.mu.RLock()
	defer gr.mu.RUnlock()
	g, ok := gr.groups[model.NormalizeGroupName(name)]
	return g, ok
}

// Loader adapts the registry to the resolver's GroupLoader dependency.
func (gr *GroupRegistry) Loader() inheritance.GroupLoader {
	return gr.Get
}

// Names returns the normalized names of every registered group.
func (gr *GroupRegistry) Names() []string {
	gr.mu.RLock()
	defer gr.mu.RUnlock()
	out := make([]string, 0, len(gr.groups))
	for name := range gr.groups {
		out = append(out, name)
	}
	return out
}

// Put registers or replaces a single group. Returns an error for a nil group
// or blank name.
func (gr *GroupRegistry) Put(group *model.Group) error {
	if group == nil {
		return oops.Code("INVALID_GROUP").Errorf("group must not be nil")
	}
	name := model.NormalizeGroupName(group.Name)
	if name == "" {
		return oops.Code("INVALID_GROUP").Errorf("group name must be non-empty")
	}
	gr.mu.Lock()
	gr.groups[name] = group
	gr.mu.Unlock()
	return nil
}

// Remove drops a group from the registry.
func (gr *GroupRegistry) Remove(name string) {
	gr.mu.Lock()
	delete(gr.groups, model.NormalizeGroupName(name))
	gr.mu.Unlock()
}

// Reload fetches every group from the source and atomically swaps the map.
// Names colliding case-insensitively fail the reload, since silent override
// would make resolution depend on list order.
func (gr *GroupRegistry) Reload(ctx context.Context) error {
	if gr.source == nil {
		return oops.Code("NO_GROUP_SOURCE").Errorf("registry has no group source to reload from")
	}

	listed, err := gr.source.ListGroups(ctx)
	if err != nil {
		return oops.Code("GROUP_RELOAD_FAILED").Wrap(err)
	}

	next := make(map[string]*model.Group, len(listed))
	for _, g := range listed {
		if g == nil {
			continue
		}
		name := model.NormalizeGroupName(g.Name)
		if name == "" {
			continue
		}
		if _, dup := next[name]; dup {
			return oops.
				Code("DUPLICATE_GROUP").
				With("name", name).
				Errorf("group name %q is not case-insensitively unique", g.Name)
		}
		next[name] = g
	}

	gr.mu.Lock()
	gr.groups = next
	gr.mu.Unlock()

	now := time.Now()
	gr.lastUpdate.Store(now.UnixNano())
	if gr.cfg.lastUpdateGauge != nil {
		gr.cfg.lastUpdateGauge.Set(float64(now.Unix()))
	}
	return nil
}

// IsStale reports whether no successful reload happened within the staleness
// threshold. Registries populated only through Put are always stale.
func (gr *GroupRegistry) IsStale() bool {
	last := gr.lastUpdate.Load()
	if last == 0 {
		return true
	}
	return time.Since(time.Unix(0, last)) > gr.cfg.stalenessThreshold
}

// StartWithListener spawns a goroutine that reloads the registry on each
// change notification. The goroutine exits when the context is cancelled or
// the listener channel closes; Wait blocks until then.
func (gr *GroupRegistry) StartWithListener(ctx context.Context, listener Listener) error {
	ch, err := listener.Listen(ctx)
	if err != nil {
		return oops.Code("GROUP_LISTEN_FAILED").Wrap(err)
	}

	gr.wg.Add(1)
	go gr.listenLoop(ctx, ch)
	return nil
}

// Wait blocks until the notification goroutine has exited.
func (gr *GroupRegistry) Wait() {
	gr.wg.Wait()
}

func (gr *GroupRegistry) listenLoop(ctx context.Context, ch <-chan string) {
	defer gr.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-ch:
			if !ok {
				return
			}
			if err := gr.Reload(ctx); err != nil {
				slog.Error("group registry reload on notification failed",
					slog.String("error", err.Error()))
			}
		}
	}
}

// GroupsLastUpdate is the default Prometheus gauge for tracking the last
// successful group registry reload. Register it with your registry at startup.
var GroupsLastUpdate = prometheus.NewGauge(prometheus.GaugeOpts{
	Name: "hyperperms_group_registry_last_update",
	Help: "Unix timestamp of the last successful group registry reload",
})

// RegisterMetrics registers registry metrics with the given Prometheus
// registerer.
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(GroupsLastUpdate)
}

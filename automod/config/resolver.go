package config

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wardenchat/warden/automod/configstore"

	"github.com/puzpuzpuz/xsync/v3"
)

var (
	// how long to wait for the config store when a tenant is first referenced
	DefaultLoadTimeout = 2 * time.Second
	// how long a background persist of an updated config may take
	DefaultSaveTimeout = 5 * time.Second
)

// Caches per-tenant configs in memory, backed by an optional ConfigStore.
//
// Cached values are never mutated: Update builds a new value and swaps it in, so a concurrent reader always sees either the old or the new config, never a mix. Resolve returns copies, so callers may not modify cached state either.
type Resolver struct {
	Logger      *slog.Logger
	Store       configstore.ConfigStore
	LoadTimeout time.Duration
	SaveTimeout time.Duration

	cache *xsync.MapOf[string, *TenantConfig]
	// one background writer per tenant, so the store never ends up with an older config than the cache
	saves   *xsync.MapOf[string, *pendingSave]
	version atomic.Uint64
}

type pendingSave struct {
	mu      sync.Mutex
	version uint64
	raw     []byte
	running bool
}

func NewResolver(store configstore.ConfigStore, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		Logger:      logger.With("component", "config"),
		Store:       store,
		LoadTimeout: DefaultLoadTimeout,
		SaveTimeout: DefaultSaveTimeout,
		cache:       xsync.NewMapOf[string, *TenantConfig](),
		saves:       xsync.NewMapOf[string, *pendingSave](),
	}
}

func validTenant(tenantID string) bool {
	return strings.TrimSpace(tenantID) != ""
}

// Returns the config for a tenant, loading it from the store (or defaults) on first reference.
//
// Never fails: store problems are logged and the defaults are used. Invalid (empty) tenant IDs always get the defaults, and nothing is cached for them.
func (r *Resolver) Resolve(ctx context.Context, tenantID string) TenantConfig {
	if !validTenant(tenantID) {
		return Default()
	}
	if tc, ok := r.cache.Load(tenantID); ok {
		return tc.Clone()
	}
	loaded := r.load(ctx, tenantID)
	// another goroutine may have loaded (or updated) this tenant concurrently; prefer whatever got there first
	actual, _ := r.cache.LoadOrStore(tenantID, &loaded)
	return actual.Clone()
}

func (r *Resolver) load(ctx context.Context, tenantID string) TenantConfig {
	if r.Store == nil {
		return Default()
	}
	ctx, cancel := context.WithTimeout(ctx, r.LoadTimeout)
	defer cancel()
	raw, err := r.Store.Load(ctx, tenantID)
	if err != nil {
		r.Logger.Warn("failed to load tenant config, using defaults", "tenant", tenantID, "err", err)
		return Default()
	}
	if raw == nil {
		return Default()
	}
	tc, warnings, err := FromJSON(raw)
	if err != nil {
		r.Logger.Warn("persisted tenant config is invalid, using defaults", "tenant", tenantID, "err", err)
		return Default()
	}
	if len(warnings) > 0 {
		r.Logger.Warn("ignored invalid fields in persisted tenant config", "tenant", tenantID, "fields", warnings)
	}
	return tc
}

// Merges a partial update in to the tenant's current config, replaces the cached value, and persists the result in the background.
//
// Persisting is fire-and-forget: the in-memory copy is authoritative even if the store write fails.
func (r *Resolver) Update(ctx context.Context, tenantID string, p Patch) TenantConfig {
	if !validTenant(tenantID) {
		return Default()
	}
	// make sure the persisted config is loaded before merging, outside of the map's bucket lock
	fallback := r.Resolve(ctx, tenantID)
	var updated TenantConfig
	var version uint64
	r.cache.Compute(tenantID, func(old *TenantConfig, loaded bool) (*TenantConfig, bool) {
		base := fallback
		if loaded {
			base = *old
		}
		updated = Merge(base, p)
		// taken under the bucket lock, so versions follow merge order
		version = r.version.Add(1)
		next := updated.Clone()
		return &next, false
	})
	r.persist(tenantID, updated, version)
	return updated.Clone()
}

// Parses a JSON partial update (see ParsePatch) and applies it with Update. Invalid fields are reported as warnings, not errors.
func (r *Resolver) UpdateJSON(ctx context.Context, tenantID string, raw []byte) (TenantConfig, []string, error) {
	p, warnings, err := ParsePatch(raw)
	if err != nil {
		return r.Resolve(ctx, tenantID), nil, err
	}
	if len(warnings) > 0 {
		r.Logger.Warn("ignored invalid fields in tenant config update", "tenant", tenantID, "fields", warnings)
	}
	return r.Update(ctx, tenantID, p), warnings, nil
}

// Queues a write of the config. Writes for one tenant are made one at a time, newest version last; versions superseded while a write is in flight are skipped.
func (r *Resolver) persist(tenantID string, tc TenantConfig, version uint64) {
	if r.Store == nil {
		return
	}
	raw, err := json.Marshal(tc)
	if err != nil {
		r.Logger.Error("failed to serialize tenant config", "tenant", tenantID, "err", err)
		return
	}
	ps, _ := r.saves.LoadOrCompute(tenantID, func() *pendingSave {
		return &pendingSave{}
	})
	ps.mu.Lock()
	defer ps.mu.Unlock()
	if version <= ps.version {
		return
	}
	ps.version = version
	ps.raw = raw
	if ps.running {
		return
	}
	ps.running = true
	go r.saveLoop(tenantID, ps)
}

func (r *Resolver) saveLoop(tenantID string, ps *pendingSave) {
	var saved uint64
	for {
		ps.mu.Lock()
		if ps.version == saved {
			ps.running = false
			ps.mu.Unlock()
			return
		}
		version, raw := ps.version, ps.raw
		ps.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), r.SaveTimeout)
		if err := r.Store.Save(ctx, tenantID, raw); err != nil {
			r.Logger.Error("failed to persist tenant config", "tenant", tenantID, "version", version, "err", err)
		}
		cancel()
		saved = version
	}
}

// Drops the cached config for a tenant; the next Resolve re-reads the store.
func (r *Resolver) Invalidate(tenantID string) {
	r.cache.Delete(tenantID)
}

// Number of tenants with a cached config.
func (r *Resolver) Count() int {
	return r.cache.Size()
}

func (r *Resolver) Clear() {
	r.cache.Clear()
}

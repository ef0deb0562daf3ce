package spawn

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/udisondev/spawnkeep/internal/model"
)

var (
	ErrSpawnerExists   = errors.New("spawner already exists at location")
	ErrSpawnerNotFound = errors.New("spawner not found")
	ErrUnknownTemplate = errors.New("unknown template")
)

// Config tunes the registry's periodic loops. Zero fields take defaults.
type Config struct {
	TickInterval         time.Duration
	PersistInterval      time.Duration
	SweepInterval        time.Duration
	GroupRebuildInterval time.Duration
}

// DefaultConfig returns the standard loop intervals.
func DefaultConfig() Config {
	return Config{
		TickInterval:         time.Second,
		PersistInterval:      5 * time.Minute,
		SweepInterval:        30 * time.Second,
		GroupRebuildInterval: time.Minute,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.TickInterval <= 0 {
		c.TickInterval = def.TickInterval
	}
	if c.PersistInterval <= 0 {
		c.PersistInterval = def.PersistInterval
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = def.SweepInterval
	}
	if c.GroupRebuildInterval <= 0 {
		c.GroupRebuildInterval = def.GroupRebuildInterval
	}
	return c
}

// Registry is the process-wide directory of spawners. It owns the
// authoritative id → spawner map, the block-position index, the derived
// group index and the unit → spawner routing table, and drives every
// spawner from a single tick goroutine.
type Registry struct {
	codec *Codec
	store Store
	deps  Deps
	cfg   Config

	mu       sync.RWMutex
	spawners map[string]*Spawner       // id → spawner
	byPos    map[model.BlockPos]string // block position → id
	groups   map[string][]string       // group name → ids, derived index

	units sync.Map // map[model.UnitID]*Spawner — unitID → owning spawner
}

// NewRegistry creates a registry. The registry installs itself as the
// Tracker in deps, so callers leave deps.Tracker nil.
func NewRegistry(codec *Codec, store Store, deps Deps, cfg Config) *Registry {
	r := &Registry{
		codec:    codec,
		store:    store,
		cfg:      cfg.withDefaults(),
		spawners: make(map[string]*Spawner),
		byPos:    make(map[model.BlockPos]string),
		groups:   make(map[string][]string),
	}
	deps.Tracker = r
	r.deps = deps
	return r
}

// Track records a live unit's owning spawner.
func (r *Registry) Track(id model.UnitID, s *Spawner) {
	r.units.Store(id, s)
}

// Untrack drops a unit from the routing table.
func (r *Registry) Untrack(id model.UnitID) {
	r.units.Delete(id)
}

// NotifyUnitRemoved routes a death notification to the owning spawner.
// Safe to call from any goroutine. Returns false for untracked units.
func (r *Registry) NotifyUnitRemoved(id model.UnitID, now time.Time) bool {
	value, ok := r.units.Load(id)
	if !ok {
		return false
	}
	return value.(*Spawner).OnUnitRemoved(id, now)
}

// Load restores all spawners from the snapshot store. Records that fail to
// decode are skipped with a warning; entry tokens that fail validation are
// dropped from their record, keeping the valid remainder.
func (r *Registry) Load(ctx context.Context) error {
	recs, err := r.store.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("loading spawner snapshot: %w", err)
	}

	loaded := 0
	for _, rec := range recs {
		if err := r.addFromRecord(rec); err != nil {
			slog.Warn("skipping spawner record", "key", rec.Key, "error", err)
			continue
		}
		loaded++
	}

	r.RebuildGroups()
	slog.Info("spawners loaded", "count", loaded, "records", len(recs))
	return nil
}

func (r *Registry) addFromRecord(rec Record) error {
	pos, err := model.ParseStoreKey(rec.Key)
	if err != nil {
		return fmt.Errorf("parsing key: %w", err)
	}

	entries, err := r.codec.Parse(rec.Data)
	if err != nil {
		slog.Warn("entry tokens dropped", "key", rec.Key, "error", err)
	}
	if dups := model.DuplicateKeys(entries); len(dups) > 0 {
		slog.Warn("duplicate entry keys in record", "key", rec.Key, "duplicates", fmt.Sprint(dups))
	}

	props, err := propsFromRecord(rec.Properties)
	if err != nil {
		slog.Warn("spawner properties defaulted", "key", rec.Key, "error", err)
	}

	mode, err := model.ParseDisplayMode(rec.DisplayMode)
	if err != nil {
		slog.Warn("display mode defaulted", "key", rec.Key, "error", err)
		mode = model.DisplayName
	}

	s := NewSpawner(pos, entries, r.deps)
	s.applySnapshot(props, rec.Visible, mode)

	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, exists := r.byPos[pos]; exists {
		slog.Warn("duplicate spawner record replaces earlier one", "spawner", prev)
	}
	r.spawners[s.id] = s
	r.byPos[pos] = s.id
	return nil
}

// Create validates data strictly and registers a new spawner at pos. A
// single malformed token rejects the whole request, so a committed spawner
// never carries a partial population.
func (r *Registry) Create(ctx context.Context, pos model.BlockPos, data string, props Properties) (*Spawner, error) {
	entries, err := r.codec.ParseStrict(data)
	if err != nil {
		return nil, err
	}
	if dups := model.DuplicateKeys(entries); len(dups) > 0 {
		slog.Warn("duplicate entry keys", "pos", pos.String(), "duplicates", fmt.Sprint(dups))
	}

	s := NewSpawner(pos, entries, r.deps)
	s.applySnapshot(props, true, model.DisplayName)

	r.mu.Lock()
	if _, exists := r.byPos[pos]; exists {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrSpawnerExists, pos)
	}
	r.spawners[s.id] = s
	r.byPos[pos] = s.id
	if props.Group != "" {
		r.groups[props.Group] = append(r.groups[props.Group], s.id)
	}
	r.mu.Unlock()

	if err := r.store.Save(ctx, r.record(s)); err != nil {
		// Kept live; the periodic persist pass retries.
		slog.Warn("persisting new spawner failed", "spawner", s.id, "error", err)
	}

	slog.Info("spawner created", "spawner", s.id, "entries", len(entries))
	return s, nil
}

// CreateFromTemplate instantiates a spawner from the named template.
func (r *Registry) CreateFromTemplate(ctx context.Context, pos model.BlockPos, name string) (*Spawner, error) {
	data, ok := TemplateData(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTemplate, name)
	}
	return r.Create(ctx, pos, data, Properties{DisplayName: name})
}

// Remove despawns a spawner's units, drops it from all indices and deletes
// its snapshot record.
func (r *Registry) Remove(ctx context.Context, pos model.BlockPos) error {
	r.mu.Lock()
	id, ok := r.byPos[pos]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrSpawnerNotFound, pos)
	}
	s := r.spawners[id]
	delete(r.spawners, id)
	delete(r.byPos, pos)
	r.mu.Unlock()

	s.Reset()
	r.deps.Display.RemoveLabel(id)

	if err := r.store.Delete(ctx, pos.StoreKey()); err != nil {
		return fmt.Errorf("deleting spawner record %s: %w", pos.StoreKey(), err)
	}
	slog.Info("spawner removed", "spawner", id)
	return nil
}

// Get returns a spawner by its registry id.
func (r *Registry) Get(id string) (*Spawner, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.spawners[id]
	return s, ok
}

// GetAt returns the spawner anchored at the given block.
func (r *Registry) GetAt(pos model.BlockPos) (*Spawner, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byPos[pos]
	if !ok {
		return nil, false
	}
	return r.spawners[id], true
}

// GetAtLocation resolves an exact world location to a spawner through its
// containing block. Raw locations are never map keys.
func (r *Registry) GetAtLocation(loc model.Location) (*Spawner, bool) {
	return r.GetAt(loc.Block())
}

// All returns every spawner sorted by id.
func (r *Registry) All() []*Spawner {
	out := r.snapshot()
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// snapshot returns the spawner set in map order, for loops that do not need
// deterministic ordering.
func (r *Registry) snapshot() []*Spawner {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Spawner, 0, len(r.spawners))
	for _, s := range r.spawners {
		out = append(out, s)
	}
	return out
}

// ByGroup returns the spawners currently indexed under group.
func (r *Registry) ByGroup(group string) []*Spawner {
	r.mu.RLock()
	ids := append([]string(nil), r.groups[group]...)
	r.mu.RUnlock()

	out := make([]*Spawner, 0, len(ids))
	for _, id := range ids {
		if s, ok := r.Get(id); ok {
			out = append(out, s)
		}
	}
	return out
}

// Groups returns the known group names sorted.
func (r *Registry) Groups() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.groups))
	for name := range r.groups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Near returns spawners in loc's world within radius of it.
func (r *Registry) Near(loc model.Location, radius float64) []*Spawner {
	limit := radius * radius
	var out []*Spawner
	for _, s := range r.All() {
		anchor := s.Pos().Center()
		if anchor.World != loc.World {
			continue
		}
		if anchor.DistanceSquared(loc) <= limit {
			out = append(out, s)
		}
	}
	return out
}

// Count returns the number of registered spawners.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.spawners)
}

// Run drives the registry until ctx is canceled: spawn scheduling every
// tick, plus slower persist, stale-sweep and group-rebuild passes.
func (r *Registry) Run(ctx context.Context) error {
	tick := time.NewTicker(r.cfg.TickInterval)
	defer tick.Stop()
	persist := time.NewTicker(r.cfg.PersistInterval)
	defer persist.Stop()
	sweep := time.NewTicker(r.cfg.SweepInterval)
	defer sweep.Stop()
	regroup := time.NewTicker(r.cfg.GroupRebuildInterval)
	defer regroup.Stop()

	slog.Info("spawn registry started",
		"spawners", r.Count(),
		"tick", r.cfg.TickInterval,
		"persist", r.cfg.PersistInterval)

	for {
		select {
		case <-ctx.Done():
			slog.Info("spawn registry stopping")
			return ctx.Err()

		case now := <-tick.C:
			r.tick(ctx, now)

		case <-persist.C:
			_ = r.PersistAll(ctx)

		case <-sweep.C:
			r.sweepStale()

		case <-regroup.C:
			r.RebuildGroups()
		}
	}
}

// tick runs one scheduling cycle. Respawn delivery runs before initial fill,
// and a spawner with outstanding respawns skips SpawnMissing entirely, so
// the fill path cannot race the respawn path. Failures are per-spawner: one
// bad spawner never stops the cycle.
func (r *Registry) tick(ctx context.Context, now time.Time) {
	for _, s := range r.snapshot() {
		if s.HasPendingRespawns() {
			if _, err := s.CheckRespawn(ctx, now); err != nil {
				slog.Error("respawn attempt failed", "spawner", s.ID(), "error", err)
			}
			continue
		}
		if _, err := s.SpawnMissing(ctx, now); err != nil {
			slog.Error("spawn attempt failed", "spawner", s.ID(), "error", err)
		}
	}
}

// PersistAll snapshots every spawner to the store. A failed write is logged
// and retried once; persistence failures never propagate into the tick loop.
func (r *Registry) PersistAll(ctx context.Context) error {
	recs := r.records()
	err := r.store.SaveAll(ctx, recs)
	if err != nil {
		slog.Error("persisting spawners failed, retrying", "count", len(recs), "error", err)
		if err = r.store.SaveAll(ctx, recs); err != nil {
			slog.Error("persisting spawners failed after retry", "error", err)
			return fmt.Errorf("persisting %d spawners: %w", len(recs), err)
		}
	}
	slog.Debug("spawners persisted", "count", len(recs))
	return nil
}

func (r *Registry) records() []Record {
	spawners := r.All()
	recs := make([]Record, 0, len(spawners))
	for _, s := range spawners {
		recs = append(recs, r.record(s))
	}
	return recs
}

func (r *Registry) record(s *Spawner) Record {
	return Record{
		Key:         s.Pos().StoreKey(),
		Data:        r.codec.Format(s.Entries()),
		Visible:     s.Visible(),
		DisplayMode: int(s.DisplayMode()),
		Properties:  recordProps(s.Props()),
	}
}

func (r *Registry) sweepStale() {
	total := 0
	for _, s := range r.snapshot() {
		total += s.SweepStale()
	}
	if total > 0 {
		slog.Info("stale unit handles swept", "count", total)
	}
}

// RebuildGroups re-derives the group index from each spawner's group
// property. The index is never the source of truth.
func (r *Registry) RebuildGroups() {
	built := make(map[string][]string)
	for _, s := range r.All() {
		g := s.Props().Group
		if g == "" {
			continue
		}
		built[g] = append(built[g], s.ID())
	}

	r.mu.Lock()
	r.groups = built
	r.mu.Unlock()
}

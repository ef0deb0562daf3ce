package spawn

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/udisondev/spawnkeep/internal/model"
)

// ErrWorldUnavailable classifies transient factory and world failures: the
// attempt is skipped and retried on a later cycle.
var ErrWorldUnavailable = errors.New("world unavailable")

// EntityFactory creates and destroys live units in the world.
type EntityFactory interface {
	Spawn(ctx context.Context, loc model.Location, species string, tier int, elite bool) (model.UnitID, error)
	Remove(id model.UnitID)
	Exists(id model.UnitID) bool
}

// WorldQuery answers environment questions a spawner gates on.
type WorldQuery interface {
	IsRegionLoaded(pos model.BlockPos) bool
	IsObserverNearby(loc model.Location, radius float64) bool
	CurrentHour(world string) int
	CurrentWeather(world string) model.Weather
	IsObstructed(loc model.Location) bool
}

// DifficultyDelay computes respawn delays and acts as the global respawn
// cooldown authority, independent of per-spawner queues.
type DifficultyDelay interface {
	ComputeDelay(tier int, elite bool) time.Duration
	CanRespawnNow(key model.EntryKey) bool
	RecordSpawn(key model.EntryKey, now time.Time)
}

// Display renders spawner labels. Best-effort: implementations log failures,
// never return them.
type Display interface {
	UpsertLabel(id string, loc model.Location, lines []string)
	RemoveLabel(id string)
}

// UnitTracker maintains the unit → owning-spawner index so death
// notifications can be routed. Implemented by the Registry.
type UnitTracker interface {
	Track(id model.UnitID, s *Spawner)
	Untrack(id model.UnitID)
}

// Deps bundles the collaborators and registry-wide defaults every spawner
// shares.
type Deps struct {
	Factory EntityFactory
	World   WorldQuery
	Delays  DifficultyDelay
	Display Display
	Tracker UnitTracker

	DefaultCapacity        int
	DefaultDetectionRadius float64
}

// upProbeSteps is how far a jittered spawn point probes upward for a clear
// cell before falling back to one unit above the anchor.
const upProbeSteps = 3

// Spawner maintains one location's population: its entry list, live units,
// pending respawns and display state.
//
// Mutation happens on the registry tick goroutine; OnUnitRemoved may arrive
// from any goroutine and read-only queries run concurrently, so all state is
// guarded by mu.
type Spawner struct {
	id   string
	pos  model.BlockPos
	deps Deps

	mu          sync.RWMutex
	entries     []model.SpawnEntry
	props       Properties
	visible     bool
	displayMode model.DisplayMode
	active      map[model.UnitID]model.ActiveUnit
	pending     respawnQueue

	// Lifetime metrics, zeroed only by Reset. Respawned units count in both
	// spawnedTotal and respawnedTotal.
	spawnedTotal   atomic.Uint64
	killedTotal    atomic.Uint64
	respawnedTotal atomic.Uint64
}

// NewSpawner creates a spawner anchored at pos with the given population.
func NewSpawner(pos model.BlockPos, entries []model.SpawnEntry, deps Deps) *Spawner {
	s := &Spawner{
		id:      pos.ID(),
		pos:     pos,
		deps:    deps,
		entries: append([]model.SpawnEntry(nil), entries...),
		visible: true,
		active:  make(map[model.UnitID]model.ActiveUnit),
	}
	return s
}

// ID returns the stable registry key ("world_x_y_z").
func (s *Spawner) ID() string { return s.id }

// Pos returns the anchor block.
func (s *Spawner) Pos() model.BlockPos { return s.pos }

// SpawnMissing tops the population up toward its desired counts. It fails
// closed: if the region is unloaded, the time window or weather restriction
// does not hold, or no observer is in detection range, nothing spawns and
// nil is returned. A non-nil error means the entity factory failed; units
// spawned before the failure stay counted.
func (s *Spawner) SpawnMissing(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.entries) == 0 {
		return 0, nil
	}
	if !s.gateOpenLocked(now) {
		return 0, nil
	}

	slots := s.freeSlotsLocked()
	if slots <= 0 {
		return 0, nil
	}

	// Spawn the largest deficit first; ties keep declaration order.
	missing := s.missingCountsLocked()
	spawned := 0
	for ; slots > 0; slots-- {
		idx := -1
		for i, m := range missing {
			if m > 0 && (idx < 0 || m > missing[idx]) {
				idx = i
			}
		}
		if idx < 0 {
			break
		}
		if err := s.spawnOneLocked(ctx, s.entries[idx], now); err != nil {
			if spawned > 0 {
				s.refreshDisplayLocked()
			}
			return spawned, err
		}
		missing[idx]--
		spawned++
	}

	if spawned > 0 {
		s.refreshDisplayLocked()
		slog.Debug("population topped up",
			"spawner", s.id,
			"spawned", spawned,
			"live", len(s.active),
			"pending", s.pending.Len())
	}
	return spawned, nil
}

// OnUnitRemoved handles a death notification. The unit moves from the active
// set to the pending-respawn queue with a delay from the difficulty
// collaborator. Returns false if the unit is not tracked here.
func (s *Spawner) OnUnitRemoved(id model.UnitID, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	unit, ok := s.active[id]
	if !ok {
		return false
	}
	delete(s.active, id)
	s.deps.Tracker.Untrack(id)
	s.killedTotal.Add(1)

	delay := s.deps.Delays.ComputeDelay(unit.Tier, unit.Elite)
	unit.RespawnAt = now.Add(delay)
	heap.Push(&s.pending, unit)

	s.refreshDisplayLocked()
	slog.Debug("respawn armed",
		"spawner", s.id,
		"unitID", id,
		"key", unit.Key().String(),
		"delay", delay)
	return true
}

// SweepStale drops active units whose handles no longer resolve in the world
// (despawned without a death notification). Swept units are not queued for
// respawn; the next SpawnMissing pass refills them.
func (s *Spawner) SweepStale() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id := range s.active {
		if s.deps.Factory.Exists(id) {
			continue
		}
		delete(s.active, id)
		s.deps.Tracker.Untrack(id)
		removed++
	}
	if removed > 0 {
		s.refreshDisplayLocked()
		slog.Debug("stale units swept", "spawner", s.id, "count", removed)
	}
	return removed
}

// Reset despawns all live units, clears pending respawns and zeroes metrics.
// A pending respawn popped after Reset cannot fire: the queue is emptied
// under the same lock, so there is no straggler to race.
func (s *Spawner) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id := range s.active {
		s.deps.Tracker.Untrack(id)
		s.deps.Factory.Remove(id)
	}
	clear(s.active)
	s.pending = s.pending[:0]
	s.spawnedTotal.Store(0)
	s.killedTotal.Store(0)
	s.respawnedTotal.Store(0)

	s.refreshDisplayLocked()
	slog.Info("spawner reset", "spawner", s.id)
}

// applySnapshot restores persisted properties and display state in one step.
func (s *Spawner) applySnapshot(props Properties, visible bool, mode model.DisplayMode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.props = props
	s.visible = visible
	s.displayMode = mode
	if s.visible {
		s.refreshDisplayLocked()
	}
}

// spawnOneLocked creates one live unit for entry. Caller holds mu.
func (s *Spawner) spawnOneLocked(ctx context.Context, e model.SpawnEntry, now time.Time) error {
	loc := s.pickLocationLocked()
	id, err := s.deps.Factory.Spawn(ctx, loc, e.Species, e.Tier, e.Elite)
	if err != nil {
		return fmt.Errorf("%w: spawning %s at %s: %w", ErrWorldUnavailable, e.Key(), s.pos, err)
	}

	s.active[id] = model.ActiveUnit{ID: id, Species: e.Species, Tier: e.Tier, Elite: e.Elite}
	s.deps.Tracker.Track(id, s)
	s.deps.Delays.RecordSpawn(e.Key(), now)
	s.spawnedTotal.Add(1)
	return nil
}

// pickLocationLocked jitters a candidate within the configured ±radius box.
// An obstructed candidate probes upward up to upProbeSteps cells; if all are
// solid the unit lands one cell above the anchor.
func (s *Spawner) pickLocationLocked() model.Location {
	anchor := s.pos.Center()
	rx, ry, rz := s.props.RadiusX, s.props.RadiusY, s.props.RadiusZ
	if rx == 0 && ry == 0 && rz == 0 {
		return anchor
	}

	cand := anchor.WithOffset(jitter(rx), jitter(ry), jitter(rz))
	if !s.deps.World.IsObstructed(cand) {
		return cand
	}
	for i := 1; i <= upProbeSteps; i++ {
		probe := cand.WithOffset(0, float64(i), 0)
		if !s.deps.World.IsObstructed(probe) {
			return probe
		}
	}
	return anchor.WithOffset(0, 1, 0)
}

func jitter(radius float64) float64 {
	if radius <= 0 {
		return 0
	}
	return (rand.Float64()*2 - 1) * radius
}

// gateOpenLocked checks region load state, time window, weather restriction
// and observer presence. Caller holds mu.
func (s *Spawner) gateOpenLocked(now time.Time) bool {
	w := s.deps.World
	if !w.IsRegionLoaded(s.pos) {
		return false
	}
	if !s.props.TimeWindow.Contains(w.CurrentHour(s.pos.World)) {
		return false
	}
	if s.props.Weather != nil && w.CurrentWeather(s.pos.World) != *s.props.Weather {
		return false
	}
	if !w.IsObserverNearby(s.pos.Center(), s.detectionRadiusLocked()) {
		return false
	}
	return true
}

func (s *Spawner) freeSlotsLocked() int {
	limit := min(s.effectiveCapacityLocked(), model.DesiredTotal(s.entries))
	return limit - (len(s.active) + s.pending.Len())
}

func (s *Spawner) missingCountsLocked() []int {
	missing := make([]int, len(s.entries))
	for i, e := range s.entries {
		if m := e.Count - s.countForKeyLocked(e.Key()); m > 0 {
			missing[i] = m
		}
	}
	return missing
}

// countForKeyLocked returns live plus pending units for one entry key.
func (s *Spawner) countForKeyLocked(key model.EntryKey) int {
	n := 0
	for _, u := range s.active {
		if u.Key() == key {
			n++
		}
	}
	return n + s.pending.countForKey(key)
}

func (s *Spawner) entryForLocked(key model.EntryKey) (model.SpawnEntry, bool) {
	for _, e := range s.entries {
		if e.Key() == key {
			return e, true
		}
	}
	return model.SpawnEntry{}, false
}

func (s *Spawner) effectiveCapacityLocked() int {
	if s.props.Capacity > 0 {
		return s.props.Capacity
	}
	return s.deps.DefaultCapacity
}

func (s *Spawner) detectionRadiusLocked() float64 {
	if s.props.DetectionRadius > 0 {
		return s.props.DetectionRadius
	}
	return s.deps.DefaultDetectionRadius
}

// --- Configuration setters ---

// SetEntries replaces the population declaration. Live units of removed
// keys stay until killed or swept; their pending respawns are dropped when
// popped.
func (s *Spawner) SetEntries(entries []model.SpawnEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append([]model.SpawnEntry(nil), entries...)
	s.refreshDisplayLocked()
}

// SetVisible toggles the display label.
func (s *Spawner) SetVisible(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.visible = v
	if v {
		s.refreshDisplayLocked()
	} else {
		s.deps.Display.RemoveLabel(s.id)
	}
}

// SetDisplayMode selects how much detail the label shows.
func (s *Spawner) SetDisplayMode(m model.DisplayMode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.displayMode = m
	s.refreshDisplayLocked()
}

// SetGroup assigns the grouping name used by the registry's derived index.
func (s *Spawner) SetGroup(group string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.props.Group = group
}

// SetDisplayName overrides the label title.
func (s *Spawner) SetDisplayName(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.props.DisplayName = name
	s.refreshDisplayLocked()
}

// SetCapacityOverride caps live+pending units; n <= 0 restores the registry
// default.
func (s *Spawner) SetCapacityOverride(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n < 0 {
		n = 0
	}
	s.props.Capacity = n
}

// SetDetectionRadius overrides the observer detection radius; r <= 0
// restores the registry default.
func (s *Spawner) SetDetectionRadius(r float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r < 0 {
		r = 0
	}
	s.props.DetectionRadius = r
}

// SetTimeWindow restricts spawning to a time-of-day window.
func (s *Spawner) SetTimeWindow(w model.TimeWindow) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.props.TimeWindow = w
}

// SetWeather restricts spawning to one weather state; nil allows any.
func (s *Spawner) SetWeather(w *model.Weather) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.props.Weather = w
}

// SetJitterRadius sets the ±offset box for spawn points. Zero on all axes
// spawns exactly at the anchor center.
func (s *Spawner) SetJitterRadius(x, y, z float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if x < 0 {
		x = 0
	}
	if y < 0 {
		y = 0
	}
	if z < 0 {
		z = 0
	}
	s.props.RadiusX, s.props.RadiusY, s.props.RadiusZ = x, y, z
}

// --- Read-only queries ---

// Entries returns a copy of the population declaration.
func (s *Spawner) Entries() []model.SpawnEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.SpawnEntry(nil), s.entries...)
}

// Props returns a copy of the configurable properties.
func (s *Spawner) Props() Properties {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.props
}

// Visible reports whether the display label is enabled.
func (s *Spawner) Visible() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.visible
}

// DisplayMode returns the current label detail level.
func (s *Spawner) DisplayMode() model.DisplayMode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.displayMode
}

// LiveCount returns the number of active units.
func (s *Spawner) LiveCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.active)
}

// DesiredTotal returns the sum of desired counts over all entries.
func (s *Spawner) DesiredTotal() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return model.DesiredTotal(s.entries)
}

// EffectiveCapacity returns the active capacity cap (override or default).
func (s *Spawner) EffectiveCapacity() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.effectiveCapacityLocked()
}

// Owns reports whether the given unit is in the active set.
func (s *Spawner) Owns(id model.UnitID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.active[id]
	return ok
}

// Status is a consistent point-in-time snapshot for info displays.
type Status struct {
	ID             string
	Pos            model.BlockPos
	Entries        []model.SpawnEntry
	Live           int
	Pending        int
	Capacity       int
	DesiredTotal   int
	Visible        bool
	DisplayMode    model.DisplayMode
	Group          string
	DisplayName    string
	SpawnedTotal   uint64
	KilledTotal    uint64
	RespawnedTotal uint64
}

// Status snapshots the spawner under one read lock.
func (s *Spawner) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Status{
		ID:             s.id,
		Pos:            s.pos,
		Entries:        append([]model.SpawnEntry(nil), s.entries...),
		Live:           len(s.active),
		Pending:        s.pending.Len(),
		Capacity:       s.effectiveCapacityLocked(),
		DesiredTotal:   model.DesiredTotal(s.entries),
		Visible:        s.visible,
		DisplayMode:    s.displayMode,
		Group:          s.props.Group,
		DisplayName:    s.props.DisplayName,
		SpawnedTotal:   s.spawnedTotal.Load(),
		KilledTotal:    s.killedTotal.Load(),
		RespawnedTotal: s.respawnedTotal.Load(),
	}
}

// --- Display ---

func (s *Spawner) refreshDisplayLocked() {
	if !s.visible {
		return
	}
	s.deps.Display.UpsertLabel(s.id, s.pos.Center(), s.displayLinesLocked())
}

func (s *Spawner) displayLinesLocked() []string {
	name := s.props.DisplayName
	if name == "" {
		name = "Spawner"
	}
	lines := []string{name}
	if s.displayMode >= model.DisplayCounts {
		lines = append(lines, fmt.Sprintf("%d/%d live, %d pending",
			len(s.active), model.DesiredTotal(s.entries), s.pending.Len()))
	}
	if s.displayMode >= model.DisplayFull {
		for _, e := range s.entries {
			lines = append(lines, e.String())
		}
	}
	return lines
}

// Package world holds the in-process world simulation the spawn core runs
// against: named world instances with region load state, observers, weather
// and a time-of-day clock, plus the unit factory.
package world

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/udisondev/spawnkeep/internal/model"
)

var ErrUnknownWorld = errors.New("unknown world")

// RegionSize is the block edge length of one region (chunk).
const RegionSize = 16

type regionKey struct {
	X, Z int
}

// regionOf maps a block to its region. Right shift floors negative
// coordinates, so block -1 lands in region -1.
func regionOf(pos model.BlockPos) regionKey {
	return regionKey{X: pos.X >> 4, Z: pos.Z >> 4}
}

type instance struct {
	hour          int
	weather       model.Weather
	defaultLoaded bool
	regions       map[regionKey]bool      // explicit overrides of defaultLoaded
	observers     map[string]model.Location
	solid         map[model.BlockPos]struct{}
}

func newInstance() *instance {
	return &instance{
		hour:          12,
		weather:       model.WeatherClear,
		defaultLoaded: true,
		regions:       make(map[regionKey]bool),
		observers:     make(map[string]model.Location),
		solid:         make(map[model.BlockPos]struct{}),
	}
}

// World is the explicit top-level world state, constructed by the
// composition root and passed to collaborators. Queries against a world
// name that was never added fail closed: regions count as unloaded and no
// observers are near.
type World struct {
	mu        sync.RWMutex
	instances map[string]*instance
}

// New creates a World containing the named instances.
func New(names ...string) *World {
	w := &World{instances: make(map[string]*instance, len(names))}
	for _, name := range names {
		w.instances[name] = newInstance()
	}
	return w
}

// AddWorld registers a world instance. Adding an existing name is a no-op.
func (w *World) AddWorld(name string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.instances[name]; !ok {
		w.instances[name] = newInstance()
	}
}

// HasWorld reports whether the named instance exists.
func (w *World) HasWorld(name string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	_, ok := w.instances[name]
	return ok
}

// Worlds returns the instance names sorted.
func (w *World) Worlds() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	names := make([]string, 0, len(w.instances))
	for name := range w.instances {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SetHour sets a world's time of day, hour in [0,23].
func (w *World) SetHour(name string, hour int) error {
	if hour < 0 || hour > 23 {
		return fmt.Errorf("hour %d out of range [0,23]", hour)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	inst, ok := w.instances[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownWorld, name)
	}
	inst.hour = hour
	return nil
}

// CurrentHour returns a world's hour; unknown worlds read as noon.
func (w *World) CurrentHour(name string) int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if inst, ok := w.instances[name]; ok {
		return inst.hour
	}
	return 12
}

// SetWeather sets a world's weather state.
func (w *World) SetWeather(name string, weather model.Weather) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	inst, ok := w.instances[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownWorld, name)
	}
	inst.weather = weather
	return nil
}

// CurrentWeather returns a world's weather; unknown worlds read as clear.
func (w *World) CurrentWeather(name string) model.Weather {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if inst, ok := w.instances[name]; ok {
		return inst.weather
	}
	return model.WeatherClear
}

// SetRegionLoaded overrides the load state of one region.
func (w *World) SetRegionLoaded(name string, rx, rz int, loaded bool) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	inst, ok := w.instances[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownWorld, name)
	}
	inst.regions[regionKey{X: rx, Z: rz}] = loaded
	return nil
}

// SetDefaultRegionLoaded sets the fallback load state for regions without an
// explicit override. New instances default to loaded.
func (w *World) SetDefaultRegionLoaded(name string, loaded bool) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	inst, ok := w.instances[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownWorld, name)
	}
	inst.defaultLoaded = loaded
	return nil
}

// IsRegionLoaded reports whether the region containing pos is loaded.
// Unknown worlds are never loaded.
func (w *World) IsRegionLoaded(pos model.BlockPos) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	inst, ok := w.instances[pos.World]
	if !ok {
		return false
	}
	if loaded, ok := inst.regions[regionOf(pos)]; ok {
		return loaded
	}
	return inst.defaultLoaded
}

// UpsertObserver places a named observer (a player) at loc, moving it if it
// already exists anywhere.
func (w *World) UpsertObserver(name string, loc model.Location) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	inst, ok := w.instances[loc.World]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownWorld, loc.World)
	}
	// Drop a previous placement in another world.
	for _, other := range w.instances {
		delete(other.observers, name)
	}
	inst.observers[name] = loc
	return nil
}

// RemoveObserver deletes an observer from every world.
func (w *World) RemoveObserver(name string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, inst := range w.instances {
		delete(inst.observers, name)
	}
}

// IsObserverNearby reports whether any observer in loc's world is within
// radius of it.
func (w *World) IsObserverNearby(loc model.Location, radius float64) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	inst, ok := w.instances[loc.World]
	if !ok {
		return false
	}
	limit := radius * radius
	for _, obs := range inst.observers {
		if obs.DistanceSquared(loc) <= limit {
			return true
		}
	}
	return false
}

// ObserverCount returns observers across all worlds.
func (w *World) ObserverCount() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	n := 0
	for _, inst := range w.instances {
		n += len(inst.observers)
	}
	return n
}

// SetObstructed marks a block cell solid or clear.
func (w *World) SetObstructed(pos model.BlockPos, solid bool) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	inst, ok := w.instances[pos.World]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownWorld, pos.World)
	}
	if solid {
		inst.solid[pos] = struct{}{}
	} else {
		delete(inst.solid, pos)
	}
	return nil
}

// IsObstructed reports whether loc falls inside a solid block cell.
func (w *World) IsObstructed(loc model.Location) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	inst, ok := w.instances[loc.World]
	if !ok {
		return false
	}
	_, solid := inst.solid[loc.Block()]
	return solid
}

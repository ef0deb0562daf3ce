package world

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/udisondev/spawnkeep/internal/model"
)

// unitIDBase starts the unit ID range well above zero so a zero UnitID is
// always invalid and never collides with other handle spaces.
const unitIDBase = 0x20000000

// Unit is one live entity created by the factory.
type Unit struct {
	ID      model.UnitID
	Species string
	Tier    int
	Elite   bool
	Loc     model.Location
}

// Factory creates and destroys live units. IDs are unique per process via
// an atomic counter.
type Factory struct {
	world *World

	units  sync.Map // map[model.UnitID]*Unit — unitID → unit
	nextID atomic.Uint32
	count  atomic.Int32 // cached live count (O(1) access)
}

// NewFactory creates a factory backed by w.
func NewFactory(w *World) *Factory {
	f := &Factory{world: w}
	f.nextID.Store(unitIDBase)
	return f
}

// Spawn creates a live unit at loc. Fails when loc's world does not exist
// or its region is not loaded; such failures are transient and the caller
// retries on a later cycle.
func (f *Factory) Spawn(_ context.Context, loc model.Location, species string, tier int, elite bool) (model.UnitID, error) {
	if !f.world.HasWorld(loc.World) {
		return 0, fmt.Errorf("%w: %q", ErrUnknownWorld, loc.World)
	}
	if !f.world.IsRegionLoaded(loc.Block()) {
		return 0, fmt.Errorf("region at %s not loaded", loc.Block())
	}

	id := model.UnitID(f.nextID.Add(1))
	f.units.Store(id, &Unit{
		ID:      id,
		Species: species,
		Tier:    tier,
		Elite:   elite,
		Loc:     loc,
	})
	f.count.Add(1)

	slog.Debug("unit created",
		"unitID", id,
		"species", species,
		"tier", tier,
		"elite", elite,
		"location", loc)
	return id, nil
}

// Remove destroys a unit. Unknown ids are ignored.
func (f *Factory) Remove(id model.UnitID) {
	if _, ok := f.units.LoadAndDelete(id); !ok {
		return
	}
	f.count.Add(-1)
	slog.Debug("unit destroyed", "unitID", id)
}

// Exists reports whether the unit handle still resolves.
func (f *Factory) Exists(id model.UnitID) bool {
	_, ok := f.units.Load(id)
	return ok
}

// Get returns a live unit by id.
func (f *Factory) Get(id model.UnitID) (*Unit, bool) {
	value, ok := f.units.Load(id)
	if !ok {
		return nil, false
	}
	return value.(*Unit), true
}

// Count returns the number of live units (O(1) cached count).
func (f *Factory) Count() int {
	return int(f.count.Load())
}

// Units returns all live units in no particular order.
func (f *Factory) Units() []*Unit {
	units := make([]*Unit, 0, f.Count())
	f.units.Range(func(_, value any) bool {
		units = append(units, value.(*Unit))
		return true
	})
	return units
}

package model

import "time"

// UnitID is an opaque handle to a live unit issued by the entity
// factory. Zero is never a valid handle.
type UnitID uint32

// ActiveUnit is one tracked unit of a spawner: either currently alive
// (RespawnAt is zero) or removed and waiting for its replacement
// (RespawnAt holds the earliest time the replacement may spawn).
type ActiveUnit struct {
	ID      UnitID
	Species string
	Tier    int
	Elite   bool

	// RespawnAt is unset while the unit is alive. Set once on removal
	// to now + computed delay; never moves backwards.
	RespawnAt time.Time
}

// Key returns the entry key this unit was spawned for.
func (u ActiveUnit) Key() EntryKey {
	return EntryKey{Species: u.Species, Tier: u.Tier, Elite: u.Elite}
}

// IsPendingRespawn reports whether the unit has been removed and its
// replacement is scheduled.
func (u ActiveUnit) IsPendingRespawn() bool {
	return !u.RespawnAt.IsZero()
}

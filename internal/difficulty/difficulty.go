// Package difficulty computes respawn delays from unit tier and enforces a
// global per-entry-key respawn cooldown, independent of per-spawner queues.
package difficulty

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/udisondev/spawnkeep/internal/model"
)

// DefaultCooldown is the minimum spacing between consecutive respawns of the
// same entry key across all spawners.
const DefaultCooldown = 2 * time.Second

// eliteFactor stretches the rolled delay for elite units.
const eliteFactor = 2

// Band bounds the random respawn delay for one tier.
type Band struct {
	Min time.Duration
	Max time.Duration
}

// delayBands maps tier → delay band. Index 0 unused; higher tiers take
// longer to return.
var delayBands = [model.MaxTier + 1]Band{
	1: {Min: 8 * time.Second, Max: 15 * time.Second},
	2: {Min: 15 * time.Second, Max: 30 * time.Second},
	3: {Min: 30 * time.Second, Max: 60 * time.Second},
	4: {Min: 1 * time.Minute, Max: 2 * time.Minute},
	5: {Min: 2 * time.Minute, Max: 4 * time.Minute},
	6: {Min: 5 * time.Minute, Max: 10 * time.Minute},
}

// Table rolls respawn delays and tracks the last spawn time per entry key.
// Safe for concurrent use.
type Table struct {
	cooldown time.Duration

	mu        sync.Mutex
	lastSpawn map[model.EntryKey]time.Time // entry key → last spawn time
}

// New builds a Table with the given global cooldown. Non-positive values
// fall back to DefaultCooldown.
func New(cooldown time.Duration) *Table {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Table{
		cooldown:  cooldown,
		lastSpawn: make(map[model.EntryKey]time.Time),
	}
}

// ComputeDelay returns a random delay within the tier's band, doubled for
// elite units. Out-of-range tiers clamp to the nearest band.
func (t *Table) ComputeDelay(tier int, elite bool) time.Duration {
	if tier < model.MinTier {
		tier = model.MinTier
	}
	if tier > model.MaxTier {
		tier = model.MaxTier
	}
	band := delayBands[tier]

	delay := band.Min
	if band.Max > band.Min {
		delay += time.Duration(rand.Int64N(int64(band.Max-band.Min) + 1))
	}
	if elite {
		delay *= eliteFactor
	}
	return delay
}

// CanRespawnNow reports whether the global cooldown for key has elapsed.
// Keys that never spawned are always admissible.
func (t *Table) CanRespawnNow(key model.EntryKey) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	last, ok := t.lastSpawn[key]
	if !ok {
		return true
	}
	return time.Since(last) >= t.cooldown
}

// RecordSpawn marks key as spawned at now, restarting its cooldown.
func (t *Table) RecordSpawn(key model.EntryKey, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastSpawn[key] = now
}

// Forget drops the cooldown record for key. Used when a spawner is reset so
// a re-initialized population is not throttled by its own history.
func (t *Table) Forget(key model.EntryKey) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.lastSpawn, key)
}

// Cooldown returns the configured global cooldown.
func (t *Table) Cooldown() time.Duration {
	return t.cooldown
}

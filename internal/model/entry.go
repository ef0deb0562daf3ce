package model

import "fmt"

// Tier bounds for spawn entries. Tier 1 is trash, tier 6 is the
// hardest regular difficulty.
const (
	MinTier = 1
	MaxTier = 6
)

// EntryKey identifies a spawn entry within a population: two entries
// with the same (species, tier, elite) describe the same kind of unit
// regardless of their desired counts.
type EntryKey struct {
	Species string
	Tier    int
	Elite   bool
}

func (k EntryKey) String() string {
	if k.Elite {
		return fmt.Sprintf("%s:%d(elite)", k.Species, k.Tier)
	}
	return fmt.Sprintf("%s:%d", k.Species, k.Tier)
}

// SpawnEntry declares one requirement of a population: keep Count
// units of Species at the given Tier (elite or not) alive.
// Immutable value type.
type SpawnEntry struct {
	Species string
	Tier    int
	Elite   bool
	Count   int
}

// NewSpawnEntry creates a spawn entry.
func NewSpawnEntry(species string, tier int, elite bool, count int) SpawnEntry {
	return SpawnEntry{Species: species, Tier: tier, Elite: elite, Count: count}
}

// Key returns the identity key of the entry. Count is excluded:
// changing the desired count does not change which entry it is.
func (e SpawnEntry) Key() EntryKey {
	return EntryKey{Species: e.Species, Tier: e.Tier, Elite: e.Elite}
}

func (e SpawnEntry) String() string {
	return fmt.Sprintf("%s x%d", e.Key(), e.Count)
}

// DesiredTotal sums the desired counts over a population.
func DesiredTotal(entries []SpawnEntry) int {
	total := 0
	for _, e := range entries {
		total += e.Count
	}
	return total
}

// DuplicateKeys returns the entry keys that appear more than once in
// the population, in first-seen order. Duplicates are a data-quality
// problem: the codec never merges them silently.
func DuplicateKeys(entries []SpawnEntry) []EntryKey {
	seen := make(map[EntryKey]int, len(entries))
	var dups []EntryKey
	for _, e := range entries {
		key := e.Key()
		seen[key]++
		if seen[key] == 2 {
			dups = append(dups, key)
		}
	}
	return dups
}

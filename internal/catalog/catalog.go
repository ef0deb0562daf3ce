// Package catalog holds the set of species spawn entries may reference.
package catalog

import (
	"sort"
	"strings"
)

// Species describes one spawnable mob kind.
type Species struct {
	Name        string // canonical identifier used in entry strings
	DisplayName string // human-readable name for labels and prompts
}

// Catalog is an immutable lookup over known species.
type Catalog struct {
	byName map[string]Species
	names  []string // sorted canonical names
}

// New builds a catalog from the given species. Duplicate names keep the
// last definition.
func New(species ...Species) *Catalog {
	c := &Catalog{byName: make(map[string]Species, len(species))}
	for _, s := range species {
		if _, ok := c.byName[s.Name]; !ok {
			c.names = append(c.names, s.Name)
		}
		c.byName[s.Name] = s
	}
	sort.Strings(c.names)
	return c
}

// Default returns the built-in species table.
func Default() *Catalog {
	return New(defaultSpecies...)
}

// IsKnown reports whether name is a catalog species. Matching is
// case-sensitive: entry strings always carry canonical lower-case names.
func (c *Catalog) IsKnown(name string) bool {
	_, ok := c.byName[name]
	return ok
}

// Get returns the species definition for name.
func (c *Catalog) Get(name string) (Species, bool) {
	s, ok := c.byName[name]
	return s, ok
}

// All returns the canonical species names in sorted order.
func (c *Catalog) All() []string {
	out := make([]string, len(c.names))
	copy(out, c.names)
	return out
}

// Len returns the number of known species.
func (c *Catalog) Len() int { return len(c.names) }

// DisplayName returns the human-readable name for a species, falling back
// to a capitalized canonical name when the species is unknown.
func (c *Catalog) DisplayName(name string) string {
	if s, ok := c.byName[name]; ok {
		return s.DisplayName
	}
	if name == "" {
		return ""
	}
	return strings.ToUpper(name[:1]) + name[1:]
}

var defaultSpecies = []Species{
	{Name: "zombie", DisplayName: "Zombie"},
	{Name: "husk", DisplayName: "Husk"},
	{Name: "drowned", DisplayName: "Drowned"},
	{Name: "skeleton", DisplayName: "Skeleton"},
	{Name: "stray", DisplayName: "Stray"},
	{Name: "wither_skeleton", DisplayName: "Wither Skeleton"},
	{Name: "spider", DisplayName: "Spider"},
	{Name: "cave_spider", DisplayName: "Cave Spider"},
	{Name: "creeper", DisplayName: "Creeper"},
	{Name: "enderman", DisplayName: "Enderman"},
	{Name: "witch", DisplayName: "Witch"},
	{Name: "slime", DisplayName: "Slime"},
	{Name: "blaze", DisplayName: "Blaze"},
	{Name: "ghast", DisplayName: "Ghast"},
	{Name: "phantom", DisplayName: "Phantom"},
	{Name: "pillager", DisplayName: "Pillager"},
	{Name: "vindicator", DisplayName: "Vindicator"},
	{Name: "evoker", DisplayName: "Evoker"},
	{Name: "ravager", DisplayName: "Ravager"},
	{Name: "piglin_brute", DisplayName: "Piglin Brute"},
	{Name: "zombified_piglin", DisplayName: "Zombified Piglin"},
	{Name: "silverfish", DisplayName: "Silverfish"},
	{Name: "vex", DisplayName: "Vex"},
	{Name: "guardian", DisplayName: "Guardian"},
}

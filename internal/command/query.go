package command

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/udisondev/spawnkeep/internal/model"
	"github.com/udisondev/spawnkeep/internal/spawn"
)

// defaultNearRadius is the //near search radius when none is given.
const defaultNearRadius = 32.0

// List handles //list [group]: one line per spawner, optionally filtered
// by group.
type List struct {
	reg *spawn.Registry
}

// NewList creates the list command handler.
func NewList(reg *spawn.Registry) *List {
	return &List{reg: reg}
}

func (c *List) Names() []string { return []string{"list"} }

func (c *List) Handle(_ context.Context, _ Operator, args []string) (string, error) {
	var spawners []*spawn.Spawner
	if len(args) >= 2 {
		spawners = c.reg.ByGroup(args[1])
		if len(spawners) == 0 {
			return fmt.Sprintf("No spawners in group %q.", args[1]), nil
		}
	} else {
		spawners = c.reg.All()
		if len(spawners) == 0 {
			return "No spawners registered.", nil
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Spawners: %d\n", len(spawners))
	for _, s := range spawners {
		b.WriteString(summaryLine(s.Status()))
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

// Near handles //near [radius]: spawners around the operator, closest
// semantics left to the registry.
type Near struct {
	reg *spawn.Registry
}

// NewNear creates the near command handler.
func NewNear(reg *spawn.Registry) *Near {
	return &Near{reg: reg}
}

func (c *Near) Names() []string { return []string{"near"} }

func (c *Near) Handle(_ context.Context, op Operator, args []string) (string, error) {
	radius := defaultNearRadius
	if len(args) >= 2 {
		r, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return "", fmt.Errorf("invalid radius %q: %w", args[1], err)
		}
		if r <= 0 {
			return "", fmt.Errorf("radius must be > 0, got %v", r)
		}
		radius = r
	}

	spawners := c.reg.Near(op.Loc, radius)
	if len(spawners) == 0 {
		return fmt.Sprintf("No spawners within %v of %s.", radius, op.Loc.Block()), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Spawners within %v: %d\n", radius, len(spawners))
	for _, s := range spawners {
		b.WriteString(summaryLine(s.Status()))
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

// Info handles //info [id]: the full status of one spawner.
type Info struct {
	reg *spawn.Registry
}

// NewInfo creates the info command handler.
func NewInfo(reg *spawn.Registry) *Info {
	return &Info{reg: reg}
}

func (c *Info) Names() []string { return []string{"info", "status"} }

func (c *Info) Handle(_ context.Context, op Operator, args []string) (string, error) {
	target, _, err := resolveTarget(c.reg, op, args[1:])
	if err != nil {
		return "", err
	}
	return formatStatus(target.Status()), nil
}

func summaryLine(st spawn.Status) string {
	line := fmt.Sprintf("%s: %d/%d live, %d pending", st.ID, st.Live, st.DesiredTotal, st.Pending)
	if st.Group != "" {
		line += " [" + st.Group + "]"
	}
	if !st.Visible {
		line += " (hidden)"
	}
	return line
}

func formatStatus(st spawn.Status) string {
	var b strings.Builder
	fmt.Fprintf(&b, "=== Spawner %s ===\n", st.ID)
	fmt.Fprintf(&b, "Anchor: %s\n", st.Pos)
	fmt.Fprintf(&b, "Entries: %s\n", entriesSummary(st.Entries))
	fmt.Fprintf(&b, "Live: %d/%d, Pending: %d, Capacity: %d\n", st.Live, st.DesiredTotal, st.Pending, st.Capacity)
	fmt.Fprintf(&b, "Visible: %v, Mode: %d\n", st.Visible, st.DisplayMode)
	fmt.Fprintf(&b, "Group: %s, Name: %s\n", orNone(st.Group), orNone(st.DisplayName))
	fmt.Fprintf(&b, "Spawned: %d, Killed: %d, Respawned: %d", st.SpawnedTotal, st.KilledTotal, st.RespawnedTotal)
	return b.String()
}

func entriesSummary(entries []model.SpawnEntry) string {
	if len(entries) == 0 {
		return "none"
	}
	parts := make([]string, len(entries))
	for i, e := range entries {
		parts[i] = e.String()
	}
	return strings.Join(parts, ", ")
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}

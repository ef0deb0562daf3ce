package command

import (
	"context"
	"fmt"

	"github.com/udisondev/spawnkeep/internal/spawn"
)

// Remove handles //remove [id]: despawns the units and deletes the spawner.
type Remove struct {
	reg *spawn.Registry
}

// NewRemove creates the remove command handler.
func NewRemove(reg *spawn.Registry) *Remove {
	return &Remove{reg: reg}
}

func (c *Remove) Names() []string { return []string{"remove", "delete"} }

func (c *Remove) Handle(ctx context.Context, op Operator, args []string) (string, error) {
	target, _, err := resolveTarget(c.reg, op, args[1:])
	if err != nil {
		return "", err
	}
	if err := c.reg.Remove(ctx, target.Pos()); err != nil {
		return "", err
	}
	return fmt.Sprintf("Spawner %s removed.", target.ID()), nil
}

// Reset handles //reset [id]: despawns live units and clears pending
// respawns, keeping the spawner registered.
type Reset struct {
	reg *spawn.Registry
}

// NewReset creates the reset command handler.
func NewReset(reg *spawn.Registry) *Reset {
	return &Reset{reg: reg}
}

func (c *Reset) Names() []string { return []string{"reset"} }

func (c *Reset) Handle(_ context.Context, op Operator, args []string) (string, error) {
	target, _, err := resolveTarget(c.reg, op, args[1:])
	if err != nil {
		return "", err
	}
	target.Reset()
	return fmt.Sprintf("Spawner %s reset.", target.ID()), nil
}

// Save handles //save: flushes every spawner to the snapshot store now.
type Save struct {
	reg *spawn.Registry
}

// NewSave creates the save command handler.
func NewSave(reg *spawn.Registry) *Save {
	return &Save{reg: reg}
}

func (c *Save) Names() []string { return []string{"save"} }

func (c *Save) Handle(ctx context.Context, _ Operator, _ []string) (string, error) {
	if err := c.reg.PersistAll(ctx); err != nil {
		return "", err
	}
	return fmt.Sprintf("Saved %d spawners.", c.reg.Count()), nil
}

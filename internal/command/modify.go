package command

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/udisondev/spawnkeep/internal/model"
	"github.com/udisondev/spawnkeep/internal/spawn"
)

// resolveTarget picks the spawner a command operates on: an explicit
// spawner id in args[0] when it matches, otherwise the spawner anchored
// at the operator's block. Returns the remaining arguments.
func resolveTarget(reg *spawn.Registry, op Operator, args []string) (*spawn.Spawner, []string, error) {
	if len(args) > 0 {
		if s, ok := reg.Get(args[0]); ok {
			return s, args[1:], nil
		}
	}
	if s, ok := reg.GetAtLocation(op.Loc); ok {
		return s, args, nil
	}
	return nil, nil, fmt.Errorf("no spawner at %s; pass a spawner id", op.Loc.Block())
}

func parseOnOff(token string) (bool, error) {
	switch strings.ToLower(token) {
	case "on", "true":
		return true, nil
	case "off", "false":
		return false, nil
	}
	return false, fmt.Errorf("want on or off, got %q", token)
}

// Visible handles //visible [id] <on|off>.
type Visible struct {
	reg *spawn.Registry
}

// NewVisible creates the visible command handler.
func NewVisible(reg *spawn.Registry) *Visible {
	return &Visible{reg: reg}
}

func (c *Visible) Names() []string { return []string{"visible"} }

func (c *Visible) Handle(_ context.Context, op Operator, args []string) (string, error) {
	target, rest, err := resolveTarget(c.reg, op, args[1:])
	if err != nil {
		return "", err
	}
	if len(rest) < 1 {
		return "", fmt.Errorf("usage: //visible [id] <on|off>")
	}
	v, err := parseOnOff(rest[0])
	if err != nil {
		return "", err
	}
	target.SetVisible(v)
	state := "hidden"
	if v {
		state = "visible"
	}
	return fmt.Sprintf("Spawner %s label %s.", target.ID(), state), nil
}

// DisplayMode handles //displaymode [id] <0|1|2>.
type DisplayMode struct {
	reg *spawn.Registry
}

// NewDisplayMode creates the displaymode command handler.
func NewDisplayMode(reg *spawn.Registry) *DisplayMode {
	return &DisplayMode{reg: reg}
}

func (c *DisplayMode) Names() []string { return []string{"displaymode", "mode"} }

func (c *DisplayMode) Handle(_ context.Context, op Operator, args []string) (string, error) {
	target, rest, err := resolveTarget(c.reg, op, args[1:])
	if err != nil {
		return "", err
	}
	if len(rest) < 1 {
		return "", fmt.Errorf("usage: //displaymode [id] <0|1|2>")
	}
	n, err := strconv.Atoi(rest[0])
	if err != nil {
		return "", fmt.Errorf("invalid display mode %q: %w", rest[0], err)
	}
	mode, err := model.ParseDisplayMode(n)
	if err != nil {
		return "", err
	}
	target.SetDisplayMode(mode)
	return fmt.Sprintf("Spawner %s display mode set to %d.", target.ID(), mode), nil
}

// Group handles //group, //group [id] <name> and //group [id] -.
// Without arguments it lists the known groups.
type Group struct {
	reg *spawn.Registry
}

// NewGroup creates the group command handler.
func NewGroup(reg *spawn.Registry) *Group {
	return &Group{reg: reg}
}

func (c *Group) Names() []string { return []string{"group"} }

func (c *Group) Handle(_ context.Context, op Operator, args []string) (string, error) {
	if len(args) < 2 {
		groups := c.reg.Groups()
		if len(groups) == 0 {
			return "No groups defined.", nil
		}
		return "Groups: " + strings.Join(groups, ", "), nil
	}

	target, rest, err := resolveTarget(c.reg, op, args[1:])
	if err != nil {
		return "", err
	}
	if len(rest) < 1 {
		return "", fmt.Errorf("usage: //group [id] <name|->")
	}

	name := rest[0]
	if name == "-" {
		name = ""
	}
	target.SetGroup(name)
	c.reg.RebuildGroups()

	if name == "" {
		return fmt.Sprintf("Spawner %s removed from its group.", target.ID()), nil
	}
	return fmt.Sprintf("Spawner %s assigned to group %q.", target.ID(), name), nil
}

// Name handles //name [id] <display name>. The name may contain spaces.
type Name struct {
	reg *spawn.Registry
}

// NewName creates the name command handler.
func NewName(reg *spawn.Registry) *Name {
	return &Name{reg: reg}
}

func (c *Name) Names() []string { return []string{"name"} }

func (c *Name) Handle(_ context.Context, op Operator, args []string) (string, error) {
	target, rest, err := resolveTarget(c.reg, op, args[1:])
	if err != nil {
		return "", err
	}
	if len(rest) < 1 {
		return "", fmt.Errorf("usage: //name [id] <display name>")
	}
	name := strings.Join(rest, " ")
	target.SetDisplayName(name)
	return fmt.Sprintf("Spawner %s named %q.", target.ID(), name), nil
}

// Capacity handles //capacity [id] <n>. Zero restores the default.
type Capacity struct {
	reg *spawn.Registry
}

// NewCapacity creates the capacity command handler.
func NewCapacity(reg *spawn.Registry) *Capacity {
	return &Capacity{reg: reg}
}

func (c *Capacity) Names() []string { return []string{"capacity"} }

func (c *Capacity) Handle(_ context.Context, op Operator, args []string) (string, error) {
	target, rest, err := resolveTarget(c.reg, op, args[1:])
	if err != nil {
		return "", err
	}
	if len(rest) < 1 {
		return "", fmt.Errorf("usage: //capacity [id] <n>")
	}
	n, err := strconv.Atoi(rest[0])
	if err != nil {
		return "", fmt.Errorf("invalid capacity %q: %w", rest[0], err)
	}
	if n < 0 {
		return "", fmt.Errorf("capacity must be >= 0, got %d", n)
	}
	target.SetCapacityOverride(n)
	if n == 0 {
		return fmt.Sprintf("Spawner %s capacity restored to default (%d).", target.ID(), target.EffectiveCapacity()), nil
	}
	return fmt.Sprintf("Spawner %s capacity set to %d.", target.ID(), n), nil
}

// Detection handles //detection [id] <radius>. Zero restores the default.
type Detection struct {
	reg *spawn.Registry
}

// NewDetection creates the detection command handler.
func NewDetection(reg *spawn.Registry) *Detection {
	return &Detection{reg: reg}
}

func (c *Detection) Names() []string { return []string{"detection"} }

func (c *Detection) Handle(_ context.Context, op Operator, args []string) (string, error) {
	target, rest, err := resolveTarget(c.reg, op, args[1:])
	if err != nil {
		return "", err
	}
	if len(rest) < 1 {
		return "", fmt.Errorf("usage: //detection [id] <radius>")
	}
	r, err := strconv.ParseFloat(rest[0], 64)
	if err != nil {
		return "", fmt.Errorf("invalid detection radius %q: %w", rest[0], err)
	}
	if r < 0 {
		return "", fmt.Errorf("detection radius must be >= 0, got %v", r)
	}
	target.SetDetectionRadius(r)
	return fmt.Sprintf("Spawner %s detection radius set to %v.", target.ID(), r), nil
}

// Time handles //time [id] <any|day|night>.
type Time struct {
	reg *spawn.Registry
}

// NewTime creates the time command handler.
func NewTime(reg *spawn.Registry) *Time {
	return &Time{reg: reg}
}

func (c *Time) Names() []string { return []string{"time"} }

func (c *Time) Handle(_ context.Context, op Operator, args []string) (string, error) {
	target, rest, err := resolveTarget(c.reg, op, args[1:])
	if err != nil {
		return "", err
	}
	if len(rest) < 1 {
		return "", fmt.Errorf("usage: //time [id] <any|day|night>")
	}
	w, err := model.ParseTimeWindow(rest[0])
	if err != nil {
		return "", err
	}
	target.SetTimeWindow(w)
	return fmt.Sprintf("Spawner %s time window set to %s.", target.ID(), w), nil
}

// Weather handles //weather [id] <any|clear|rain|storm>.
type Weather struct {
	reg *spawn.Registry
}

// NewWeather creates the weather command handler.
func NewWeather(reg *spawn.Registry) *Weather {
	return &Weather{reg: reg}
}

func (c *Weather) Names() []string { return []string{"weather"} }

func (c *Weather) Handle(_ context.Context, op Operator, args []string) (string, error) {
	target, rest, err := resolveTarget(c.reg, op, args[1:])
	if err != nil {
		return "", err
	}
	if len(rest) < 1 {
		return "", fmt.Errorf("usage: //weather [id] <any|clear|rain|storm>")
	}
	if strings.EqualFold(rest[0], "any") {
		target.SetWeather(nil)
		return fmt.Sprintf("Spawner %s weather restriction cleared.", target.ID()), nil
	}
	w, err := model.ParseWeather(rest[0])
	if err != nil {
		return "", err
	}
	target.SetWeather(&w)
	return fmt.Sprintf("Spawner %s restricted to %s weather.", target.ID(), w), nil
}

// Radius handles //radius [id] <x> <y> <z>, the spawn jitter box.
type Radius struct {
	reg *spawn.Registry
}

// NewRadius creates the radius command handler.
func NewRadius(reg *spawn.Registry) *Radius {
	return &Radius{reg: reg}
}

func (c *Radius) Names() []string { return []string{"radius"} }

func (c *Radius) Handle(_ context.Context, op Operator, args []string) (string, error) {
	target, rest, err := resolveTarget(c.reg, op, args[1:])
	if err != nil {
		return "", err
	}
	if len(rest) < 3 {
		return "", fmt.Errorf("usage: //radius [id] <x> <y> <z>")
	}
	var r [3]float64
	for i := range 3 {
		v, err := strconv.ParseFloat(rest[i], 64)
		if err != nil {
			return "", fmt.Errorf("invalid radius %q: %w", rest[i], err)
		}
		if v < 0 {
			return "", fmt.Errorf("radius must be >= 0, got %v", v)
		}
		r[i] = v
	}
	target.SetJitterRadius(r[0], r[1], r[2])
	return fmt.Sprintf("Spawner %s spawn radius set to %v %v %v.", target.ID(), r[0], r[1], r[2]), nil
}

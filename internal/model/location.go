package model

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Location is a point in a named world.
// Value type, passed by value (immutable).
type Location struct {
	World string
	X     float64
	Y     float64
	Z     float64
}

// NewLocation creates a Location with the given coordinates.
func NewLocation(world string, x, y, z float64) Location {
	return Location{World: world, X: x, Y: y, Z: z}
}

// WithOffset returns a new Location shifted by (dx, dy, dz).
func (l Location) WithOffset(dx, dy, dz float64) Location {
	l.X += dx
	l.Y += dy
	l.Z += dz
	return l
}

// Block returns the block-aligned position containing this point.
// Block coordinates are the floor of each axis, so -0.5 maps to block -1.
func (l Location) Block() BlockPos {
	return BlockPos{
		World: l.World,
		X:     int(math.Floor(l.X)),
		Y:     int(math.Floor(l.Y)),
		Z:     int(math.Floor(l.Z)),
	}
}

// DistanceSquared returns the squared distance to another point.
// No sqrt for performance; callers compare against radius*radius.
func (l Location) DistanceSquared(other Location) float64 {
	dx := l.X - other.X
	dy := l.Y - other.Y
	dz := l.Z - other.Z
	return dx*dx + dy*dy + dz*dz
}

func (l Location) String() string {
	return fmt.Sprintf("%s(%.1f, %.1f, %.1f)", l.World, l.X, l.Y, l.Z)
}

// BlockPos is a block-aligned position. It is the only type used as a
// location map key: raw floating-point locations are never compared for
// identity.
type BlockPos struct {
	World string
	X     int
	Y     int
	Z     int
}

// NewBlockPos creates a block position.
func NewBlockPos(world string, x, y, z int) BlockPos {
	return BlockPos{World: world, X: x, Y: y, Z: z}
}

// Center returns the location at the center of the block.
func (b BlockPos) Center() Location {
	return Location{
		World: b.World,
		X:     float64(b.X) + 0.5,
		Y:     float64(b.Y),
		Z:     float64(b.Z) + 0.5,
	}
}

// ID returns the stable spawner identifier derived from the block
// position: "world_x_y_z". The same block always yields the same ID,
// across restarts and reloads.
func (b BlockPos) ID() string {
	return b.World + "_" + strconv.Itoa(b.X) + "_" + strconv.Itoa(b.Y) + "_" + strconv.Itoa(b.Z)
}

// StoreKey returns the persistence key "world,x,y,z".
func (b BlockPos) StoreKey() string {
	return b.World + "," + strconv.Itoa(b.X) + "," + strconv.Itoa(b.Y) + "," + strconv.Itoa(b.Z)
}

func (b BlockPos) String() string {
	return fmt.Sprintf("%s(%d, %d, %d)", b.World, b.X, b.Y, b.Z)
}

// ParseStoreKey parses a persistence key "world,x,y,z" back into a
// block position. World names containing commas are not supported by
// the snapshot format.
func ParseStoreKey(key string) (BlockPos, error) {
	parts := strings.Split(key, ",")
	if len(parts) != 4 {
		return BlockPos{}, fmt.Errorf("store key %q: want 4 comma-separated fields, got %d", key, len(parts))
	}

	world := strings.TrimSpace(parts[0])
	if world == "" {
		return BlockPos{}, fmt.Errorf("store key %q: empty world name", key)
	}

	coords := make([]int, 3)
	for i, p := range parts[1:] {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return BlockPos{}, fmt.Errorf("store key %q: coordinate %q: %w", key, p, err)
		}
		coords[i] = v
	}

	return BlockPos{World: world, X: coords[0], Y: coords[1], Z: coords[2]}, nil
}

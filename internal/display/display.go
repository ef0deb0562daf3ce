// Package display provides label renderers for spawner markers. The real
// renderer lives outside this process; these implementations cover headless
// deployments. All methods are best-effort and never fail the caller.
package display

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/udisondev/spawnkeep/internal/model"
	"github.com/udisondev/spawnkeep/internal/spawn"
)

var (
	_ spawn.Display = (*Log)(nil)
	_ spawn.Display = Noop{}
)

// Log renders labels into the structured log and keeps the current label set
// in memory so operator commands can echo it back.
type Log struct {
	mu     sync.Mutex
	labels map[string][]string // spawner id → label lines
}

func NewLog() *Log {
	return &Log{labels: make(map[string][]string)}
}

func (d *Log) UpsertLabel(id string, loc model.Location, lines []string) {
	d.mu.Lock()
	d.labels[id] = append([]string(nil), lines...)
	d.mu.Unlock()

	slog.Debug("label upserted",
		"id", id,
		"loc", loc.String(),
		"text", strings.Join(lines, " | "))
}

func (d *Log) RemoveLabel(id string) {
	d.mu.Lock()
	_, ok := d.labels[id]
	delete(d.labels, id)
	d.mu.Unlock()

	if ok {
		slog.Debug("label removed", "id", id)
	}
}

// Label returns the current lines for id, if any.
func (d *Log) Label(id string) ([]string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	lines, ok := d.labels[id]
	if !ok {
		return nil, false
	}
	return append([]string(nil), lines...), true
}

// Count returns the number of labels currently rendered.
func (d *Log) Count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.labels)
}

// Noop discards all label operations. Wired when display is disabled.
type Noop struct{}

func (Noop) UpsertLabel(string, model.Location, []string) {}

func (Noop) RemoveLabel(string) {}

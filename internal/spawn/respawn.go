package spawn

import (
	"container/heap"
	"context"
	"log/slog"
	"time"

	"github.com/udisondev/spawnkeep/internal/model"
)

// respawnRetryDelay is the backoff applied when a ready respawn is blocked
// (gating, cooldown, capacity) and goes back into the queue.
const respawnRetryDelay = 3 * time.Second

// respawnQueue is a min-heap of removed units ordered by RespawnAt.
type respawnQueue []model.ActiveUnit

func (q respawnQueue) Len() int { return len(q) }

func (q respawnQueue) Less(i, j int) bool { return q[i].RespawnAt.Before(q[j].RespawnAt) }

func (q respawnQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *respawnQueue) Push(x any) { *q = append(*q, x.(model.ActiveUnit)) }

func (q *respawnQueue) Pop() any {
	old := *q
	n := len(old)
	unit := old[n-1]
	*q = old[:n-1]
	return unit
}

func (q respawnQueue) countForKey(key model.EntryKey) int {
	n := 0
	for _, u := range q {
		if u.Key() == key {
			n++
		}
	}
	return n
}

// CheckRespawn pops at most one ready pending respawn and attempts it,
// bounding respawn throughput to one unit per spawner per tick. The popped
// unit is dropped silently when its entry key was removed from the
// configuration or its desired count is already met; it is re-queued with a
// short backoff when the cooldown authority refuses, gating fails or the
// capacity override shrank. Returns whether a unit was spawned.
func (s *Spawner) CheckRespawn(ctx context.Context, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending.Len() == 0 || s.pending[0].RespawnAt.After(now) {
		return false, nil
	}

	unit := heap.Pop(&s.pending).(model.ActiveUnit)
	key := unit.Key()

	entry, ok := s.entryForLocked(key)
	if !ok {
		s.refreshDisplayLocked()
		slog.Debug("pending respawn dropped (entry removed)",
			"spawner", s.id, "key", key.String())
		return false, nil
	}
	if s.countForKeyLocked(key) >= entry.Count {
		s.refreshDisplayLocked()
		slog.Debug("pending respawn dropped (desired count met)",
			"spawner", s.id, "key", key.String())
		return false, nil
	}

	if !s.deps.Delays.CanRespawnNow(key) {
		s.requeueLocked(unit, now)
		return false, nil
	}
	if !s.gateOpenLocked(now) {
		s.requeueLocked(unit, now)
		return false, nil
	}
	if len(s.active)+s.pending.Len()+1 > s.effectiveCapacityLocked() {
		s.requeueLocked(unit, now)
		return false, nil
	}

	if err := s.spawnOneLocked(ctx, entry, now); err != nil {
		s.requeueLocked(unit, now)
		return false, err
	}
	s.respawnedTotal.Add(1)

	s.refreshDisplayLocked()
	slog.Debug("unit respawned",
		"spawner", s.id,
		"key", key.String(),
		"live", len(s.active),
		"pending", s.pending.Len())
	return true, nil
}

func (s *Spawner) requeueLocked(unit model.ActiveUnit, now time.Time) {
	unit.RespawnAt = now.Add(respawnRetryDelay)
	heap.Push(&s.pending, unit)
}

// HasPendingRespawns reports whether any replacements are outstanding.
func (s *Spawner) HasPendingRespawns() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pending.Len() > 0
}

// PendingCount returns the number of outstanding replacements.
func (s *Spawner) PendingCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pending.Len()
}

// NextRespawnAt returns the earliest pending ready-time, or the zero time
// when the queue is empty.
func (s *Spawner) NextRespawnAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.pending.Len() == 0 {
		return time.Time{}
	}
	return s.pending[0].RespawnAt
}

package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/udisondev/spawnkeep/internal/model"
	"github.com/udisondev/spawnkeep/internal/spawn"
)

var (
	// ErrNoSession marks input from an operator without an open dialog.
	ErrNoSession = errors.New("no active session")
	// ErrSessionExists marks a Start while the operator's previous dialog
	// is still open.
	ErrSessionExists = errors.New("session already active")
)

// DefaultIdleTimeout evicts dialogs the operator walked away from.
const DefaultIdleTimeout = 5 * time.Minute

// evictInterval paces the background idle sweep.
const evictInterval = 30 * time.Second

// Manager tracks at most one configuration dialog per operator and evicts
// idle ones. Evicted dialogs are treated as cancelled: nothing was applied.
type Manager struct {
	committer   Committer
	codec       *spawn.Codec
	idleTimeout time.Duration

	mu       sync.Mutex
	sessions map[string]*Session // operator → open dialog
}

// NewManager builds a Manager committing through committer. Non-positive
// idleTimeout falls back to DefaultIdleTimeout.
func NewManager(committer Committer, codec *spawn.Codec, idleTimeout time.Duration) *Manager {
	if idleTimeout <= 0 {
		idleTimeout = DefaultIdleTimeout
	}
	return &Manager{
		committer:   committer,
		codec:       codec,
		idleTimeout: idleTimeout,
		sessions:    make(map[string]*Session),
	}
}

// Start opens a dialog for operator targeting pos and returns the first
// prompt. An operator with an open dialog must cancel it first.
func (m *Manager) Start(operator string, pos model.BlockPos, now time.Time) (Reply, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if old, ok := m.sessions[operator]; ok {
		if now.Sub(old.lastInput) < m.idleTimeout {
			return Reply{}, ErrSessionExists
		}
		delete(m.sessions, operator)
	}

	s := New(operator, pos, m.codec, m.committer, now)
	m.sessions[operator] = s

	slog.Info("session started", "operator", operator, "pos", pos.ID())
	return Reply{Step: s.Step(), Prompt: s.prompt()}, nil
}

// Input routes one line of operator text into their open dialog. Terminal
// replies close the dialog.
func (m *Manager) Input(ctx context.Context, operator, text string, now time.Time) (Reply, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[operator]
	if !ok {
		return Reply{}, ErrNoSession
	}
	if now.Sub(s.lastInput) >= m.idleTimeout {
		delete(m.sessions, operator)
		slog.Info("session evicted",
			"operator", operator, "step", s.Step().String(), "age", now.Sub(s.startedAt))
		return Reply{}, ErrNoSession
	}

	reply, err := s.Input(ctx, text, now)
	if reply.Step.Terminal() {
		delete(m.sessions, operator)
		slog.Info("session closed", "operator", operator, "outcome", reply.Step.String())
	}
	return reply, err
}

// Cancel closes the operator's dialog without applying anything.
func (m *Manager) Cancel(operator string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[operator]; !ok {
		return false
	}
	delete(m.sessions, operator)
	slog.Info("session cancelled", "operator", operator)
	return true
}

// Active returns the number of open dialogs.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Run sweeps idle dialogs until ctx is cancelled.
func (m *Manager) Run(ctx context.Context) error {
	ticker := time.NewTicker(evictInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			m.evictIdle(now)
		}
	}
}

func (m *Manager) evictIdle(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	evicted := 0
	for operator, s := range m.sessions {
		if now.Sub(s.lastInput) >= m.idleTimeout {
			delete(m.sessions, operator)
			evicted++
			slog.Info("session evicted",
				"operator", operator, "step", s.Step().String(), "age", now.Sub(s.startedAt))
		}
	}
	return evicted
}

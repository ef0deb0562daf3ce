// Package command dispatches operator text: "//" prefixed commands go to
// registered handlers, everything else continues the operator's active
// creation session.
package command

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/udisondev/spawnkeep/internal/model"
	"github.com/udisondev/spawnkeep/internal/session"
)

// Operator identifies who issued a command and where they stand.
type Operator struct {
	Name string
	Loc  model.Location
}

// Command is the interface for operator commands (//command).
// Each command registers one or more names.
type Command interface {
	// Handle executes the command. args includes the command name at [0].
	// The returned string is shown to the operator.
	Handle(ctx context.Context, op Operator, args []string) (string, error)
	// Names returns all registered command names (without // prefix).
	Names() []string
}

// Handler dispatches operator commands and routes free text into sessions.
// Thread-safe: commands are registered once at startup, then read-only.
type Handler struct {
	sessions *session.Manager

	mu   sync.RWMutex
	cmds map[string]Command // name → Command (lowercase)
}

// NewHandler creates a command handler routing free text to sessions.
func NewHandler(sessions *session.Manager) *Handler {
	return &Handler{
		sessions: sessions,
		cmds:     make(map[string]Command, 32),
	}
}

// Register registers a command under all its names.
// Names are lowercased for case-insensitive lookup.
func (h *Handler) Register(cmd Command) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, name := range cmd.Names() {
		h.cmds[strings.ToLower(name)] = cmd
	}
}

// Handle processes one line of operator input. Text starting with // is a
// command; anything else feeds the operator's active session. Returns the
// reply text and whether the input was consumed.
func (h *Handler) Handle(ctx context.Context, op Operator, text string) (string, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", false
	}

	if rest, ok := strings.CutPrefix(text, "//"); ok {
		return h.dispatch(ctx, op, rest)
	}

	reply, err := h.sessions.Input(ctx, op.Name, text, time.Now())
	if errors.Is(err, session.ErrNoSession) {
		return "", false
	}
	if err != nil && reply.Prompt == "" {
		return err.Error(), true
	}
	// Commit failures carry a prompt that already explains the retry.
	return reply.Prompt, true
}

// dispatch looks up and runs a // command. text is the message without the
// // prefix.
func (h *Handler) dispatch(ctx context.Context, op Operator, text string) (string, bool) {
	if strings.TrimSpace(text) == "" {
		return "", false
	}

	parts := strings.Fields(text)
	cmdName := strings.ToLower(parts[0])

	h.mu.RLock()
	cmd, ok := h.cmds[cmdName]
	h.mu.RUnlock()

	if !ok {
		return "Unknown command: //" + cmdName, false
	}

	slog.Info("operator command",
		"operator", op.Name,
		"command", text)

	out, err := cmd.Handle(ctx, op, parts)
	if err != nil {
		slog.Error("operator command failed",
			"operator", op.Name,
			"command", text,
			"error", err)
		return "Command error: " + err.Error(), true
	}
	return out, true
}

// CommandCount returns the number of registered command names.
func (h *Handler) CommandCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.cmds)
}

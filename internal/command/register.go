package command

import (
	"github.com/udisondev/spawnkeep/internal/session"
	"github.com/udisondev/spawnkeep/internal/spawn"
)

// RegisterAll registers every operator command into the handler.
func RegisterAll(h *Handler, reg *spawn.Registry, sessions *session.Manager) {
	h.Register(NewCreate(reg, sessions))
	h.Register(NewTemplate(reg))
	h.Register(NewRemove(reg))
	h.Register(NewReset(reg))
	h.Register(NewSave(reg))
	h.Register(NewVisible(reg))
	h.Register(NewDisplayMode(reg))
	h.Register(NewGroup(reg))
	h.Register(NewName(reg))
	h.Register(NewCapacity(reg))
	h.Register(NewDetection(reg))
	h.Register(NewTime(reg))
	h.Register(NewWeather(reg))
	h.Register(NewRadius(reg))
	h.Register(NewList(reg))
	h.Register(NewNear(reg))
	h.Register(NewInfo(reg))
}

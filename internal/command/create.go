package command

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/udisondev/spawnkeep/internal/session"
	"github.com/udisondev/spawnkeep/internal/spawn"
)

// Create handles //create [entries]. Without arguments it opens an
// interactive creation session at the operator's block; with an inline
// entry string it commits immediately.
type Create struct {
	reg      *spawn.Registry
	sessions *session.Manager
}

// NewCreate creates the create command handler.
func NewCreate(reg *spawn.Registry, sessions *session.Manager) *Create {
	return &Create{reg: reg, sessions: sessions}
}

func (c *Create) Names() []string { return []string{"create"} }

func (c *Create) Handle(ctx context.Context, op Operator, args []string) (string, error) {
	pos := op.Loc.Block()

	if len(args) >= 2 {
		s, err := c.reg.Create(ctx, pos, args[1], spawn.Properties{})
		if err != nil {
			return "", err
		}
		st := s.Status()
		return fmt.Sprintf("Spawner %s created with %d entries.", st.ID, len(st.Entries)), nil
	}

	reply, err := c.sessions.Start(op.Name, pos, time.Now())
	if errors.Is(err, session.ErrSessionExists) {
		return "You already have an open session; answer it or type cancel.", nil
	}
	if err != nil {
		return "", err
	}
	return reply.Prompt, nil
}

// Template handles //template [name]. Without arguments it lists the known
// templates; with a name it creates a spawner from it at the operator's
// block.
type Template struct {
	reg *spawn.Registry
}

// NewTemplate creates the template command handler.
func NewTemplate(reg *spawn.Registry) *Template {
	return &Template{reg: reg}
}

func (c *Template) Names() []string { return []string{"template", "tpl"} }

func (c *Template) Handle(ctx context.Context, op Operator, args []string) (string, error) {
	if len(args) < 2 {
		return "Templates: " + strings.Join(spawn.TemplateNames(), ", "), nil
	}

	name := strings.ToLower(args[1])
	s, err := c.reg.CreateFromTemplate(ctx, op.Loc.Block(), name)
	if err != nil {
		return "", err
	}
	st := s.Status()
	return fmt.Sprintf("Spawner %s created from template %q.", st.ID, name), nil
}

// Package session implements the interactive multi-step dialog operators use
// to configure a spawner with free-text input. The dialog state is an
// explicit step enum advanced through a transition table; tokenizing the
// operator's text is a thin adapter in front of it.
package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/udisondev/spawnkeep/internal/model"
	"github.com/udisondev/spawnkeep/internal/spawn"
)

// ErrFinished marks input sent to a session that already committed or was
// cancelled.
var ErrFinished = errors.New("session finished")

// Step identifies which input the dialog is waiting for.
type Step int

const (
	// StepSpecies awaits a species name or a template:<name> shortcut.
	StepSpecies Step = iota
	// StepTier awaits the entry tier.
	StepTier
	// StepElite awaits the elite flag.
	StepElite
	// StepAmount awaits the desired count, completing the draft entry.
	StepAmount
	// StepNext awaits one of add / advanced / done.
	StepNext
	// StepAdvanced awaits property commands until a done token.
	StepAdvanced
	// StepTemplateConfirm awaits yes/no for a template instantiation.
	StepTemplateConfirm
	// StepConfirm awaits the final yes/no before committing.
	StepConfirm
	// StepCommitted is terminal: the spawner was created.
	StepCommitted
	// StepCancelled is terminal: nothing was applied.
	StepCancelled
)

func (s Step) String() string {
	switch s {
	case StepSpecies:
		return "species"
	case StepTier:
		return "tier"
	case StepElite:
		return "elite"
	case StepAmount:
		return "amount"
	case StepNext:
		return "next"
	case StepAdvanced:
		return "advanced"
	case StepTemplateConfirm:
		return "template-confirm"
	case StepConfirm:
		return "confirm"
	case StepCommitted:
		return "committed"
	case StepCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("step(%d)", int(s))
	}
}

// Terminal reports whether the dialog is finished.
func (s Step) Terminal() bool {
	return s == StepCommitted || s == StepCancelled
}

// Committer applies a completed dialog. *spawn.Registry satisfies it.
type Committer interface {
	Create(ctx context.Context, pos model.BlockPos, data string, props spawn.Properties) (*spawn.Spawner, error)
	CreateFromTemplate(ctx context.Context, pos model.BlockPos, name string) (*spawn.Spawner, error)
}

// Reply is the dialog's answer to one operator input: the step now awaiting
// input and the prompt to show.
type Reply struct {
	Step   Step
	Prompt string
}

// transitions is the state transition table: each awaiting step maps to the
// handler consuming one tokenized input.
var transitions = map[Step]func(*Session, context.Context, string, []string) (Reply, error){
	StepSpecies:         (*Session).handleSpecies,
	StepTier:            (*Session).handleTier,
	StepElite:           (*Session).handleElite,
	StepAmount:          (*Session).handleAmount,
	StepNext:            (*Session).handleNext,
	StepAdvanced:        (*Session).handleAdvanced,
	StepTemplateConfirm: (*Session).handleTemplateConfirm,
	StepConfirm:         (*Session).handleConfirm,
}

// Session is one operator's in-progress spawner configuration. Not safe for
// concurrent use; the Manager serializes access.
type Session struct {
	operator  string
	pos       model.BlockPos
	codec     *spawn.Codec
	committer Committer

	step     Step
	entries  []model.SpawnEntry
	draft    model.SpawnEntry
	props    spawn.Properties
	template string

	startedAt time.Time
	lastInput time.Time
}

// New opens a dialog for operator targeting pos.
func New(operator string, pos model.BlockPos, codec *spawn.Codec, committer Committer, now time.Time) *Session {
	return &Session{
		operator:  operator,
		pos:       pos,
		codec:     codec,
		committer: committer,
		step:      StepSpecies,
		startedAt: now,
		lastInput: now,
	}
}

func (s *Session) Operator() string { return s.operator }

func (s *Session) Pos() model.BlockPos { return s.pos }

func (s *Session) Step() Step { return s.step }

// Input consumes one line of operator text and advances the dialog. Invalid
// input keeps the current step and re-prompts; a Go error is returned only
// for terminal-state misuse and commit failures.
func (s *Session) Input(ctx context.Context, text string, now time.Time) (Reply, error) {
	if s.step.Terminal() {
		return s.reply(""), ErrFinished
	}
	s.lastInput = now

	text = strings.TrimSpace(text)
	fields := strings.Fields(strings.ToLower(text))
	if len(fields) == 0 {
		return s.reply(s.prompt()), nil
	}
	if fields[0] == "cancel" {
		s.step = StepCancelled
		return s.reply("Session cancelled."), nil
	}

	return transitions[s.step](s, ctx, text, fields)
}

func (s *Session) handleSpecies(_ context.Context, _ string, fields []string) (Reply, error) {
	token := fields[0]

	if name, ok := strings.CutPrefix(token, "template:"); ok {
		data, known := spawn.TemplateData(name)
		if !known {
			return s.reply(fmt.Sprintf("Unknown template %q. Available: %s.",
				name, strings.Join(spawn.TemplateNames(), ", "))), nil
		}
		s.template = name
		s.step = StepTemplateConfirm
		return s.reply(fmt.Sprintf("Template %q spawns %q. Create it here? (yes/no)", name, data)), nil
	}

	if !s.codec.Catalog().IsKnown(token) {
		return s.reply(fmt.Sprintf("Unknown species %q. %s", token, s.prompt())), nil
	}
	s.draft = model.SpawnEntry{Species: token}
	s.step = StepTier
	return s.reply(s.prompt()), nil
}

func (s *Session) handleTier(_ context.Context, _ string, fields []string) (Reply, error) {
	tier, err := strconv.Atoi(fields[0])
	if err != nil || tier < model.MinTier || tier > model.MaxTier {
		return s.reply(fmt.Sprintf("Tier must be a number between %d and %d.", model.MinTier, model.MaxTier)), nil
	}
	s.draft.Tier = tier
	s.step = StepElite
	return s.reply(s.prompt()), nil
}

func (s *Session) handleElite(_ context.Context, _ string, fields []string) (Reply, error) {
	elite, ok := parseYesNo(fields[0])
	if !ok {
		return s.reply("Answer yes or no."), nil
	}
	s.draft.Elite = elite
	s.step = StepAmount
	return s.reply(s.prompt()), nil
}

func (s *Session) handleAmount(_ context.Context, _ string, fields []string) (Reply, error) {
	count, err := strconv.Atoi(fields[0])
	if err != nil || count < 1 || count > s.codec.MaxCount() {
		return s.reply(fmt.Sprintf("Amount must be a number between 1 and %d.", s.codec.MaxCount())), nil
	}
	s.draft.Count = count

	// Re-declaring an already-added key updates its count instead of
	// producing a duplicate the codec would flag.
	note := fmt.Sprintf("Added %s.", s.draft)
	if idx := s.entryIndex(s.draft.Key()); idx >= 0 {
		s.entries[idx].Count = count
		note = fmt.Sprintf("Updated %s.", s.entries[idx])
	} else {
		s.entries = append(s.entries, s.draft)
	}
	s.draft = model.SpawnEntry{}

	s.step = StepNext
	return s.reply(note + " " + s.prompt()), nil
}

func (s *Session) handleNext(_ context.Context, _ string, fields []string) (Reply, error) {
	switch fields[0] {
	case "add":
		s.step = StepSpecies
		return s.reply(s.prompt()), nil
	case "advanced":
		s.step = StepAdvanced
		return s.reply(s.prompt()), nil
	case "done":
		s.step = StepConfirm
		return s.reply(s.prompt()), nil
	default:
		return s.reply("Answer add, advanced or done."), nil
	}
}

func (s *Session) handleAdvanced(_ context.Context, raw string, fields []string) (Reply, error) {
	switch fields[0] {
	case "done":
		s.step = StepConfirm
		return s.reply(s.prompt()), nil

	case "group":
		if len(fields) != 2 {
			return s.reply("Usage: group <name>"), nil
		}
		s.props.Group = fields[1]
		return s.reply(fmt.Sprintf("Group set to %q. %s", fields[1], s.prompt())), nil

	case "name":
		// Display names keep the operator's casing.
		_, rest, _ := strings.Cut(raw, " ")
		name := strings.TrimSpace(rest)
		if name == "" {
			return s.reply("Usage: name <display name>"), nil
		}
		s.props.DisplayName = name
		return s.reply(fmt.Sprintf("Display name set to %q. %s", name, s.prompt())), nil

	case "time":
		if len(fields) != 2 {
			return s.reply("Usage: time <any|day|night>"), nil
		}
		window, err := model.ParseTimeWindow(fields[1])
		if err != nil {
			return s.reply("Time window must be any, day or night."), nil
		}
		s.props.TimeWindow = window
		return s.reply(fmt.Sprintf("Time window set to %s. %s", window, s.prompt())), nil

	case "weather":
		if len(fields) != 2 {
			return s.reply("Usage: weather <any|clear|rain|storm>"), nil
		}
		if fields[1] == "any" {
			s.props.Weather = nil
			return s.reply("Weather restriction cleared. " + s.prompt()), nil
		}
		weather, err := model.ParseWeather(fields[1])
		if err != nil {
			return s.reply("Weather must be any, clear, rain or storm."), nil
		}
		s.props.Weather = &weather
		return s.reply(fmt.Sprintf("Weather set to %s. %s", weather, s.prompt())), nil

	case "radius":
		if len(fields) != 4 {
			return s.reply("Usage: radius <x> <y> <z>"), nil
		}
		var r [3]float64
		for i, f := range fields[1:] {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil || v < 0 {
				return s.reply("Radii must be non-negative numbers."), nil
			}
			r[i] = v
		}
		s.props.RadiusX, s.props.RadiusY, s.props.RadiusZ = r[0], r[1], r[2]
		return s.reply(fmt.Sprintf("Spawn radius set to ±%.1f/%.1f/%.1f. %s", r[0], r[1], r[2], s.prompt())), nil

	case "capacity":
		if len(fields) != 2 {
			return s.reply("Usage: capacity <n> (0 clears the override)"), nil
		}
		n, err := strconv.Atoi(fields[1])
		if err != nil || n < 0 {
			return s.reply("Capacity must be a non-negative number."), nil
		}
		s.props.Capacity = n
		return s.reply(fmt.Sprintf("Capacity override set to %d. %s", n, s.prompt())), nil

	case "detection":
		if len(fields) != 2 {
			return s.reply("Usage: detection <radius> (0 clears the override)"), nil
		}
		v, err := strconv.ParseFloat(fields[1], 64)
		if err != nil || v < 0 {
			return s.reply("Detection radius must be a non-negative number."), nil
		}
		s.props.DetectionRadius = v
		return s.reply(fmt.Sprintf("Detection radius override set to %.1f. %s", v, s.prompt())), nil

	default:
		return s.reply(s.prompt()), nil
	}
}

func (s *Session) handleTemplateConfirm(ctx context.Context, _ string, fields []string) (Reply, error) {
	yes, ok := parseYesNo(fields[0])
	if !ok {
		return s.reply("Answer yes or no."), nil
	}
	if !yes {
		s.template = ""
		s.step = StepSpecies
		return s.reply(s.prompt()), nil
	}

	created, err := s.committer.CreateFromTemplate(ctx, s.pos, s.template)
	if err != nil {
		return s.reply(fmt.Sprintf("Creating from template failed: %v. Answer yes to retry, cancel to abort.", err)), err
	}
	s.step = StepCommitted
	return s.reply(fmt.Sprintf("Spawner %s created from template %q.", created.ID(), s.template)), nil
}

func (s *Session) handleConfirm(ctx context.Context, _ string, fields []string) (Reply, error) {
	yes, ok := parseYesNo(fields[0])
	if !ok {
		return s.reply("Answer yes or no."), nil
	}
	if !yes {
		s.step = StepNext
		return s.reply(s.prompt()), nil
	}

	data := s.codec.Format(s.entries)
	created, err := s.committer.Create(ctx, s.pos, data, s.props)
	if err != nil {
		return s.reply(fmt.Sprintf("Creating spawner failed: %v. Answer yes to retry, cancel to abort.", err)), err
	}
	s.step = StepCommitted
	return s.reply(fmt.Sprintf("Spawner %s created with %q.", created.ID(), data)), nil
}

// prompt returns the standing question for the current step.
func (s *Session) prompt() string {
	switch s.step {
	case StepSpecies:
		return "Species? (or template:<name>, cancel to abort)"
	case StepTier:
		return fmt.Sprintf("Tier? (%d-%d)", model.MinTier, model.MaxTier)
	case StepElite:
		return "Elite? (yes/no)"
	case StepAmount:
		return fmt.Sprintf("How many? (1-%d)", s.codec.MaxCount())
	case StepNext:
		return "Next? (add another entry / advanced properties / done)"
	case StepAdvanced:
		return "Property? (group, name, time, weather, radius, capacity, detection; done to finish)"
	case StepTemplateConfirm:
		return "Create from template? (yes/no)"
	case StepConfirm:
		return fmt.Sprintf("Create spawner at %s with %q? (yes/no)", s.pos.ID(), s.codec.Format(s.entries))
	default:
		return ""
	}
}

func (s *Session) reply(prompt string) Reply {
	return Reply{Step: s.step, Prompt: prompt}
}

func (s *Session) entryIndex(key model.EntryKey) int {
	for i, e := range s.entries {
		if e.Key() == key {
			return i
		}
	}
	return -1
}

func parseYesNo(token string) (value, ok bool) {
	switch token {
	case "yes", "y", "true":
		return true, true
	case "no", "n", "false":
		return false, true
	default:
		return false, false
	}
}

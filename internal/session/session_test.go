package session

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/udisondev/spawnkeep/internal/catalog"
	"github.com/udisondev/spawnkeep/internal/model"
	"github.com/udisondev/spawnkeep/internal/spawn"
)

var (
	testPos  = model.NewBlockPos("world", 10, 64, 3)
	baseTime = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
)

type createCall struct {
	pos   model.BlockPos
	data  string
	props spawn.Properties
}

type templateCall struct {
	pos  model.BlockPos
	name string
}

type stubCommitter struct {
	created   []createCall
	templates []templateCall
	err       error
}

func (c *stubCommitter) Create(_ context.Context, pos model.BlockPos, data string, props spawn.Properties) (*spawn.Spawner, error) {
	if c.err != nil {
		return nil, c.err
	}
	c.created = append(c.created, createCall{pos: pos, data: data, props: props})
	return spawn.NewSpawner(pos, nil, spawn.Deps{}), nil
}

func (c *stubCommitter) CreateFromTemplate(_ context.Context, pos model.BlockPos, name string) (*spawn.Spawner, error) {
	if c.err != nil {
		return nil, c.err
	}
	c.templates = append(c.templates, templateCall{pos: pos, name: name})
	return spawn.NewSpawner(pos, nil, spawn.Deps{}), nil
}

func newTestSession(t *testing.T) (*Session, *stubCommitter) {
	t.Helper()
	committer := &stubCommitter{}
	codec := spawn.NewCodec(catalog.Default(), 20)
	return New("steve", testPos, codec, committer, baseTime), committer
}

// drive feeds lines into the session, failing the test on unexpected errors.
func drive(t *testing.T, s *Session, lines ...string) Reply {
	t.Helper()
	var reply Reply
	for _, line := range lines {
		var err error
		reply, err = s.Input(context.Background(), line, baseTime)
		if err != nil {
			t.Fatalf("Input(%q) error = %v", line, err)
		}
	}
	return reply
}

func TestSession_FullWalkthrough(t *testing.T) {
	s, committer := newTestSession(t)

	reply := drive(t, s,
		"skeleton", "3", "no", "2",
		"add",
		"zombie", "3", "yes", "1",
		"done")
	if reply.Step != StepConfirm {
		t.Fatalf("step after done = %v, want confirm", reply.Step)
	}
	if !strings.Contains(reply.Prompt, `"skeleton:3@false#2,zombie:3@true#1"`) {
		t.Errorf("confirm prompt = %q, want it to quote the entry string", reply.Prompt)
	}

	reply = drive(t, s, "yes")
	if reply.Step != StepCommitted {
		t.Fatalf("step after confirm = %v, want committed", reply.Step)
	}
	if len(committer.created) != 1 {
		t.Fatalf("Create calls = %d, want 1", len(committer.created))
	}
	call := committer.created[0]
	if call.pos != testPos {
		t.Errorf("committed pos = %v, want %v", call.pos, testPos)
	}
	if call.data != "skeleton:3@false#2,zombie:3@true#1" {
		t.Errorf("committed data = %q", call.data)
	}
	if !strings.Contains(reply.Prompt, testPos.ID()) {
		t.Errorf("commit reply = %q, want it to name the spawner id", reply.Prompt)
	}
}

func TestSession_CancelAnywhere(t *testing.T) {
	tests := []struct {
		name  string
		setup []string
	}{
		{name: "at species", setup: nil},
		{name: "at tier", setup: []string{"zombie"}},
		{name: "at elite", setup: []string{"zombie", "2"}},
		{name: "at amount", setup: []string{"zombie", "2", "no"}},
		{name: "at next", setup: []string{"zombie", "2", "no", "3"}},
		{name: "at advanced", setup: []string{"zombie", "2", "no", "3", "advanced"}},
		{name: "at confirm", setup: []string{"zombie", "2", "no", "3", "done"}},
		{name: "at template confirm", setup: []string{"template:graveyard"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, committer := newTestSession(t)
			drive(t, s, tt.setup...)

			reply := drive(t, s, "cancel")
			if reply.Step != StepCancelled {
				t.Fatalf("step after cancel = %v, want cancelled", reply.Step)
			}
			if len(committer.created) != 0 || len(committer.templates) != 0 {
				t.Error("cancelled session committed something")
			}

			if _, err := s.Input(context.Background(), "zombie", baseTime); !errors.Is(err, ErrFinished) {
				t.Errorf("Input after cancel error = %v, want ErrFinished", err)
			}
		})
	}
}

func TestSession_TemplateShortcut(t *testing.T) {
	s, committer := newTestSession(t)

	reply := drive(t, s, "template:graveyard")
	if reply.Step != StepTemplateConfirm {
		t.Fatalf("step = %v, want template-confirm", reply.Step)
	}
	if !strings.Contains(reply.Prompt, "zombie:2@false#4") {
		t.Errorf("template prompt = %q, want it to preview the population", reply.Prompt)
	}

	reply = drive(t, s, "yes")
	if reply.Step != StepCommitted {
		t.Fatalf("step = %v, want committed", reply.Step)
	}
	if len(committer.templates) != 1 || committer.templates[0].name != "graveyard" {
		t.Fatalf("CreateFromTemplate calls = %+v, want one graveyard call", committer.templates)
	}
	if len(committer.created) != 0 {
		t.Error("template commit also called Create")
	}
}

func TestSession_TemplateUnknown(t *testing.T) {
	s, _ := newTestSession(t)

	reply := drive(t, s, "template:castle")
	if reply.Step != StepSpecies {
		t.Fatalf("step = %v, want species", reply.Step)
	}
	if !strings.Contains(reply.Prompt, "graveyard") {
		t.Errorf("prompt = %q, want it to list available templates", reply.Prompt)
	}
}

func TestSession_TemplateDeclined(t *testing.T) {
	s, committer := newTestSession(t)

	reply := drive(t, s, "template:graveyard", "no")
	if reply.Step != StepSpecies {
		t.Fatalf("step after declining template = %v, want species", reply.Step)
	}
	if len(committer.templates) != 0 {
		t.Error("declined template still committed")
	}

	// The dialog continues normally afterwards.
	reply = drive(t, s, "spider", "2", "no", "4", "done", "yes")
	if reply.Step != StepCommitted {
		t.Fatalf("step = %v, want committed", reply.Step)
	}
	if committer.created[0].data != "spider:2@false#4" {
		t.Errorf("committed data = %q", committer.created[0].data)
	}
}

func TestSession_InvalidInputKeepsStep(t *testing.T) {
	tests := []struct {
		name  string
		setup []string
		input string
		want  Step
	}{
		{name: "unknown species", input: "dragon", want: StepSpecies},
		{name: "tier not a number", setup: []string{"zombie"}, input: "x", want: StepTier},
		{name: "tier too low", setup: []string{"zombie"}, input: "0", want: StepTier},
		{name: "tier too high", setup: []string{"zombie"}, input: "7", want: StepTier},
		{name: "elite gibberish", setup: []string{"zombie", "2"}, input: "maybe", want: StepElite},
		{name: "amount zero", setup: []string{"zombie", "2", "no"}, input: "0", want: StepAmount},
		{name: "amount over max", setup: []string{"zombie", "2", "no"}, input: "21", want: StepAmount},
		{name: "next gibberish", setup: []string{"zombie", "2", "no", "3"}, input: "maybe", want: StepNext},
		{name: "confirm gibberish", setup: []string{"zombie", "2", "no", "3", "done"}, input: "maybe", want: StepConfirm},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestSession(t)
			drive(t, s, tt.setup...)

			reply := drive(t, s, tt.input)
			if reply.Step != tt.want {
				t.Errorf("step after %q = %v, want %v", tt.input, reply.Step, tt.want)
			}
		})
	}
}

func TestSession_EmptyInputReprompts(t *testing.T) {
	s, _ := newTestSession(t)
	drive(t, s, "zombie")

	reply := drive(t, s, "   ")
	if reply.Step != StepTier {
		t.Errorf("step after blank input = %v, want tier", reply.Step)
	}
	if reply.Prompt == "" {
		t.Error("blank input returned no prompt")
	}
}

func TestSession_AdvancedProps(t *testing.T) {
	s, committer := newTestSession(t)

	drive(t, s,
		"skeleton", "3", "no", "2",
		"advanced",
		"group undead",
		"name Dark Crypt",
		"time night",
		"weather storm",
		"radius 4 1 4",
		"capacity 12",
		"detection 24.5",
		"done",
		"yes")

	if len(committer.created) != 1 {
		t.Fatalf("Create calls = %d, want 1", len(committer.created))
	}
	props := committer.created[0].props
	if props.Group != "undead" {
		t.Errorf("Group = %q, want undead", props.Group)
	}
	if props.DisplayName != "Dark Crypt" {
		t.Errorf("DisplayName = %q, want Dark Crypt", props.DisplayName)
	}
	if props.TimeWindow != model.TimeNight {
		t.Errorf("TimeWindow = %v, want night", props.TimeWindow)
	}
	if props.Weather == nil || *props.Weather != model.WeatherStorm {
		t.Errorf("Weather = %v, want storm", props.Weather)
	}
	if props.RadiusX != 4 || props.RadiusY != 1 || props.RadiusZ != 4 {
		t.Errorf("radii = %v/%v/%v, want 4/1/4", props.RadiusX, props.RadiusY, props.RadiusZ)
	}
	if props.Capacity != 12 {
		t.Errorf("Capacity = %d, want 12", props.Capacity)
	}
	if props.DetectionRadius != 24.5 {
		t.Errorf("DetectionRadius = %v, want 24.5", props.DetectionRadius)
	}
}

func TestSession_WeatherAnyClearsRestriction(t *testing.T) {
	s, committer := newTestSession(t)

	drive(t, s,
		"zombie", "2", "no", "3",
		"advanced",
		"weather storm",
		"weather any",
		"done",
		"yes")

	if props := committer.created[0].props; props.Weather != nil {
		t.Errorf("Weather = %v, want nil after weather any", props.Weather)
	}
}

func TestSession_DuplicateKeyUpdatesCount(t *testing.T) {
	s, committer := newTestSession(t)

	drive(t, s,
		"skeleton", "3", "no", "2",
		"add",
		"skeleton", "3", "no", "5",
		"done", "yes")

	if committer.created[0].data != "skeleton:3@false#5" {
		t.Errorf("committed data = %q, want single skeleton entry with count 5", committer.created[0].data)
	}
}

func TestSession_ConfirmNoReturnsToNext(t *testing.T) {
	s, committer := newTestSession(t)

	reply := drive(t, s, "zombie", "2", "no", "3", "done", "no")
	if reply.Step != StepNext {
		t.Fatalf("step after declining confirm = %v, want next", reply.Step)
	}

	// Another entry can still be added after backing out.
	reply = drive(t, s, "add", "spider", "2", "no", "1", "done", "yes")
	if reply.Step != StepCommitted {
		t.Fatalf("step = %v, want committed", reply.Step)
	}
	if committer.created[0].data != "zombie:2@false#3,spider:2@false#1" {
		t.Errorf("committed data = %q", committer.created[0].data)
	}
}

func TestSession_CommitFailureStaysAtConfirm(t *testing.T) {
	s, committer := newTestSession(t)
	committer.err = errors.New("store unavailable")

	drive(t, s, "zombie", "2", "no", "3", "done")

	reply, err := s.Input(context.Background(), "yes", baseTime)
	if err == nil {
		t.Fatal("Input() expected commit error")
	}
	if reply.Step != StepConfirm {
		t.Fatalf("step after failed commit = %v, want confirm", reply.Step)
	}

	committer.err = nil
	reply = drive(t, s, "yes")
	if reply.Step != StepCommitted {
		t.Fatalf("step after retry = %v, want committed", reply.Step)
	}
	if len(committer.created) != 1 {
		t.Errorf("Create calls = %d, want 1", len(committer.created))
	}
}

package spawn

import (
	"context"
	"errors"

	"github.com/udisondev/spawnkeep/internal/model"
)

// Properties is the configurable per-spawner state persisted alongside the
// entry string. Zero values mean "registry default" for the overrides and
// "unrestricted" for the gating fields.
type Properties struct {
	Group           string
	DisplayName     string
	TimeWindow      model.TimeWindow
	Weather         *model.Weather // nil = any weather
	RadiusX         float64
	RadiusY         float64
	RadiusZ         float64
	Capacity        int     // 0 = registry default
	DetectionRadius float64 // 0 = registry default
}

// Record is one persisted spawner snapshot, keyed by "world,x,y,z".
// Gating fields travel as strings so a record written by a newer build
// survives a load/save cycle unchanged.
type Record struct {
	Key         string
	Data        string // entry string in codec form
	Visible     bool
	DisplayMode int
	Properties  RecordProperties
}

// RecordProperties mirrors the nested properties block of the snapshot format.
type RecordProperties struct {
	Group           string
	DisplayName     string
	TimeWindow      string
	Weather         string
	RadiusX         float64
	RadiusY         float64
	RadiusZ         float64
	Capacity        int
	DetectionRadius float64
}

// propsFromRecord decodes persisted property strings. Decoding is lenient:
// an unparseable time window or weather value falls back to "unrestricted"
// and the joined error tells the caller what was dropped.
func propsFromRecord(rp RecordProperties) (Properties, error) {
	p := Properties{
		Group:           rp.Group,
		DisplayName:     rp.DisplayName,
		RadiusX:         rp.RadiusX,
		RadiusY:         rp.RadiusY,
		RadiusZ:         rp.RadiusZ,
		Capacity:        rp.Capacity,
		DetectionRadius: rp.DetectionRadius,
	}

	var errs []error
	tw, err := model.ParseTimeWindow(rp.TimeWindow)
	if err != nil {
		errs = append(errs, err)
	} else {
		p.TimeWindow = tw
	}
	if rp.Weather != "" {
		w, err := model.ParseWeather(rp.Weather)
		if err != nil {
			errs = append(errs, err)
		} else {
			p.Weather = &w
		}
	}
	return p, errors.Join(errs...)
}

func recordProps(p Properties) RecordProperties {
	rp := RecordProperties{
		Group:           p.Group,
		DisplayName:     p.DisplayName,
		RadiusX:         p.RadiusX,
		RadiusY:         p.RadiusY,
		RadiusZ:         p.RadiusZ,
		Capacity:        p.Capacity,
		DetectionRadius: p.DetectionRadius,
	}
	if p.TimeWindow != model.TimeAny {
		rp.TimeWindow = p.TimeWindow.String()
	}
	if p.Weather != nil {
		rp.Weather = p.Weather.String()
	}
	return rp
}

// Store abstracts the snapshot backend. Implementations: YAML file
// (internal/snapshot) and Postgres (internal/db).
type Store interface {
	// LoadAll returns every persisted spawner record.
	LoadAll(ctx context.Context) ([]Record, error)
	// Save upserts a single record.
	Save(ctx context.Context, rec Record) error
	// SaveAll replaces the full snapshot with the given records.
	SaveAll(ctx context.Context, recs []Record) error
	// Delete removes the record for key. Missing keys are not an error.
	Delete(ctx context.Context, key string) error
}

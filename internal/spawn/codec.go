package spawn

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/udisondev/spawnkeep/internal/catalog"
	"github.com/udisondev/spawnkeep/internal/model"
)

// ErrInvalidEntry marks entry-string validation failures: malformed tokens,
// out-of-range tier or count, unknown species.
var ErrInvalidEntry = errors.New("invalid spawn entry")

// ValidationError is one rejected entry token or field. It matches
// errors.Is(err, ErrInvalidEntry).
type ValidationError struct {
	Token string // raw token as written, empty when validating a built entry
	Rule  string // violated rule
	Value string // offending value, empty when the token as a whole is at fault
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	b.WriteString("invalid spawn entry")
	if e.Token != "" {
		b.WriteByte(' ')
		b.WriteString(strconv.Quote(e.Token))
	}
	b.WriteString(": ")
	b.WriteString(e.Rule)
	if e.Value != "" {
		b.WriteString(": ")
		b.WriteString(strconv.Quote(e.Value))
	}
	return b.String()
}

func (e *ValidationError) Unwrap() error { return ErrInvalidEntry }

// Codec parses and serializes the declarative population format:
// comma-separated "species:tier@elite#count" tokens, e.g.
// "skeleton:3@false#2,zombie:3@true#1".
type Codec struct {
	catalog  *catalog.Catalog
	maxCount int
}

// NewCodec builds a codec validating species against cat and desired counts
// against [1, maxCount].
func NewCodec(cat *catalog.Catalog, maxCount int) *Codec {
	if maxCount < 1 {
		maxCount = 1
	}
	return &Codec{catalog: cat, maxCount: maxCount}
}

// MaxCount returns the upper bound accepted for a single entry's count.
func (c *Codec) MaxCount() int { return c.maxCount }

// Catalog returns the species catalog entries are validated against.
func (c *Codec) Catalog() *catalog.Catalog { return c.catalog }

// Parse decodes an entry string. Malformed tokens are skipped, not fatal:
// every valid token still yields an entry, and the returned error (non-nil
// only when at least one token was rejected) joins a diagnostic per rejected
// token, each matching errors.Is(err, ErrInvalidEntry).
func (c *Codec) Parse(s string) ([]model.SpawnEntry, error) {
	var entries []model.SpawnEntry
	var errs []error

	for _, token := range strings.Split(s, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		entry, err := c.parseToken(token)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		entries = append(entries, entry)
	}

	return entries, errors.Join(errs...)
}

// ParseStrict decodes an entry string, rejecting the whole input if any
// token is malformed or the result is empty. Used at commit boundaries so a
// bad string is never partially applied.
func (c *Codec) ParseStrict(s string) ([]model.SpawnEntry, error) {
	entries, err := c.Parse(s)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: no entries in %q", ErrInvalidEntry, s)
	}
	return entries, nil
}

func (c *Codec) parseToken(token string) (model.SpawnEntry, error) {
	species, rest, ok := strings.Cut(token, ":")
	if !ok {
		return model.SpawnEntry{}, &ValidationError{Token: token, Rule: "missing ':' separator"}
	}
	tierStr, rest, ok := strings.Cut(rest, "@")
	if !ok {
		return model.SpawnEntry{}, &ValidationError{Token: token, Rule: "missing '@' separator"}
	}
	eliteStr, countStr, ok := strings.Cut(rest, "#")
	if !ok {
		return model.SpawnEntry{}, &ValidationError{Token: token, Rule: "missing '#' separator"}
	}

	entry := model.SpawnEntry{Species: strings.TrimSpace(species)}

	tier, err := strconv.Atoi(strings.TrimSpace(tierStr))
	if err != nil {
		return model.SpawnEntry{}, &ValidationError{Token: token, Rule: "tier is not an integer", Value: strings.TrimSpace(tierStr)}
	}
	entry.Tier = tier

	switch strings.TrimSpace(eliteStr) {
	case "true":
		entry.Elite = true
	case "false":
		entry.Elite = false
	default:
		return model.SpawnEntry{}, &ValidationError{Token: token, Rule: "elite flag must be true or false", Value: strings.TrimSpace(eliteStr)}
	}

	count, err := strconv.Atoi(strings.TrimSpace(countStr))
	if err != nil {
		return model.SpawnEntry{}, &ValidationError{Token: token, Rule: "count is not an integer", Value: strings.TrimSpace(countStr)}
	}
	entry.Count = count

	if err := c.check(token, entry); err != nil {
		return model.SpawnEntry{}, err
	}
	return entry, nil
}

// Validate checks a single entry against the catalog and configured bounds.
func (c *Codec) Validate(e model.SpawnEntry) error {
	return c.check("", e)
}

func (c *Codec) check(token string, e model.SpawnEntry) error {
	if e.Species == "" {
		return &ValidationError{Token: token, Rule: "empty species"}
	}
	if !c.catalog.IsKnown(e.Species) {
		return &ValidationError{Token: token, Rule: "unknown species", Value: e.Species}
	}
	if e.Tier < model.MinTier || e.Tier > model.MaxTier {
		return &ValidationError{
			Token: token,
			Rule:  fmt.Sprintf("tier out of range [%d,%d]", model.MinTier, model.MaxTier),
			Value: strconv.Itoa(e.Tier),
		}
	}
	if e.Count < 1 || e.Count > c.maxCount {
		return &ValidationError{
			Token: token,
			Rule:  fmt.Sprintf("count out of range [1,%d]", c.maxCount),
			Value: strconv.Itoa(e.Count),
		}
	}
	return nil
}

// Format serializes entries back into the declarative form. Format and Parse
// round-trip: the decoded multiset of (species, tier, elite, count) tuples is
// preserved, token order follows the slice.
func (c *Codec) Format(entries []model.SpawnEntry) string {
	if len(entries) == 0 {
		return ""
	}
	var b strings.Builder
	for i, e := range entries {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(e.Species)
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(e.Tier))
		b.WriteByte('@')
		b.WriteString(strconv.FormatBool(e.Elite))
		b.WriteByte('#')
		b.WriteString(strconv.Itoa(e.Count))
	}
	return b.String()
}

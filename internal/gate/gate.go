// Package gate checks that a requested model is installed and belongs to a
// family known to emit a thinking trace.
package gate

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// DefaultFamilies are the model families known to support thinking mode.
var DefaultFamilies = []string{"deepseek-r1", "qwen3"}

// ErrModelUnavailable is returned when a model fails validation.
var ErrModelUnavailable = errors.New("model unavailable")

// Meta describes an installed model.
type Meta struct {
	Size       int64
	Digest     string
	ModifiedAt time.Time
}

// Directory maps installed model identifiers to their metadata.
type Directory map[string]Meta

// NewDirectory builds a directory with empty metadata for each name.
func NewDirectory(names ...string) Directory {
	d := make(Directory, len(names))
	for _, n := range names {
		d[n] = Meta{}
	}
	return d
}

// Names returns the installed identifiers in sorted order.
func (d Directory) Names() []string {
	names := make([]string, 0, len(d))
	for n := range d {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Lister provides the directory of installed models.
type Lister interface {
	Directory(ctx context.Context) (Directory, error)
}

// Family returns the part of a model identifier before the first ':'.
func Family(model string) string {
	if idx := strings.Index(model, ":"); idx >= 0 {
		return model[:idx]
	}
	return model
}

// normalize applies Ollama's implicit ":latest" tag.
func normalize(model string) string {
	if model == "" || strings.Contains(model, ":") {
		return model
	}
	return model + ":latest"
}

// Gate validates model identifiers against an allow-list of families.
type Gate struct {
	families map[string]bool
	ordered  []string
}

// New creates a gate for the given families, or DefaultFamilies if none.
func New(families ...string) *Gate {
	if len(families) == 0 {
		families = DefaultFamilies
	}
	g := &Gate{families: make(map[string]bool, len(families))}
	for _, f := range families {
		f = strings.TrimSpace(f)
		if f == "" || g.families[f] {
			continue
		}
		g.families[f] = true
		g.ordered = append(g.ordered, f)
	}
	return g
}

// Families returns the allow-list in configuration order.
func (g *Gate) Families() []string {
	return append([]string(nil), g.ordered...)
}

// Supports reports whether the model's family is in the allow-list.
func (g *Gate) Supports(model string) bool {
	return g.families[Family(model)]
}

// Qualifying returns the installed models whose family is supported.
func (g *Gate) Qualifying(installed Directory) []string {
	var out []string
	for _, name := range installed.Names() {
		if g.Supports(name) {
			out = append(out, name)
		}
	}
	return out
}

// Result is the outcome of a validation.
type Result struct {
	Requested       string
	Installed       bool
	FamilySupported bool
	Qualifying      []string
	Families        []string
}

// OK reports whether the model is installed and thinking-capable.
func (r Result) OK() bool {
	return r.Installed && r.FamilySupported
}

// Validate checks presence in installed AND family membership.
func (g *Gate) Validate(requested string, installed Directory) Result {
	_, present := installed[requested]
	if !present {
		_, present = installed[normalize(requested)]
	}
	return Result{
		Requested:       requested,
		Installed:       present,
		FamilySupported: g.Supports(requested),
		Qualifying:      g.Qualifying(installed),
		Families:        g.Families(),
	}
}

// Check fetches the installed models and validates requested against them.
func (g *Gate) Check(ctx context.Context, lister Lister, requested string) (Result, error) {
	dir, err := lister.Directory(ctx)
	if err != nil {
		return Result{Requested: requested}, fmt.Errorf("failed to list models: %w", err)
	}
	return g.Validate(requested, dir), nil
}

// Reason explains why validation failed, or returns "" if it passed.
func (r Result) Reason() string {
	switch {
	case r.OK():
		return ""
	case !r.FamilySupported:
		return fmt.Sprintf("Model '%s' is not a thinking model.", r.Requested)
	default:
		return fmt.Sprintf("Model '%s' is not installed.", r.Requested)
	}
}

// Diagnostic returns a user-facing message for a failed validation: the
// reason, followed by the installed models that would qualify or, if there
// are none, how to install one.
func (r Result) Diagnostic() string {
	if r.OK() {
		return ""
	}

	var b strings.Builder
	b.WriteString(r.Reason())
	b.WriteString("\n")

	if len(r.Qualifying) > 0 {
		b.WriteString("Available thinking models:\n")
		for _, m := range r.Qualifying {
			fmt.Fprintf(&b, "- %s\n", m)
		}
		return b.String()
	}

	families := r.Families
	if len(families) == 0 {
		families = DefaultFamilies
	}
	pulls := make([]string, len(families))
	for i, f := range families {
		pulls[i] = "ollama pull " + f
	}
	b.WriteString("No thinking models found. Install with:\n")
	b.WriteString(strings.Join(pulls, " or "))
	b.WriteString("\n")
	return b.String()
}

// Err returns nil for a passing result, otherwise an error wrapping
// ErrModelUnavailable.
func (r Result) Err() error {
	if r.OK() {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrModelUnavailable, r.Reason())
}

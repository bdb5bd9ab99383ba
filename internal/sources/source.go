package sources

import (
	"context"
	"fmt"
	"strings"
)

// Capability tags how a source delivers its image.
type Capability int

const (
	// Resolvable sources return a URL that the pipeline downloads.
	Resolvable Capability = iota + 1
	// Generative sources write the image file themselves.
	Generative
)

func (c Capability) String() string {
	switch c {
	case Resolvable:
		return "resolvable"
	case Generative:
		return "generative"
	default:
		return fmt.Sprintf("capability(%d)", int(c))
	}
}

// Params carries the caller's hints for one acquisition.
type Params struct {
	Query  string
	Color  string
	Latest bool
}

// Candidate is an enumerated item that has not been downloaded yet.
// ContextURL identifies the item across runs and drives deduplication.
type Candidate struct {
	ContextURL  string
	URL         string
	Title       string
	Date        string
	Description string
	Artist      string
	// Extension overrides the extension derived from URL when the URL does
	// not end in one.
	Extension string
}

// RenderFunc writes a generated image into dir and returns its path and
// extension.
type RenderFunc func(ctx context.Context, dir string) (path string, ext string, err error)

// Selection is the outcome of Source.Acquire. Resolvable sources fill
// Candidate.URL; generative sources set Render.
type Selection struct {
	Candidate Candidate
	Trace     Trace
	Render    RenderFunc
}

// Source is an image provider.
type Source interface {
	Name() string
	Capability() Capability
	Acquire(ctx context.Context, params Params) (*Selection, error)
}

// Step is one provenance entry.
type Step struct {
	Name   string
	Detail string
}

// Trace is the ordered list of steps taken to obtain an image.
type Trace []Step

// Add appends a step. Detail is formatted with args when any are given.
func (t *Trace) Add(name, detail string, args ...any) {
	if len(args) > 0 {
		detail = fmt.Sprintf(detail, args...)
	}
	*t = append(*t, Step{Name: name, Detail: strings.TrimSpace(detail)})
}

// MarshalText renders the capability name.
func (c Capability) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText parses a capability name.
func (c *Capability) UnmarshalText(text []byte) error {
	switch string(text) {
	case "resolvable":
		*c = Resolvable
	case "generative":
		*c = Generative
	default:
		return fmt.Errorf("unknown capability %q", text)
	}
	return nil
}

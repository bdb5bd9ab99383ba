package sources

import (
	"context"
	"fmt"
	"strings"

	"wallp/internal/services"
)

// SeenChecker answers whether a context reference was already delivered.
type SeenChecker interface {
	HasSeen(ctx context.Context, contextURL string) (bool, error)
}

// Filter narrows a batch of candidates.
type Filter struct {
	Name  string
	Apply func(ctx context.Context, batch []Candidate) ([]Candidate, error)
}

// Selector picks one candidate in place of filtering and first-survivor
// selection. It receives the unfiltered batch, which may be empty.
type Selector func(ctx context.Context, batch []Candidate) (*Candidate, error)

// Resolver turns a selected candidate into one with a downloadable URL.
type Resolver func(ctx context.Context, c Candidate) (Candidate, error)

// ImageSet accumulates enumerated candidates and applies the dedup and
// selection protocol. It may be kept between acquisitions as a cache: already
// enumerated candidates are re-filtered on every Select, so items delivered in
// the meantime are skipped.
type ImageSet struct {
	source     string
	candidates []Candidate
	filters    []Filter
	selector   Selector
	resolve    Resolver
}

// NewImageSet returns an empty set for the named source.
func NewImageSet(source string) *ImageSet {
	return &ImageSet{source: source}
}

// AddDBFilter drops candidates whose context reference was already delivered.
// Candidates without a context reference are kept.
func (s *ImageSet) AddDBFilter(seen SeenChecker) *ImageSet {
	if seen == nil {
		return s
	}
	return s.AddFilter("history", func(ctx context.Context, batch []Candidate) ([]Candidate, error) {
		out := batch[:0:0]
		for _, c := range batch {
			if c.ContextURL == "" {
				out = append(out, c)
				continue
			}
			used, err := seen.HasSeen(ctx, c.ContextURL)
			if err != nil {
				return nil, services.Wrap(services.ErrTransient, s.source, "history filter", c.ContextURL, err)
			}
			if !used {
				out = append(out, c)
			}
		}
		return out, nil
	})
}

// AddListFilter drops later duplicates of a context reference within the batch.
func (s *ImageSet) AddListFilter() *ImageSet {
	return s.AddFilter("dedup", func(_ context.Context, batch []Candidate) ([]Candidate, error) {
		out := batch[:0:0]
		seen := make(map[string]struct{}, len(batch))
		for _, c := range batch {
			if c.ContextURL != "" {
				if _, dup := seen[c.ContextURL]; dup {
					continue
				}
				seen[c.ContextURL] = struct{}{}
			}
			out = append(out, c)
		}
		return out, nil
	})
}

// AddQueryFilter keeps candidates whose title or description contains query,
// ignoring case. An empty query keeps everything.
func (s *ImageSet) AddQueryFilter(query string) *ImageSet {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return s
	}
	return s.AddFilter("query", func(_ context.Context, batch []Candidate) ([]Candidate, error) {
		out := batch[:0:0]
		for _, c := range batch {
			if strings.Contains(strings.ToLower(c.Title), query) || strings.Contains(strings.ToLower(c.Description), query) {
				out = append(out, c)
			}
		}
		return out, nil
	})
}

// AddFilter appends a custom filter. Filters run in the order added.
func (s *ImageSet) AddFilter(name string, apply func(ctx context.Context, batch []Candidate) ([]Candidate, error)) *ImageSet {
	s.filters = append(s.filters, Filter{Name: name, Apply: apply})
	return s
}

// SetSelector replaces the default first-survivor selection.
func (s *ImageSet) SetSelector(sel Selector) *ImageSet {
	s.selector = sel
	return s
}

// SetResolver installs the hook run on the selected candidate.
func (s *ImageSet) SetResolver(resolve Resolver) *ImageSet {
	s.resolve = resolve
	return s
}

// Add appends enumerated candidates.
func (s *ImageSet) Add(candidates ...Candidate) {
	s.candidates = append(s.candidates, candidates...)
}

// Len returns the number of enumerated candidates, before filtering.
func (s *ImageSet) Len() int {
	return len(s.candidates)
}

// Reset forgets every enumerated candidate.
func (s *ImageSet) Reset() {
	s.candidates = nil
}

// Available returns the candidates that survive every filter.
func (s *ImageSet) Available(ctx context.Context) ([]Candidate, error) {
	batch := append([]Candidate(nil), s.candidates...)
	for _, f := range s.filters {
		var err error
		if batch, err = f.Apply(ctx, batch); err != nil {
			return nil, err
		}
	}
	return batch, nil
}

// Select filters the batch, picks one candidate and resolves it. The trace,
// when non-nil, receives a step for the filter result and the selection. The
// chosen candidate is removed from the set so a cached set never hands it out
// twice.
func (s *ImageSet) Select(ctx context.Context, trace *Trace) (*Candidate, error) {
	var (
		picked *Candidate
		err    error
	)
	if s.selector != nil {
		picked, err = s.selector(ctx, s.candidates)
		if err != nil {
			return nil, err
		}
	} else {
		batch, err := s.Available(ctx)
		if err != nil {
			return nil, err
		}
		if trace != nil {
			trace.Add("filter", "%d of %d candidates unused", len(batch), len(s.candidates))
		}
		if len(batch) > 0 {
			first := batch[0]
			picked = &first
		}
	}
	if picked == nil {
		return nil, services.Wrap(services.ErrExhausted, s.source, "select", fmt.Sprintf("no unused candidates among %d", len(s.candidates)), nil)
	}
	if trace != nil {
		trace.Add("select", describe(*picked))
	}
	s.remove(picked.ContextURL)

	if s.resolve == nil {
		return picked, nil
	}
	resolved, err := s.resolve(ctx, *picked)
	if err != nil {
		return nil, err
	}
	return &resolved, nil
}

func (s *ImageSet) remove(contextURL string) {
	if contextURL == "" {
		return
	}
	kept := s.candidates[:0]
	for _, c := range s.candidates {
		if c.ContextURL != contextURL {
			kept = append(kept, c)
		}
	}
	s.candidates = kept
}

func describe(c Candidate) string {
	switch {
	case c.Title != "" && c.ContextURL != "":
		return c.Title + " " + c.ContextURL
	case c.Title != "":
		return c.Title
	default:
		return c.ContextURL
	}
}

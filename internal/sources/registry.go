package sources

import (
	"math/rand/v2"
	"sort"
	"strings"
)

// Info summarizes a registered source for listings.
type Info struct {
	Name       string     `json:"name"`
	Capability Capability `json:"capability"`
	Enabled    bool       `json:"enabled"`
}

// Registry resolves sources by name or at random among the enabled ones.
type Registry struct {
	sources map[string]Source
	order   []string
	enabled map[string]bool
	intn    func(n int) int
}

// NewRegistry registers srcs and enables the names listed in enabled. Names
// are matched case-insensitively.
func NewRegistry(enabled []string, srcs ...Source) *Registry {
	r := &Registry{
		sources: make(map[string]Source, len(srcs)),
		enabled: make(map[string]bool, len(enabled)),
		intn:    rand.IntN,
	}
	for _, src := range srcs {
		if src == nil {
			continue
		}
		name := normalizeName(src.Name())
		if _, dup := r.sources[name]; !dup {
			r.order = append(r.order, name)
		}
		r.sources[name] = src
	}
	for _, name := range enabled {
		r.enabled[normalizeName(name)] = true
	}
	return r
}

// WithRandom replaces the index picker used by Random. intn must return a
// value in [0, n).
func (r *Registry) WithRandom(intn func(n int) int) *Registry {
	if intn != nil {
		r.intn = intn
	}
	return r
}

// Get returns the named source, or nil when it is unknown or disabled.
func (r *Registry) Get(name string) Source {
	if r == nil {
		return nil
	}
	name = normalizeName(name)
	if !r.enabled[name] {
		return nil
	}
	return r.sources[name]
}

// Random returns a uniformly chosen enabled source, or nil when none is enabled.
func (r *Registry) Random() Source {
	names := r.Enabled()
	if len(names) == 0 {
		return nil
	}
	return r.sources[names[r.intn(len(names))]]
}

// Enabled lists enabled, registered source names in registration order.
func (r *Registry) Enabled() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.order))
	for _, name := range r.order {
		if r.enabled[name] {
			names = append(names, name)
		}
	}
	return names
}

// List describes every registered source, sorted by name.
func (r *Registry) List() []Info {
	if r == nil {
		return nil
	}
	infos := make([]Info, 0, len(r.order))
	for _, name := range r.order {
		infos = append(infos, Info{
			Name:       name,
			Capability: r.sources[name].Capability(),
			Enabled:    r.enabled[name],
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

package workflow

import (
	"fmt"
	"sort"
)

// Registry maps workflow kinds to their ordered step definitions. Registration
// is expected to occur at program initialization time (single-threaded), and
// the registry is read-only afterwards, so no mutex is needed.
type Registry struct {
	kinds map[Kind][]StepDefinition
}

// NewRegistry creates a new, empty Registry ready for kind registration.
func NewRegistry() *Registry {
	return &Registry{
		kinds: make(map[Kind][]StepDefinition),
	}
}

// Register adds the ordered steps for kind. It panics if kind is empty, if
// steps is empty, or if kind has already been registered. These are all
// programming errors that should be caught at startup.
func (r *Registry) Register(kind Kind, steps []StepDefinition) {
	if kind == "" {
		panic("workflow: Register called with empty kind")
	}
	if len(steps) == 0 {
		panic(fmt.Sprintf("workflow: Register called with no steps for kind %q", kind))
	}
	if _, exists := r.kinds[kind]; exists {
		panic(fmt.Sprintf("workflow: kind %q is already registered", kind))
	}
	r.kinds[kind] = append([]StepDefinition(nil), steps...)
}

// Steps returns a copy of the ordered step definitions for kind, or an
// *UnknownKindError if kind was never registered.
func (r *Registry) Steps(kind Kind) ([]StepDefinition, error) {
	steps, ok := r.kinds[kind]
	if !ok {
		return nil, &UnknownKindError{Kind: kind}
	}
	return append([]StepDefinition(nil), steps...), nil
}

// Has reports whether kind is registered.
func (r *Registry) Has(kind Kind) bool {
	_, ok := r.kinds[kind]
	return ok
}

// Kinds returns all registered kinds in alphabetical order.
func (r *Registry) Kinds() []Kind {
	kinds := make([]Kind, 0, len(r.kinds))
	for k := range r.kinds {
		kinds = append(kinds, k)
	}
	sortKinds(kinds)
	return kinds
}

func sortKinds(kinds []Kind) {
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
}

// ParseKind resolves a user-supplied kind name against the registry.
func (r *Registry) ParseKind(name string) (Kind, error) {
	k := Kind(name)
	if !r.Has(k) {
		return "", &UnknownKindError{Kind: k}
	}
	return k, nil
}

package finding

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

var (
	// ErrNotFound is returned when no finding or connection has the given ID.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyOpen is returned by Reopen for a finding that is already Open.
	ErrAlreadyOpen = errors.New("finding is already open")
)

// Store is an in-memory, concurrency-safe set of findings keyed by ID.
type Store struct {
	mu       sync.RWMutex
	findings map[string]Finding
	now      func() time.Time
}

// NewStore creates a store seeded with findings.
func NewStore(findings ...Finding) *Store {
	s := &Store{
		findings: make(map[string]Finding, len(findings)),
		now:      time.Now,
	}
	for _, f := range findings {
		s.findings[f.ID] = f.clone()
	}
	return s
}

// Get returns a copy of the finding with the given ID.
func (s *Store) Get(id string) (Finding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.findings[id]
	if !ok {
		return Finding{}, fmt.Errorf("finding %q: %w", id, ErrNotFound)
	}
	return f.clone(), nil
}

// List returns every finding ordered by ID.
func (s *Store) List() []Finding {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Finding, 0, len(s.findings))
	for _, f := range s.findings {
		out = append(out, f.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Match returns the findings whose ID matches the doublestar pattern, ordered
// by ID. A pattern without metacharacters matches only the exact ID.
func (s *Store) Match(pattern string) ([]Finding, error) {
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("finding: invalid pattern %q: %w", pattern, doublestar.ErrBadPattern)
	}
	var out []Finding
	for _, f := range s.List() {
		if ok, _ := doublestar.Match(pattern, f.ID); ok {
			out = append(out, f)
		}
	}
	return out, nil
}

// SetStatus changes the status of a finding.
func (s *Store) SetStatus(id string, status Status) error {
	return s.update(id, func(f *Finding) error {
		f.Status = status
		return nil
	})
}

// Annotate appends an annotation. A zero At is filled with the current time.
func (s *Store) Annotate(id string, a Annotation) error {
	if a.At.IsZero() {
		a.At = s.now()
	}
	return s.update(id, func(f *Finding) error {
		f.Annotations = append(f.Annotations, a)
		return nil
	})
}

// Reopen restores a Muted or Fixed finding to Open and records the change.
func (s *Store) Reopen(id string) error {
	return s.update(id, func(f *Finding) error {
		if f.Status == StatusOpen {
			return fmt.Errorf("finding %q: %w", id, ErrAlreadyOpen)
		}
		prev := f.Status
		f.Status = StatusOpen
		f.Annotations = append(f.Annotations, Annotation{
			At:      s.now(),
			Kind:    AnnotationReopened,
			Message: fmt.Sprintf("reopened from %s", prev),
		})
		return nil
	})
}

// Counts returns the number of findings per status.
func (s *Store) Counts() map[Status]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[Status]int, 3)
	for _, f := range s.findings {
		out[f.Status]++
	}
	return out
}

func (s *Store) update(id string, fn func(*Finding) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.findings[id]
	if !ok {
		return fmt.Errorf("finding %q: %w", id, ErrNotFound)
	}
	if err := fn(&f); err != nil {
		return err
	}
	s.findings[id] = f
	return nil
}

// Connections tracks the verification state of each provider.
type Connections struct {
	mu    sync.RWMutex
	conns map[Provider]Connection
}

// NewConnections creates a connection set seeded with conns.
func NewConnections(conns ...Connection) *Connections {
	c := &Connections{conns: make(map[Provider]Connection, len(conns))}
	for _, conn := range conns {
		c.conns[conn.Provider] = conn
	}
	return c
}

// Get returns the connection for p.
func (c *Connections) Get(p Provider) (Connection, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	conn, ok := c.conns[p]
	if !ok {
		return Connection{}, fmt.Errorf("connection %q: %w", p, ErrNotFound)
	}
	return conn, nil
}

// Set stores conn, replacing any previous state for its provider.
func (c *Connections) Set(conn Connection) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conns[conn.Provider] = conn
}

// List returns every connection in provider display order.
func (c *Connections) List() []Connection {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Connection, 0, len(c.conns))
	for _, p := range Providers() {
		if conn, ok := c.conns[p]; ok {
			out = append(out, conn)
		}
	}
	return out
}

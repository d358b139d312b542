// Package memory provides in-process implementations of the flowedit
// version store and audit log, used by tests and the example. The
// version-number compare-and-swap semantics match the postgres backend.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/meikuraledutech/flowedit"
)

// Store implements flowedit.VersionStore, flowedit.AuditLog and
// flowedit.AuditReader over mutex-guarded maps.
type Store struct {
	mu       sync.Mutex
	versions map[string][]flowedit.Version
	audit    map[string][]flowedit.AuditEntry
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		versions: make(map[string][]flowedit.Version),
		audit:    make(map[string][]flowedit.AuditEntry),
	}
}

// NextVersionNumber returns max existing number + 1, or 1 for a diagram
// with no versions.
func (s *Store) NextVersionNumber(_ context.Context, diagramID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	max := 0
	for _, v := range s.versions[diagramID] {
		if v.VersionNumber > max {
			max = v.VersionNumber
		}
	}
	return max + 1, nil
}

// Commit appends the version, failing with ErrVersionConflict if its
// number is already taken.
func (s *Store) Commit(_ context.Context, v *flowedit.Version) (*flowedit.Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.versions[v.DiagramID] {
		if existing.VersionNumber == v.VersionNumber {
			return nil, fmt.Errorf("%w: diagram %s version %d", flowedit.ErrVersionConflict, v.DiagramID, v.VersionNumber)
		}
	}
	cp := *v
	s.versions[v.DiagramID] = append(s.versions[v.DiagramID], cp)
	return &cp, nil
}

// Latest returns the highest-numbered version of the diagram.
func (s *Store) Latest(_ context.Context, diagramID string) (*flowedit.Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *flowedit.Version
	for i := range s.versions[diagramID] {
		v := &s.versions[diagramID][i]
		if latest == nil || v.VersionNumber > latest.VersionNumber {
			latest = v
		}
	}
	if latest == nil {
		return nil, fmt.Errorf("%w: diagram %s", flowedit.ErrVersionNotFound, diagramID)
	}
	cp := *latest
	return &cp, nil
}

// History returns all versions, newest first.
func (s *Store) History(_ context.Context, diagramID string) ([]flowedit.Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]flowedit.Version, len(s.versions[diagramID]))
	copy(out, s.versions[diagramID])
	sort.Slice(out, func(i, j int) bool { return out[i].VersionNumber > out[j].VersionNumber })
	return out, nil
}

// Record appends an audit entry.
func (s *Store) Record(_ context.Context, e *flowedit.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audit[e.DiagramID] = append(s.audit[e.DiagramID], *e)
	return nil
}

// Entries returns the audit trail of a diagram in record order.
func (s *Store) Entries(_ context.Context, diagramID string) ([]flowedit.AuditEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]flowedit.AuditEntry, len(s.audit[diagramID]))
	copy(out, s.audit[diagramID])
	return out, nil
}

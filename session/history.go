package session

import (
	"context"

	"github.com/meikuraledutech/flow"
	"github.com/meikuraledutech/flow/diff"
)

// workspace exposes the session to its version manager. Its methods run
// while the session lock is already held.
type workspace struct {
	s *Session
}

// HasPendingChanges is true when the working graph differs both from the
// baseline and from whatever was last loaded into it. Browsing versions
// therefore never counts as an edit.
func (w workspace) HasPendingChanges() bool {
	s := w.s
	if s.diffLocked().Empty() {
		return false
	}
	return diff.GraphHash(s.graph.Nodes, s.graph.Edges) != s.loadedHash
}

func (w workspace) LoadVersion(v *flow.Version) error {
	s := w.s
	g := v.Snapshot.Graph()
	s.graph.Replace(g.Nodes, g.Edges)
	s.loadedHash = diff.GraphHash(s.graph.Nodes, s.graph.Edges)
	return nil
}

func (w workspace) ReloadHead(ctx context.Context) error {
	return w.s.loadLocked(ctx, w.s.appID)
}

// Undo shows the previous persisted version.
func (s *Session) Undo(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.versions == nil {
		return ErrNotLoaded
	}
	return s.versions.Undo(ctx, workspace{s})
}

// Redo shows the next version, or returns to the latest state.
func (s *Session) Redo(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.versions == nil {
		return ErrNotLoaded
	}
	return s.versions.Redo(ctx, workspace{s})
}

// CurrentVersion is the shown version number, 0 at head.
func (s *Session) CurrentVersion() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.versions == nil {
		return 0
	}
	return s.versions.Current()
}

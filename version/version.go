// Package version navigates the persisted versions of an application's
// graph. Browsing a version replaces the working graph but never the
// change-detection baseline, so a later save is still diffed against
// what is actually persisted.
package version

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/meikuraledutech/flow"
)

var (
	ErrNoVersions      = errors.New("version: application has no saved versions")
	ErrAtOldest        = errors.New("version: already at the first version")
	ErrAtHead          = errors.New("version: already at the latest state")
	ErrDiscardDeclined = errors.New("version: discarding unsaved changes was not confirmed")
)

// Source fetches persisted versions.
type Source interface {
	LatestVersion(ctx context.Context, appID string) (int, error)
	GetVersion(ctx context.Context, appID string, version int) (*flow.Version, error)
}

// Workspace is the editor state a Manager drives.
type Workspace interface {
	// HasPendingChanges reports edits that switching would discard.
	HasPendingChanges() bool
	// LoadVersion replaces the working graph only.
	LoadVersion(v *flow.Version) error
	// ReloadHead replaces the working graph and the baseline with the
	// latest persisted state.
	ReloadHead(ctx context.Context) error
}

// Confirmer is asked before pending changes are discarded. target names
// the state being switched to, e.g. "version 3" or "latest".
type Confirmer interface {
	ConfirmDiscard(ctx context.Context, target string) bool
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, target string) bool

func (f ConfirmFunc) ConfirmDiscard(ctx context.Context, target string) bool { return f(ctx, target) }

// AlwaysConfirm discards pending changes without asking.
var AlwaysConfirm = ConfirmFunc(func(context.Context, string) bool { return true })

// Manager tracks which version is shown. A nil current version means the
// working graph is the head, i.e. the latest persisted state plus edits.
type Manager struct {
	appID   string
	src     Source
	confirm Confirmer
	logger  *slog.Logger

	current *flow.Version
	cache   map[int]*flow.Version
}

type Option func(*Manager)

func WithConfirmer(c Confirmer) Option {
	return func(m *Manager) { m.confirm = c }
}

func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// New returns a Manager at head. Without a Confirmer, pending changes are
// never discarded.
func New(appID string, src Source, opts ...Option) *Manager {
	m := &Manager{appID: appID, src: src, cache: map[int]*flow.Version{}}
	for _, o := range opts {
		o(m)
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	return m
}

// CurrentVersionID is the id of the shown version, "" at head.
func (m *Manager) CurrentVersionID() string {
	if m.current == nil {
		return ""
	}
	return m.current.ID
}

// Current is the number of the shown version, 0 at head.
func (m *Manager) Current() int {
	if m.current == nil {
		return 0
	}
	return m.current.Version
}

// AtHead reports whether the working graph is the head.
func (m *Manager) AtHead() bool { return m.current == nil }

// Reset returns to head, after a load or a save.
func (m *Manager) Reset() { m.current = nil }

// Undo shows the previous version: from head the latest persisted one,
// otherwise the one numbered one lower.
func (m *Manager) Undo(ctx context.Context, ws Workspace) error {
	var target int
	if m.current == nil {
		latest, err := m.src.LatestVersion(ctx, m.appID)
		if err != nil {
			return fmt.Errorf("version: latest: %w", err)
		}
		if latest < 1 {
			return ErrNoVersions
		}
		target = latest
	} else {
		if m.current.Version <= 1 {
			return ErrAtOldest
		}
		target = m.current.Version - 1
	}
	return m.show(ctx, ws, target)
}

// Redo shows the next version. From the latest version it returns to head
// by reloading the persisted state.
func (m *Manager) Redo(ctx context.Context, ws Workspace) error {
	if m.current == nil {
		return ErrAtHead
	}
	latest, err := m.src.LatestVersion(ctx, m.appID)
	if err != nil {
		return fmt.Errorf("version: latest: %w", err)
	}
	if m.current.Version >= latest {
		if err := m.confirmDiscard(ctx, ws, "latest"); err != nil {
			return err
		}
		if err := ws.ReloadHead(ctx); err != nil {
			return fmt.Errorf("version: reload head: %w", err)
		}
		m.current = nil
		m.logger.Info("returned to latest state", "app", m.appID)
		return nil
	}
	return m.show(ctx, ws, m.current.Version+1)
}

func (m *Manager) show(ctx context.Context, ws Workspace, n int) error {
	if err := m.confirmDiscard(ctx, ws, "version "+strconv.Itoa(n)); err != nil {
		return err
	}
	v, err := m.version(ctx, n)
	if err != nil {
		return err
	}
	if err := ws.LoadVersion(v); err != nil {
		return fmt.Errorf("version: load %d: %w", n, err)
	}
	m.current = v
	m.logger.Info("showing version", "app", m.appID, "version", n)
	return nil
}

func (m *Manager) confirmDiscard(ctx context.Context, ws Workspace, target string) error {
	if !ws.HasPendingChanges() {
		return nil
	}
	m.logger.Warn("switching version discards unsaved changes", "app", m.appID, "target", target)
	if m.confirm == nil || !m.confirm.ConfirmDiscard(ctx, target) {
		return ErrDiscardDeclined
	}
	return nil
}

func (m *Manager) version(ctx context.Context, n int) (*flow.Version, error) {
	if v, ok := m.cache[n]; ok {
		return v, nil
	}
	v, err := m.src.GetVersion(ctx, m.appID, n)
	if err != nil {
		return nil, fmt.Errorf("version: get %d: %w", n, err)
	}
	if v == nil {
		return nil, fmt.Errorf("version: get %d: %w", n, flow.ErrVersionNotFound)
	}
	m.cache[n] = v
	return v, nil
}

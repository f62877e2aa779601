// Package session is the editing session of one application: the working
// graph, the baseline it is diffed against, validation of edits, saving
// with id reconciliation, version browsing and realtime change push.
//
// A Session is meant to be driven by a single editor. Its methods are
// serialized by an internal lock so that the realtime ticker can read
// the graph safely.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/meikuraledutech/flow"
	"github.com/meikuraledutech/flow/diff"
	"github.com/meikuraledutech/flow/handle"
	"github.com/meikuraledutech/flow/push"
	"github.com/meikuraledutech/flow/reconcile"
	"github.com/meikuraledutech/flow/validate"
	"github.com/meikuraledutech/flow/version"
)

// DefaultViewportThreshold is how far the viewport must move before it is saved.
const DefaultViewportThreshold = 0.1

var ErrNotLoaded = errors.New("session: no application loaded")

type Session struct {
	store     flow.Store
	validator *validate.Validator
	publisher push.Publisher
	confirm   version.Confirmer
	logger    *slog.Logger
	threshold float64

	mu         sync.Mutex
	appID      string
	graph      *flow.Graph
	baseline   *diff.Snapshot
	viewport   *flow.Viewport
	versions   *version.Manager
	loadedHash string

	rtMu sync.Mutex
	rt   *realtime
}

type Option func(*Session)

func WithValidator(v *validate.Validator) Option {
	return func(s *Session) { s.validator = v }
}

// WithPublisher sets where realtime diffs are pushed.
func WithPublisher(p push.Publisher) Option {
	return func(s *Session) { s.publisher = p }
}

// WithConfirmer sets who is asked before version browsing discards edits.
func WithConfirmer(c version.Confirmer) Option {
	return func(s *Session) { s.confirm = c }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

func WithViewportThreshold(t float64) Option {
	return func(s *Session) { s.threshold = t }
}

func New(store flow.Store, opts ...Option) *Session {
	s := &Session{store: store, threshold: DefaultViewportThreshold}
	for _, o := range opts {
		o(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.validator == nil {
		s.validator = validate.New(validate.WithRegistry(handle.NewRegistry(handle.WithLogger(s.logger))))
	}
	return s
}

// Load fetches the application and makes its persisted state both the
// working graph and the baseline. An application never saved loads empty.
func (s *Session) Load(ctx context.Context, appID string) error {
	if appID == "" {
		return flow.ErrApplicationRequired
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadLocked(ctx, appID); err != nil {
		return err
	}
	s.versions = version.New(appID, s.store,
		version.WithConfirmer(s.confirm),
		version.WithLogger(s.logger),
	)
	s.logger.Info("loaded application", "app", appID,
		"nodes", len(s.graph.Nodes), "edges", len(s.graph.Edges))
	return nil
}

func (s *Session) loadLocked(ctx context.Context, appID string) error {
	rec, err := s.store.LoadGraph(ctx, appID)
	if err != nil {
		return fmt.Errorf("session: load %s: %w", appID, err)
	}
	if rec == nil {
		rec = &flow.GraphRecord{ApplicationID: appID}
	}
	g := rec.Graph()
	g.ApplicationID = appID

	s.appID = appID
	s.graph = g
	s.viewport = g.Viewport
	s.baseline = diff.NewSnapshot(g.Nodes, g.Edges, g.Viewport)
	s.loadedHash = diff.GraphHash(g.Nodes, g.Edges)
	return nil
}

// ApplicationID is the loaded application, "" before Load.
func (s *Session) ApplicationID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appID
}

// Graph returns a copy of the working graph.
func (s *Session) Graph() (*flow.Graph, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.graph == nil {
		return nil, ErrNotLoaded
	}
	return s.graph.Clone(), nil
}

// Nodes returns a copy of the working nodes.
func (s *Session) Nodes() []flow.Node {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.graph == nil {
		return nil
	}
	return flow.CloneNodes(s.graph.Nodes)
}

// Edges returns a copy of the working edges.
func (s *Session) Edges() []flow.Edge {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.graph == nil {
		return nil
	}
	return flow.CloneEdges(s.graph.Edges)
}

// Baseline returns the snapshot the working graph is diffed against.
func (s *Session) Baseline() *diff.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.baseline
}

// AddNode adds n to the working graph, minting a temporary id when n has none.
func (s *Session) AddNode(n flow.Node) (flow.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.graph == nil {
		return flow.Node{}, ErrNotLoaded
	}
	if n.ID == "" {
		n.ID = flow.NewTempID("node")
	}
	if err := s.graph.AddNode(n.Clone()); err != nil {
		return flow.Node{}, err
	}
	return n, nil
}

// UpdateNode applies fn to the node with the given id. The id itself
// cannot be changed this way.
func (s *Session) UpdateNode(id string, fn func(n *flow.Node)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.graph == nil {
		return ErrNotLoaded
	}
	n := s.graph.Node(id)
	if n == nil {
		return fmt.Errorf("session: update %q: %w", id, flow.ErrNodeNotFound)
	}
	fn(n)
	n.ID = id
	return nil
}

// RemoveNode deletes a node and its edges from the working graph.
func (s *Session) RemoveNode(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.graph == nil {
		return ErrNotLoaded
	}
	return s.graph.RemoveNode(id)
}

// Connect validates a proposed connection and, when it is allowed, adds
// an edge for it. A rejection is not an error: check Result.Allowed.
func (s *Session) Connect(conn flow.Connection) (flow.Edge, validate.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.graph == nil {
		return flow.Edge{}, validate.Result{}, ErrNotLoaded
	}

	res, err := s.validator.ValidateConnection(conn, s.graph.Node(conn.Source), s.graph.Node(conn.Target), s.graph.Edges)
	if err != nil || !res.Allowed {
		return flow.Edge{}, res, err
	}

	e := flow.Edge{
		ID:           flow.NewTempID("edge"),
		Source:       conn.Source,
		Target:       conn.Target,
		SourceHandle: conn.SourceHandle,
		TargetHandle: conn.TargetHandle,
		Type:         flow.DefaultRenderType,
	}
	if id, kind, err := s.validator.Registry().ResolveID(conn.SourceHandle); err == nil {
		switch kind {
		case handle.Branch:
			e.Data.BranchName = id.Discriminator
		case handle.Thread:
			e.Data.IsParallelChild = true
		}
	}
	e.Data.RenderType = e.Type
	if err := s.graph.AddEdge(e); err != nil {
		return flow.Edge{}, validate.Result{}, err
	}
	return e, res, nil
}

// RemoveEdge validates and performs an edge deletion.
func (s *Session) RemoveEdge(id string) (validate.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.graph == nil {
		return validate.Result{}, ErrNotLoaded
	}
	e := s.graph.Edge(id)
	if e == nil {
		return validate.Result{}, fmt.Errorf("session: remove edge %q: %w", id, flow.ErrEdgeNotFound)
	}
	res := s.validator.ValidateDeletion(*e, s.graph.Node(e.Source), s.graph.Node(e.Target))
	if !res.Allowed {
		return res, nil
	}
	return res, s.graph.RemoveEdge(id)
}

// Diff compares the working graph with the baseline.
func (s *Session) Diff() diff.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.diffLocked()
}

func (s *Session) diffLocked() diff.Result {
	if s.graph == nil {
		return diff.Result{}
	}
	return diff.Compute(s.graph.Nodes, s.graph.Edges, s.baseline)
}

// HasUnsavedChanges reports whether a save would send anything.
func (s *Session) HasUnsavedChanges() bool {
	return !s.Diff().Empty()
}

// Save persists the diff in one batch and reconciles temporary ids. Any
// failure leaves the working graph and the baseline as they were, and
// wraps flow.ErrPersistFailure. With nothing to save it returns nil, nil.
func (s *Session) Save(ctx context.Context) (*flow.BatchSaveResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.graph == nil {
		return nil, ErrNotLoaded
	}

	r := s.diffLocked()
	if r.Empty() {
		return nil, nil
	}
	req, sub, err := BuildRequest(s.appID, r, s.graph.Edges)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %w", flow.ErrPersistFailure, err)
	}

	resp, err := s.store.BatchSave(ctx, req)
	if err != nil {
		s.logger.Error("batch save failed", "app", s.appID, "error", err)
		return nil, fmt.Errorf("%w: %w", flow.ErrPersistFailure, err)
	}
	if resp == nil || !resp.Success {
		msg := "backend reported failure"
		if resp != nil && resp.Message != "" {
			msg = resp.Message
		}
		s.logger.Error("batch save rejected", "app", s.appID, "message", msg)
		return nil, fmt.Errorf("%w: %s", flow.ErrPersistFailure, msg)
	}

	err = reconcile.Reconcile(s.graph, sub, reconcile.Mapping{Nodes: resp.NodeIDMapping, Edges: resp.EdgeIDMapping})
	if err != nil {
		s.logger.Error("id reconciliation failed", "app", s.appID, "error", err)
		return nil, fmt.Errorf("%w: %w", flow.ErrPersistFailure, err)
	}

	s.baseline = diff.NewSnapshot(s.graph.Nodes, s.graph.Edges, s.viewport)
	s.loadedHash = diff.GraphHash(s.graph.Nodes, s.graph.Edges)
	if s.versions != nil {
		s.versions.Reset()
	}
	s.logger.Info("saved application", "app", s.appID, "version", resp.Version,
		"nodesCreated", resp.Stats.NodesCreated, "nodesUpdated", resp.Stats.NodesUpdated,
		"nodesDeleted", resp.Stats.NodesDeleted, "edgesCreated", resp.Stats.EdgesCreated,
		"edgesUpdated", resp.Stats.EdgesUpdated, "edgesDeleted", resp.Stats.EdgesDeleted)
	return resp, nil
}

// SaveViewportIfChanged persists vp when it moved more than the threshold
// from the last saved viewport, and reports whether it did.
func (s *Session) SaveViewportIfChanged(ctx context.Context, vp flow.Viewport) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.graph == nil {
		return false, ErrNotLoaded
	}
	if s.viewport != nil &&
		math.Abs(vp.X-s.viewport.X) <= s.threshold &&
		math.Abs(vp.Y-s.viewport.Y) <= s.threshold &&
		math.Abs(vp.Zoom-s.viewport.Zoom) <= s.threshold {
		return false, nil
	}
	if err := s.store.SaveViewport(ctx, s.appID, vp); err != nil {
		return false, fmt.Errorf("%w: viewport: %w", flow.ErrPersistFailure, err)
	}
	s.viewport = &vp
	s.graph.Viewport = &vp
	return true, nil
}

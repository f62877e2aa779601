// Package memstore is an in-process flow.Store. Saves are atomic: a batch
// runs against a copy of the application state that replaces the original
// only on success.
package memstore

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/meikuraledutech/flow"
)

type version struct {
	id        string
	number    int
	blob      []byte
	createdAt time.Time
}

type app struct {
	nodes    []flow.NodeRecord
	edges    []flow.EdgeRecord
	versions []version
	viewport *flow.Viewport
}

// Store keeps every application in memory. Ids are issued from one
// counter shared by nodes, edges and versions.
type Store struct {
	mu     sync.Mutex
	apps   map[string]*app
	nextID int64
	now    func() time.Time
}

func New() *Store {
	return &Store{apps: map[string]*app{}, now: time.Now}
}

func (s *Store) CreateSchema(ctx context.Context) error { return nil }

// DropSchema forgets every application.
func (s *Store) DropSchema(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.apps = map[string]*app{}
	return nil
}

// LoadGraph returns nil, nil for an unknown application.
func (s *Store) LoadGraph(ctx context.Context, appID string) (*flow.GraphRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.apps[appID]
	if !ok {
		return nil, nil
	}
	rec := a.graph(appID)
	if a.viewport != nil {
		vp := *a.viewport
		rec.Viewport = &vp
	}
	return rec, nil
}

func (s *Store) BatchSave(ctx context.Context, req *flow.BatchSaveRequest) (*flow.BatchSaveResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	work := &memTx{s: s, nextID: s.nextID, apps: map[string]*app{}}
	if a, ok := s.apps[req.ApplicationID]; ok {
		work.apps[req.ApplicationID] = a.clone()
	}
	resp, err := flow.ApplyBatch(ctx, work, req)
	if err != nil {
		return nil, err
	}
	for id, a := range work.apps {
		s.apps[id] = a
	}
	s.nextID = work.nextID
	return resp, nil
}

func (s *Store) SaveViewport(ctx context.Context, appID string, vp flow.Viewport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.apps[appID]
	if a == nil {
		a = &app{}
		s.apps[appID] = a
	}
	a.viewport = &vp
	return nil
}

func (s *Store) DeleteApplication(ctx context.Context, appID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.apps, appID)
	return nil
}

func (s *Store) ListVersions(ctx context.Context, appID string, page, pageSize int, order flow.SortOrder) ([]flow.Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []flow.Version{}
	a := s.apps[appID]
	if a == nil {
		return out, nil
	}
	vs := append([]version(nil), a.versions...)
	sort.Slice(vs, func(i, j int) bool {
		if order == flow.Descending {
			return vs[i].number > vs[j].number
		}
		return vs[i].number < vs[j].number
	})
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	start := (page - 1) * pageSize
	if start >= len(vs) {
		return out, nil
	}
	end := min(start+pageSize, len(vs))
	for _, v := range vs[start:end] {
		fv, err := v.decode(appID)
		if err != nil {
			return nil, err
		}
		out = append(out, *fv)
	}
	return out, nil
}

// GetVersion returns nil, nil when the version does not exist.
func (s *Store) GetVersion(ctx context.Context, appID string, n int) (*flow.Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.apps[appID]
	if a == nil {
		return nil, nil
	}
	for _, v := range a.versions {
		if v.number == n {
			return v.decode(appID)
		}
	}
	return nil, nil
}

func (s *Store) LatestVersion(ctx context.Context, appID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.apps[appID]
	if a == nil {
		return 0, nil
	}
	latest := 0
	for _, v := range a.versions {
		latest = max(latest, v.number)
	}
	return latest, nil
}

func (v version) decode(appID string) (*flow.Version, error) {
	snap, err := flow.DecodeSnapshot(v.blob)
	if err != nil {
		return nil, err
	}
	return &flow.Version{
		ID:            v.id,
		ApplicationID: appID,
		Version:       v.number,
		Snapshot:      snap,
		CreatedAt:     v.createdAt,
	}, nil
}

func (a *app) graph(appID string) *flow.GraphRecord {
	rec := &flow.GraphRecord{
		ApplicationID: appID,
		Nodes:         make([]flow.NodeRecord, 0, len(a.nodes)),
		Edges:         make([]flow.EdgeRecord, 0, len(a.edges)),
	}
	for _, n := range a.nodes {
		rec.Nodes = append(rec.Nodes, copyOf(n))
	}
	for _, e := range a.edges {
		rec.Edges = append(rec.Edges, copyOf(e))
	}
	return rec
}

func (a *app) clone() *app {
	c := &app{
		versions: append([]version(nil), a.versions...),
	}
	for _, n := range a.nodes {
		c.nodes = append(c.nodes, copyOf(n))
	}
	for _, e := range a.edges {
		c.edges = append(c.edges, copyOf(e))
	}
	if a.viewport != nil {
		vp := *a.viewport
		c.viewport = &vp
	}
	return c
}

// copyOf deep-copies a record through its JSON form.
func copyOf[T any](v T) T {
	b, err := json.Marshal(v)
	if err != nil {
		panic("memstore: record is not JSON encodable: " + err.Error())
	}
	var out T
	if err := json.Unmarshal(b, &out); err != nil {
		panic("memstore: record does not decode: " + err.Error())
	}
	return out
}

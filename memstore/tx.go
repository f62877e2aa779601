package memstore

import (
	"context"
	"strconv"

	"github.com/meikuraledutech/flow"
)

// memTx is the working copy a batch runs against.
type memTx struct {
	s      *Store
	apps   map[string]*app
	nextID int64
}

func (t *memTx) app(appID string) *app {
	a := t.apps[appID]
	if a == nil {
		a = &app{}
		t.apps[appID] = a
	}
	return a
}

func (t *memTx) newID() string {
	t.nextID++
	return strconv.FormatInt(t.nextID, 10)
}

func (t *memTx) DeleteEdge(ctx context.Context, appID, id string) error {
	a := t.app(appID)
	kept := a.edges[:0]
	for _, e := range a.edges {
		if e.ID != id {
			kept = append(kept, e)
		}
	}
	a.edges = kept
	return nil
}

// DeleteNode removes the node and, like a cascading foreign key, its edges.
func (t *memTx) DeleteNode(ctx context.Context, appID, id string) error {
	a := t.app(appID)
	nodes := a.nodes[:0]
	for _, n := range a.nodes {
		if n.ID != id {
			nodes = append(nodes, n)
		}
	}
	a.nodes = nodes
	edges := a.edges[:0]
	for _, e := range a.edges {
		if e.Source != id && e.Target != id {
			edges = append(edges, e)
		}
	}
	a.edges = edges
	return nil
}

func (t *memTx) InsertNode(ctx context.Context, appID string, rec flow.NodeRecord) (string, error) {
	rec = copyOf(rec)
	rec.ID = t.newID()
	t.app(appID).nodes = append(t.app(appID).nodes, rec)
	return rec.ID, nil
}

func (t *memTx) GetNode(ctx context.Context, appID, id string) (*flow.NodeRecord, error) {
	for _, n := range t.app(appID).nodes {
		if n.ID == id {
			c := copyOf(n)
			return &c, nil
		}
	}
	return nil, nil
}

func (t *memTx) PutNode(ctx context.Context, appID string, rec flow.NodeRecord) error {
	a := t.app(appID)
	for i := range a.nodes {
		if a.nodes[i].ID == rec.ID {
			a.nodes[i] = copyOf(rec)
			return nil
		}
	}
	return flow.ErrNodeNotFound
}

func (t *memTx) InsertEdge(ctx context.Context, appID string, rec flow.EdgeRecord) (string, error) {
	a := t.app(appID)
	if !a.hasNode(rec.Source) || !a.hasNode(rec.Target) {
		return "", flow.ErrUnknownReference
	}
	rec = copyOf(rec)
	rec.ID = t.newID()
	a.edges = append(a.edges, rec)
	return rec.ID, nil
}

func (t *memTx) GetEdge(ctx context.Context, appID, id string) (*flow.EdgeRecord, error) {
	for _, e := range t.app(appID).edges {
		if e.ID == id {
			c := copyOf(e)
			return &c, nil
		}
	}
	return nil, nil
}

func (t *memTx) PutEdge(ctx context.Context, appID string, rec flow.EdgeRecord) error {
	a := t.app(appID)
	if !a.hasNode(rec.Source) || !a.hasNode(rec.Target) {
		return flow.ErrUnknownReference
	}
	for i := range a.edges {
		if a.edges[i].ID == rec.ID {
			a.edges[i] = copyOf(rec)
			return nil
		}
	}
	return flow.ErrEdgeNotFound
}

func (t *memTx) LoadGraph(ctx context.Context, appID string) (*flow.GraphRecord, error) {
	return t.app(appID).graph(appID), nil
}

func (t *memTx) InsertVersion(ctx context.Context, appID string, snapshot flow.GraphRecord) (int, error) {
	blob, err := flow.EncodeSnapshot(snapshot)
	if err != nil {
		return 0, err
	}
	a := t.app(appID)
	n := 1
	for _, v := range a.versions {
		n = max(n, v.number+1)
	}
	a.versions = append(a.versions, version{
		id:        t.newID(),
		number:    n,
		blob:      blob,
		createdAt: t.s.now().UTC(),
	})
	return n, nil
}

func (a *app) hasNode(id string) bool {
	for _, n := range a.nodes {
		if n.ID == id {
			return true
		}
	}
	return false
}

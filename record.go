package flow

import (
	"encoding/json"
	"fmt"
)

// NodeRecord is the persisted form of a node.
type NodeRecord struct {
	ID                    string                  `json:"id,omitempty"`
	ApplicationID         string                  `json:"applicationId,omitempty"`
	Name                  string                  `json:"name"`
	Type                  NodeType                `json:"type"`
	Description           string                  `json:"description"`
	Config                map[string]any          `json:"config"`
	PositionX             float64                 `json:"positionX"`
	PositionY             float64                 `json:"positionY"`
	Prompt                string                  `json:"prompt"`
	ProcessorLanguage     string                  `json:"processorLanguage"`
	ProcessorCode         string                  `json:"processorCode"`
	APIConfig             map[string]any          `json:"apiConfig"`
	ParallelConfig        *ParallelConfig         `json:"parallelConfig"`
	BranchNodes           map[string]BranchConfig `json:"branchNodes"`
	WorkflowApplicationID string                  `json:"workflowApplicationId"`
	Async                 bool                    `json:"async"`
	Timeout               int                     `json:"timeout"`
	RetryCount            int                     `json:"retryCount"`
	Color                 string                  `json:"color"`
}

// EdgeRecord is the persisted form of an edge. Type is the backend kind;
// the render type travels in Data.
type EdgeRecord struct {
	ID            string         `json:"id,omitempty"`
	ApplicationID string         `json:"applicationId,omitempty"`
	Source        string         `json:"source"`
	Target        string         `json:"target"`
	SourceHandle  string         `json:"sourceHandle"`
	TargetHandle  string         `json:"targetHandle"`
	Type          EdgeKind       `json:"type"`
	Label         string         `json:"label"`
	BranchName    string         `json:"branchName"`
	Animated      bool           `json:"animated"`
	Style         map[string]any `json:"style"`
	Data          EdgeData       `json:"data"`
}

// GraphRecord is a whole persisted graph, as loaded or as stored in a version.
type GraphRecord struct {
	ApplicationID string       `json:"applicationId,omitempty"`
	Nodes         []NodeRecord `json:"nodes"`
	Edges         []EdgeRecord `json:"edges"`
	Viewport      *Viewport    `json:"viewport,omitempty"`
}

// NodeToRecord maps a node to its persisted form. The branch map is
// derived from edges, never copied from the node.
func NodeToRecord(n Node, edges []Edge) NodeRecord {
	cfg := cloneMap(n.Data.Config)
	if cfg == nil {
		cfg = map[string]any{}
	}
	rec := NodeRecord{
		ID:                    n.ID,
		Name:                  n.Data.Label,
		Type:                  n.Type,
		Description:           n.Data.Description,
		Config:                cfg,
		PositionX:             n.Position.X,
		PositionY:             n.Position.Y,
		Prompt:                n.Data.Prompt,
		ProcessorLanguage:     n.Data.ProcessorLanguage,
		ProcessorCode:         n.Data.ProcessorCode,
		APIConfig:             cloneMap(n.Data.APIConfig),
		BranchNodes:           BranchMap(n, edges, nil),
		WorkflowApplicationID: n.Data.WorkflowApplicationID,
		Async:                 n.Data.Async,
		Timeout:               n.Data.Timeout,
		RetryCount:            n.Data.RetryCount,
		Color:                 n.Data.Color,
	}
	if n.Data.ParallelConfig != nil {
		pc := *n.Data.ParallelConfig
		rec.ParallelConfig = &pc
	}
	return rec
}

// NodeFromRecord hydrates a node from its persisted form.
func NodeFromRecord(r NodeRecord) Node {
	n := Node{
		ID:       r.ID,
		Type:     r.Type,
		Position: Position{X: r.PositionX, Y: r.PositionY},
		Data: NodeData{
			Label:                 r.Name,
			Description:           r.Description,
			Config:                cloneMap(r.Config),
			Prompt:                r.Prompt,
			ProcessorLanguage:     r.ProcessorLanguage,
			ProcessorCode:         r.ProcessorCode,
			APIConfig:             cloneMap(r.APIConfig),
			WorkflowApplicationID: r.WorkflowApplicationID,
			Async:                 r.Async,
			Timeout:               r.Timeout,
			RetryCount:            r.RetryCount,
			Color:                 r.Color,
		},
	}
	if r.ParallelConfig != nil {
		pc := *r.ParallelConfig
		n.Data.ParallelConfig = &pc
	}
	if len(r.BranchNodes) > 0 {
		n.Data.BranchNodes = make(map[string]BranchConfig, len(r.BranchNodes))
		for k, b := range r.BranchNodes {
			n.Data.BranchNodes[k] = b
		}
	}
	return n
}

// EdgeToRecord maps an edge to its persisted form.
func EdgeToRecord(e Edge) EdgeRecord {
	return EdgeRecord{
		ID:           e.ID,
		Source:       e.Source,
		Target:       e.Target,
		SourceHandle: e.SourceHandle,
		TargetHandle: e.TargetHandle,
		Type:         e.Kind(),
		Label:        e.Label,
		BranchName:   e.Data.BranchName,
		Animated:     e.Animated,
		Style:        cloneMap(e.Style),
		Data: EdgeData{
			IsParallelChild: e.Data.IsParallelChild,
			RenderType:      e.Type,
		},
	}
}

// EdgeFromRecord hydrates an edge. The render type comes back from Data
// and defaults to DefaultRenderType.
func EdgeFromRecord(r EdgeRecord) Edge {
	render := r.Data.RenderType
	if render == "" {
		render = DefaultRenderType
	}
	branch := r.BranchName
	if branch == "" {
		branch = r.Data.BranchName
	}
	return Edge{
		ID:           r.ID,
		Source:       r.Source,
		Target:       r.Target,
		SourceHandle: r.SourceHandle,
		TargetHandle: r.TargetHandle,
		Type:         render,
		Label:        r.Label,
		Animated:     r.Animated,
		Style:        cloneMap(r.Style),
		Data: EdgeData{
			BranchName:      branch,
			IsParallelChild: r.Data.IsParallelChild || r.Type == EdgeParallel,
			RenderType:      render,
		},
	}
}

// Graph hydrates the record into a working graph.
func (r *GraphRecord) Graph() *Graph {
	g := &Graph{ApplicationID: r.ApplicationID}
	g.Nodes = make([]Node, 0, len(r.Nodes))
	for _, n := range r.Nodes {
		g.Nodes = append(g.Nodes, NodeFromRecord(n))
	}
	g.Edges = make([]Edge, 0, len(r.Edges))
	for _, e := range r.Edges {
		g.Edges = append(g.Edges, EdgeFromRecord(e))
	}
	if r.Viewport != nil {
		vp := *r.Viewport
		g.Viewport = &vp
	}
	return g
}

// ApplyNodeFields overlays a partial update, keyed by backend field name,
// onto rec.
func ApplyNodeFields(rec *NodeRecord, fields map[string]any) error {
	return overlay(rec, fields)
}

// ApplyEdgeFields overlays a partial update onto rec.
func ApplyEdgeFields(rec *EdgeRecord, fields map[string]any) error {
	return overlay(rec, fields)
}

func overlay[T any](dst *T, fields map[string]any) error {
	base, err := toFieldMap(dst)
	if err != nil {
		return err
	}
	for k, v := range fields {
		base[k] = v
	}
	b, err := json.Marshal(base)
	if err != nil {
		return fmt.Errorf("flow: apply fields: %w", err)
	}
	var fresh T
	if err := json.Unmarshal(b, &fresh); err != nil {
		return fmt.Errorf("flow: apply fields: %w", err)
	}
	*dst = fresh
	return nil
}

func toFieldMap(v any) (map[string]any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("flow: encode fields: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("flow: decode fields: %w", err)
	}
	return m, nil
}

package flow

import (
	"regexp"

	"github.com/google/uuid"
)

// NodeType is the closed set of node kinds the editor can place.
type NodeType string

const (
	NodeInput         NodeType = "user_input"
	NodeTerminal      NodeType = "end_node"
	NodeTaskGenerator NodeType = "todo_task_generator"
	NodeCondition     NodeType = "condition_checker"
	NodeParallel      NodeType = "parallel_executor"
	NodeAPICall       NodeType = "api_caller"
	NodeDataTransform NodeType = "data_processor"
	NodeLoop          NodeType = "while_loop"
	NodeModelCall     NodeType = "llm_caller"
	NodeSubWorkflow   NodeType = "workflow"
)

// EdgeKind is the backend classification of an edge.
type EdgeKind string

const (
	EdgeDefault  EdgeKind = "default"
	EdgeBranch   EdgeKind = "branch"
	EdgeParallel EdgeKind = "parallel"
)

// DefaultRenderType is the render type restored for edges persisted without one.
const DefaultRenderType = "smoothstep"

type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Viewport is the canvas pan/zoom state of an application.
type Viewport struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Zoom float64 `json:"zoom"`
}

// BranchConfig describes one declared branch of a condition node.
// TargetNodeID is derived from the edges and is empty for an unconnected branch.
type BranchConfig struct {
	Name         string `json:"name"`
	Condition    string `json:"condition"`
	HandlerID    string `json:"handlerId,omitempty"`
	TargetNodeID string `json:"targetNodeId,omitempty"`
}

type ParallelConfig struct {
	Mode       string `json:"mode,omitempty"`
	MaxThreads int    `json:"maxThreads,omitempty"`
	Timeout    int    `json:"timeout,omitempty"`
}

// ParallelChild is display state for a thread of a parallel executor.
type ParallelChild struct {
	ID    string `json:"id"`
	Label string `json:"label,omitempty"`
}

// NodeData is the payload of a node. ParallelChildren and Loading are
// display state and never take part in change detection or persistence.
type NodeData struct {
	Label                 string                  `json:"label,omitempty"`
	Description           string                  `json:"description,omitempty"`
	Config                map[string]any          `json:"config,omitempty"`
	Prompt                string                  `json:"prompt,omitempty"`
	ProcessorLanguage     string                  `json:"processorLanguage,omitempty"`
	ProcessorCode         string                  `json:"processorCode,omitempty"`
	APIConfig             map[string]any          `json:"apiConfig,omitempty"`
	ParallelConfig        *ParallelConfig         `json:"parallelConfig,omitempty"`
	BranchNodes           map[string]BranchConfig `json:"branchNodes,omitempty"`
	WorkflowApplicationID string                  `json:"workflowApplicationId,omitempty"`
	Async                 bool                    `json:"async,omitempty"`
	Timeout               int                     `json:"timeout,omitempty"`
	RetryCount            int                     `json:"retryCount,omitempty"`
	Color                 string                  `json:"color,omitempty"`

	ParallelChildren []ParallelChild `json:"parallelChildren,omitempty"`
	Loading          bool            `json:"loading,omitempty"`
}

// Node is a vertex on the canvas.
type Node struct {
	ID       string   `json:"id"`
	Type     NodeType `json:"type"`
	Position Position `json:"position"`
	Data     NodeData `json:"data"`
	Selected bool     `json:"selected,omitempty"`
}

// EdgeData carries the backend classification of an edge and an echo of
// its render type.
type EdgeData struct {
	BranchName      string `json:"branchName,omitempty"`
	IsParallelChild bool   `json:"isParallelChild,omitempty"`
	RenderType      string `json:"renderType,omitempty"`
}

// Edge is a directed connection between two handles.
type Edge struct {
	ID           string         `json:"id"`
	Source       string         `json:"source"`
	Target       string         `json:"target"`
	SourceHandle string         `json:"sourceHandle"`
	TargetHandle string         `json:"targetHandle"`
	Type         string         `json:"type,omitempty"`
	Label        string         `json:"label,omitempty"`
	Animated     bool           `json:"animated,omitempty"`
	Style        map[string]any `json:"style,omitempty"`
	Data         EdgeData       `json:"data"`
	Selected     bool           `json:"selected,omitempty"`
}

// Kind classifies the edge: parallel wins over branch, branch over default.
func (e Edge) Kind() EdgeKind {
	switch {
	case e.Data.IsParallelChild:
		return EdgeParallel
	case e.Data.BranchName != "":
		return EdgeBranch
	default:
		return EdgeDefault
	}
}

// Connection is a proposed edge before it is committed to the graph.
type Connection struct {
	Source       string `json:"source"`
	Target       string `json:"target"`
	SourceHandle string `json:"sourceHandle"`
	TargetHandle string `json:"targetHandle"`
}

var persistedID = regexp.MustCompile(`^\d+$`)

// IsPersistedID reports whether id was issued by the backend.
func IsPersistedID(id string) bool { return persistedID.MatchString(id) }

// IsTemporaryID reports whether id was minted on the client and has not
// been reconciled yet.
func IsTemporaryID(id string) bool { return !IsPersistedID(id) }

// NewTempID returns a fresh temporary id. It never matches IsPersistedID.
func NewTempID(prefix string) string {
	if prefix == "" {
		prefix = "tmp"
	}
	return prefix + "-" + uuid.NewString()
}

package flow

// Paths reported by change detection that are not plain data fields.
const (
	PathPosition    = "position"
	PathType        = "type"
	PathBranchNodes = "data.branchNodes"
)

// NodeField is one business field of a node: the path change detection
// reports, the backend keys it is persisted under, and its current value.
type NodeField struct {
	Path  string
	Keys  []string
	Value func(n Node) any
}

// EdgeField is one business field of an edge.
type EdgeField struct {
	Path  string
	Keys  []string
	Value func(e Edge) any
}

var nodeFields = []NodeField{
	{PathPosition, []string{"positionX", "positionY"}, func(n Node) any { return n.Position }},
	{PathType, []string{"type"}, func(n Node) any { return n.Type }},
	{"data.label", []string{"name"}, func(n Node) any { return n.Data.Label }},
	{"data.description", []string{"description"}, func(n Node) any { return n.Data.Description }},
	{"data.config", []string{"config"}, func(n Node) any { return nonNilMap(n.Data.Config) }},
	{"data.prompt", []string{"prompt"}, func(n Node) any { return n.Data.Prompt }},
	{"data.processorLanguage", []string{"processorLanguage"}, func(n Node) any { return n.Data.ProcessorLanguage }},
	{"data.processorCode", []string{"processorCode"}, func(n Node) any { return n.Data.ProcessorCode }},
	{"data.apiConfig", []string{"apiConfig"}, func(n Node) any { return n.Data.APIConfig }},
	{"data.parallelConfig", []string{"parallelConfig"}, func(n Node) any { return n.Data.ParallelConfig }},
	{"data.workflowApplicationId", []string{"workflowApplicationId"}, func(n Node) any { return n.Data.WorkflowApplicationID }},
	{"data.async", []string{"async"}, func(n Node) any { return n.Data.Async }},
	{"data.timeout", []string{"timeout"}, func(n Node) any { return n.Data.Timeout }},
	{"data.retryCount", []string{"retryCount"}, func(n Node) any { return n.Data.RetryCount }},
	{"data.color", []string{"color"}, func(n Node) any { return n.Data.Color }},
}

var edgeFields = []EdgeField{
	{"source", []string{"source"}, func(e Edge) any { return e.Source }},
	{"target", []string{"target"}, func(e Edge) any { return e.Target }},
	{"sourceHandle", []string{"sourceHandle"}, func(e Edge) any { return e.SourceHandle }},
	{"targetHandle", []string{"targetHandle"}, func(e Edge) any { return e.TargetHandle }},
	{"type", []string{"type"}, func(e Edge) any { return e.Kind() }},
	{"label", []string{"label"}, func(e Edge) any { return e.Label }},
	{"branchName", []string{"branchName"}, func(e Edge) any { return e.Data.BranchName }},
	{"animated", []string{"animated"}, func(e Edge) any { return e.Animated }},
	{"style", []string{"style"}, func(e Edge) any { return e.Style }},
	{"data.renderType", []string{"data"}, func(e Edge) any { return e.Type }},
	{"data", []string{"data"}, func(e Edge) any { return e.Data.IsParallelChild }},
}

// NodeFields returns the business fields of a node, in reporting order.
// The branch map is not listed: it is derived from edges.
func NodeFields() []NodeField { return nodeFields }

// EdgeFields returns the business fields of an edge, in reporting order.
func EdgeFields() []EdgeField { return edgeFields }

func nodeKeys(path string) []string {
	if path == PathBranchNodes {
		return []string{"branchNodes"}
	}
	for _, f := range nodeFields {
		if f.Path == path {
			return f.Keys
		}
	}
	return nil
}

func edgeKeys(path string) []string {
	for _, f := range edgeFields {
		if f.Path == path {
			return f.Keys
		}
	}
	return nil
}

func nonNilMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

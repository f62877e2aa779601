package handle

// Kind is the wire name of a handle kind, the second segment of a handle id.
type Kind string

const (
	CommonInput        Kind = "common-input"
	CommonOutput       Kind = "common-output"
	StartOutput        Kind = "start-output"
	EndInput           Kind = "end-input"
	TaskInput          Kind = "task-input"
	TaskOutput         Kind = "task-output"
	ConditionInput     Kind = "condition-input"
	Branch             Kind = "branch"
	ParallelInput      Kind = "parallel-input"
	Thread             Kind = "thread"
	ParallelChildInput Kind = "parallel-child-input"
	APIInput           Kind = "api-input"
	APIOutput          Kind = "api-output"
	DataInput          Kind = "data-input"
	DataOutput         Kind = "data-output"
	LoopInput          Kind = "loop-input"
	LoopBody           Kind = "loop-body"
	LoopContinue       Kind = "loop-continue"
	LoopFeedback       Kind = "loop-feedback"
	ModelInput         Kind = "llm-input"
	ModelOutput        Kind = "llm-output"
	WorkflowInput      Kind = "workflow-input"
	WorkflowOutput     Kind = "workflow-output"
)

// Direction tells whether a handle receives or emits connections.
type Direction int

const (
	Output Direction = iota
	Input
)

func (d Direction) String() string {
	if d == Input {
		return "input"
	}
	return "output"
}

// Unlimited marks a cardinality without an upper bound.
const Unlimited = -1

// Limits bounds how many edges one handle instance may carry.
// Zero forbids the direction entirely.
type Limits struct {
	MaxIncoming int `json:"maxIncoming"`
	MaxOutgoing int `json:"maxOutgoing"`
}

// Allows reports whether a handle already carrying n edges may take one more
// under max.
func Allows(max, n int) bool {
	return max == Unlimited || n < max
}

type kindInfo struct {
	label     string
	direction Direction
	limits    Limits
}

var (
	outputLimits = Limits{MaxIncoming: 0, MaxOutgoing: 1}
	inputLimits  = Limits{MaxIncoming: Unlimited, MaxOutgoing: 0}
	singleInput  = Limits{MaxIncoming: 1, MaxOutgoing: 0}
)

// kinds lists every known kind in display order.
var kinds = []Kind{
	StartOutput, EndInput,
	TaskInput, TaskOutput,
	ConditionInput, Branch,
	ParallelInput, Thread, ParallelChildInput,
	APIInput, APIOutput,
	DataInput, DataOutput,
	LoopInput, LoopBody, LoopContinue, LoopFeedback,
	ModelInput, ModelOutput,
	WorkflowInput, WorkflowOutput,
	CommonInput, CommonOutput,
}

var kindTable = map[Kind]kindInfo{
	CommonInput:        {"Common input", Input, inputLimits},
	CommonOutput:       {"Common output", Output, outputLimits},
	StartOutput:        {"Start output", Output, outputLimits},
	EndInput:           {"End input", Input, inputLimits},
	TaskInput:          {"Task generator input", Input, inputLimits},
	TaskOutput:         {"Task generator output", Output, outputLimits},
	ConditionInput:     {"Condition input", Input, inputLimits},
	Branch:             {"Condition branch output", Output, outputLimits},
	ParallelInput:      {"Parallel executor input", Input, inputLimits},
	Thread:             {"Parallel thread output", Output, outputLimits},
	ParallelChildInput: {"Parallel child input", Input, singleInput},
	APIInput:           {"API caller input", Input, inputLimits},
	APIOutput:          {"API caller output", Output, outputLimits},
	DataInput:          {"Data processor input", Input, inputLimits},
	DataOutput:         {"Data processor output", Output, outputLimits},
	LoopInput:          {"Loop input", Input, inputLimits},
	LoopBody:           {"Loop body output", Output, outputLimits},
	LoopContinue:       {"Loop continue output", Output, outputLimits},
	LoopFeedback:       {"Loop feedback input", Input, singleInput},
	ModelInput:         {"LLM caller input", Input, inputLimits},
	ModelOutput:        {"LLM caller output", Output, outputLimits},
	WorkflowInput:      {"Workflow input", Input, inputLimits},
	WorkflowOutput:     {"Workflow output", Output, outputLimits},
}

// commonTargets are the inputs every ordinary output may reach.
var commonTargets = []Kind{
	CommonInput, TaskInput, ConditionInput, ParallelInput, APIInput,
	DataInput, LoopInput, ModelInput, WorkflowInput, EndInput,
}

func defaultMatrix() map[Kind][]Kind {
	m := map[Kind][]Kind{}
	for _, src := range []Kind{
		CommonOutput, StartOutput, TaskOutput, Branch, APIOutput,
		DataOutput, LoopContinue, ModelOutput, WorkflowOutput,
	} {
		m[src] = commonTargets
	}

	body := make([]Kind, 0, len(commonTargets))
	for _, k := range commonTargets {
		if k != WorkflowInput && k != EndInput {
			body = append(body, k)
		}
	}
	m[LoopBody] = append(body, LoopFeedback)

	m[Thread] = []Kind{ParallelChildInput}
	return m
}

package mdpreview

// State is a step of a render cycle.
type State int

// Cycle states. Committed and Error end a cycle; a dropped cycle goes
// straight back to Idle.
const (
	Idle State = iota
	Parsing
	MathProcessing
	DiagramProcessing
	ScrollRestoring
	Committed
	Error
)

var stateNames = [...]string{
	Idle:              "idle",
	Parsing:           "parsing",
	MathProcessing:    "math",
	DiagramProcessing: "diagrams",
	ScrollRestoring:   "scroll",
	Committed:         "committed",
	Error:             "error",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Transition is one state change of a cycle.
type Transition struct {
	CycleID uint64
	From    State
	To      State
	Err     error // set when To is Error
}

// Observer is called synchronously on every transition. It must not block.
type Observer func(Transition)

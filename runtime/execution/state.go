package execution

// State represents the lifecycle state of a runtime node
type State string

const (
	StateIdle     State = "idle"
	StateRunning  State = "running"
	StateFinished State = "finished"
)

// Kind distinguishes group and task nodes
type Kind string

const (
	KindGroup Kind = "group"
	KindTask  Kind = "task"
)

// NodeInfo describes a runtime node to observers.
type NodeInfo struct {
	RunID string
	Path  string
	Name  string
	Kind  Kind
	// Iteration is the enclosing loop iteration, -1 outside loops.
	Iteration int
}

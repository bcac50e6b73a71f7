package engine

// Status is the reproduction state machine position of one stage.
//
// Transitions, evaluated in topological order (producers first):
//
//	Unknown → Evaluating
//	Evaluating → UpToDate   (terminal: deps match, outputs cached, not forced)
//	Evaluating → Stale      (dep changed, output missing/corrupt, or forced)
//	Evaluating → Skipped    (terminal: stage is locked but would be stale)
//	Stale → Running         (command executing)
//	Running → Committed     (terminal: outputs cached, record persisted)
//	Running → Failed        (terminal: non-zero exit or IO error; aborts
//	                         the remaining traversal)
type Status int

const (
	StatusUnknown Status = iota
	StatusEvaluating
	StatusUpToDate
	StatusStale
	StatusSkipped
	StatusRunning
	StatusCommitted
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusUnknown:
		return "unknown"
	case StatusEvaluating:
		return "evaluating"
	case StatusUpToDate:
		return "up to date"
	case StatusStale:
		return "stale"
	case StatusSkipped:
		return "skipped"
	case StatusRunning:
		return "running"
	case StatusCommitted:
		return "committed"
	case StatusFailed:
		return "failed"
	default:
		return "invalid"
	}
}

// Terminal reports whether the status ends a stage's traversal.
func (s Status) Terminal() bool {
	switch s {
	case StatusUpToDate, StatusSkipped, StatusCommitted, StatusFailed:
		return true
	default:
		return false
	}
}

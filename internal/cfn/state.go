package cfn

import "fmt"

// DeployState is the lifecycle state of one deployment attempt.
type DeployState string

// Deployment lifecycle states. Applied and Deleted are terminal successes;
// Failed is terminal and reachable from any non-terminal state. The
// Deleting/Deleted branch is entered only from Applied, on an explicit
// teardown request.
const (
	StateValidating   DeployState = "validating"
	StatePreviewing   DeployState = "previewing"
	StatePreviewReady DeployState = "preview_ready"
	StateApplying     DeployState = "applying"
	StateApplied      DeployState = "applied"
	StateFailed       DeployState = "failed"
	StateDeleting     DeployState = "deleting"
	StateDeleted      DeployState = "deleted"
)

// stateTransitions is the legal transition table. Keeping it explicit makes
// illegal sequencing (e.g. apply before preview) a constructible, testable
// error instead of implicit control flow.
var stateTransitions = map[DeployState][]DeployState{
	StateValidating:   {StatePreviewing, StateFailed},
	StatePreviewing:   {StatePreviewReady, StateFailed},
	StatePreviewReady: {StateApplying, StateFailed},
	StateApplying:     {StateApplied, StateFailed},
	StateApplied:      {StateDeleting},
	StateDeleting:     {StateDeleted, StateFailed},
	StateFailed:       {},
	StateDeleted:      {},
}

// deployment tracks the state of one attempt. Attempts are per-call and
// never shared across concurrent operations.
type deployment struct {
	state DeployState
}

// newDeployment starts an attempt in the given state. Operations that pick
// up mid-lifecycle (describe, execute, delete) start at the state their
// preconditions imply.
func newDeployment(start DeployState) *deployment {
	return &deployment{state: start}
}

// transition moves the attempt to the target state, or reports an illegal
// transition.
func (d *deployment) transition(to DeployState) error {
	for _, allowed := range stateTransitions[d.state] {
		if allowed == to {
			d.state = to
			return nil
		}
	}
	return fmt.Errorf("illegal deployment transition %s -> %s", d.state, to)
}

// fail moves the attempt to Failed from any non-terminal state.
func (d *deployment) fail() {
	if d.state != StateApplied && d.state != StateDeleted {
		d.state = StateFailed
	}
}

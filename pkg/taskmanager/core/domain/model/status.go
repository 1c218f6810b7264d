package model

// RunStatus is the position of a Run in the execute/commit/rollback state machine.
type RunStatus string

const (
	RunStatusRunning       RunStatus = "RUNNING"
	RunStatusFailed        RunStatus = "FAILED"
	RunStatusReadyToCommit RunStatus = "READY_TO_COMMIT"
	RunStatusCommitting    RunStatus = "COMMITTING"
	RunStatusCommitted     RunStatus = "COMMITTED"
	RunStatusNotCommitted  RunStatus = "NOT_COMMITTED"
	RunStatusRolledBack    RunStatus = "ROLLED_BACK"
	RunStatusNotRolledBack RunStatus = "NOT_ROLLED_BACK"
)

// AllRunStatuses lists every status in declaration order.
var AllRunStatuses = []RunStatus{
	RunStatusRunning,
	RunStatusFailed,
	RunStatusReadyToCommit,
	RunStatusCommitting,
	RunStatusCommitted,
	RunStatusNotCommitted,
	RunStatusRolledBack,
	RunStatusNotRolledBack,
}

// String returns the status name.
func (s RunStatus) String() string {
	return string(s)
}

// IsValid reports whether s is one of the declared statuses.
func (s RunStatus) IsValid() bool {
	for _, st := range AllRunStatuses {
		if st == s {
			return true
		}
	}
	return false
}

// IsFinal reports whether no further transition will be driven from s during a firing.
// COMMITTED is final unless a sibling fails to commit, in which case it is rolled back.
func (s RunStatus) IsFinal() bool {
	switch s {
	case RunStatusFailed, RunStatusCommitted, RunStatusNotCommitted, RunStatusRolledBack, RunStatusNotRolledBack:
		return true
	default:
		return false
	}
}

// IsFailure reports whether s records a failed or undone firing.
func (s RunStatus) IsFailure() bool {
	switch s {
	case RunStatusFailed, RunStatusNotCommitted, RunStatusRolledBack, RunStatusNotRolledBack:
		return true
	default:
		return false
	}
}

// NeedsRollback reports whether a Run in status s has side effects to undo when its
// BatchRun fails.
func (s RunStatus) NeedsRollback() bool {
	switch s {
	case RunStatusReadyToCommit, RunStatusCommitting, RunStatusCommitted:
		return true
	default:
		return false
	}
}

var runTransitions = map[RunStatus][]RunStatus{
	RunStatusRunning:       {RunStatusFailed, RunStatusReadyToCommit},
	RunStatusReadyToCommit: {RunStatusCommitting, RunStatusRolledBack, RunStatusNotRolledBack},
	RunStatusCommitting:    {RunStatusCommitted, RunStatusNotCommitted, RunStatusRolledBack, RunStatusNotRolledBack},
	RunStatusCommitted:     {RunStatusRolledBack, RunStatusNotRolledBack},
}

// CanTransition reports whether the state machine allows moving from one status to another.
func CanTransition(from, to RunStatus) bool {
	for _, next := range runTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// batchRunPriority orders statuses when summarising the Runs of one BatchRun: the first
// status present wins.
var batchRunPriority = []RunStatus{
	RunStatusRunning,
	RunStatusCommitting,
	RunStatusReadyToCommit,
	RunStatusNotRolledBack,
	RunStatusNotCommitted,
	RunStatusFailed,
	RunStatusRolledBack,
	RunStatusCommitted,
}

// SummarizeStatus derives a BatchRun status from the statuses of its Runs.
// An empty set yields FAILED, the status of a firing rejected before any Run was created.
func SummarizeStatus(runs []*Run) RunStatus {
	present := make(map[RunStatus]bool, len(runs))
	for _, r := range runs {
		present[r.Status] = true
	}
	for _, st := range batchRunPriority {
		if present[st] {
			return st
		}
	}
	return RunStatusFailed
}

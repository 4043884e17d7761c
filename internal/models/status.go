package models

// TaskStatus is a column on the sprint board.
type TaskStatus string

const (
	StatusTodo       TaskStatus = "todo"
	StatusInProgress TaskStatus = "in_progress"
	StatusInReview   TaskStatus = "in_review"
	StatusDone       TaskStatus = "done"
)

// TaskStatuses lists every status in board order.
var TaskStatuses = []TaskStatus{StatusTodo, StatusInProgress, StatusInReview, StatusDone}

// transitions is the legal-transition table. The graph is a cycle: done only
// re-opens to in_review and nothing leaves the graph.
var transitions = map[TaskStatus][]TaskStatus{
	StatusTodo:       {StatusInProgress},
	StatusInProgress: {StatusInReview, StatusTodo},
	StatusInReview:   {StatusDone, StatusInProgress},
	StatusDone:       {StatusInReview},
}

// Valid reports whether s is one of the four board statuses.
func (s TaskStatus) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// Ptr returns a pointer to a copy of s.
func (s TaskStatus) Ptr() *TaskStatus {
	return &s
}

// NextStatuses returns the statuses reachable from s in one step.
func NextStatuses(s TaskStatus) []TaskStatus {
	return append([]TaskStatus(nil), transitions[s]...)
}

// CanTransition reports whether moving a task from one status to another is legal.
func CanTransition(from, to TaskStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Priority ranks how urgent a task is.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// PRStatus is the state of the pull request linked to a task.
type PRStatus string

const (
	PROpen   PRStatus = "open"
	PRMerged PRStatus = "merged"
	PRClosed PRStatus = "closed"
)

// Valid reports whether p is a known pull request state.
func (p PRStatus) Valid() bool {
	return p == PROpen || p == PRMerged || p == PRClosed
}

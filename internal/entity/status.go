package entity

var taskTransitions = map[TaskStatus][]TaskStatus{
	TaskQueued:  {TaskClaimed, TaskCanceled},
	TaskClaimed: {TaskActive, TaskCanceled},
	TaskActive:  {TaskCompleted, TaskFailed, TaskCanceled},
}

// A queued job may complete directly when all of its task transitions commit
// before the first recomputation runs.
var jobTransitions = map[JobStatus][]JobStatus{
	JobQueued:          {JobActive, JobCompleted, JobFailed, JobCancelRequested, JobCanceled},
	JobActive:          {JobCompleted, JobFailed, JobCancelRequested, JobCanceled},
	JobCancelRequested: {JobCanceled},
}

func (s TaskStatus) Valid() bool {
	switch s {
	case TaskQueued, TaskClaimed, TaskActive, TaskCompleted, TaskFailed, TaskCanceled:
		return true
	}
	return false
}

func (s TaskStatus) IsTerminal() bool {
	return s == TaskCompleted || s == TaskFailed || s == TaskCanceled
}

// Running reports whether a manager holds the task.
func (s TaskStatus) Running() bool {
	return s == TaskClaimed || s == TaskActive
}

// CanTransitionTo reports whether a task may move from s to to.
func (s TaskStatus) CanTransitionTo(to TaskStatus) bool {
	for _, next := range taskTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

func (s JobStatus) Valid() bool {
	switch s {
	case JobQueued, JobActive, JobCompleted, JobFailed, JobCancelRequested, JobCanceled:
		return true
	}
	return false
}

func (s JobStatus) IsTerminal() bool {
	return s == JobCompleted || s == JobFailed || s == JobCanceled
}

func (s JobStatus) CanTransitionTo(to JobStatus) bool {
	for _, next := range jobTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

package entity_test

import (
	"testing"

	"flamenco-core/internal/entity"
)

var allTaskStatuses = []entity.TaskStatus{
	entity.TaskQueued, entity.TaskClaimed, entity.TaskActive,
	entity.TaskCompleted, entity.TaskFailed, entity.TaskCanceled,
}

func TestTaskStatus_Transitions(t *testing.T) {
	allowed := map[[2]entity.TaskStatus]bool{
		{entity.TaskQueued, entity.TaskClaimed}:    true,
		{entity.TaskClaimed, entity.TaskActive}:    true,
		{entity.TaskActive, entity.TaskCompleted}:  true,
		{entity.TaskActive, entity.TaskFailed}:     true,
		{entity.TaskQueued, entity.TaskCanceled}:   true,
		{entity.TaskClaimed, entity.TaskCanceled}:  true,
		{entity.TaskActive, entity.TaskCanceled}:   true,
	}

	for _, from := range allTaskStatuses {
		for _, to := range allTaskStatuses {
			got := from.CanTransitionTo(to)
			if got != allowed[[2]entity.TaskStatus{from, to}] {
				t.Fatalf("expected %s -> %s allowed=%v, got %v", from, to, !got, got)
			}
		}
	}
}

func TestTaskStatus_TerminalHasNoExit(t *testing.T) {
	for _, from := range allTaskStatuses {
		if !from.IsTerminal() {
			continue
		}
		for _, to := range allTaskStatuses {
			if from.CanTransitionTo(to) {
				t.Fatalf("expected no transition out of terminal %s, got one to %s", from, to)
			}
		}
	}
}

func TestTaskStatus_Running(t *testing.T) {
	for _, s := range allTaskStatuses {
		want := s == entity.TaskClaimed || s == entity.TaskActive
		if s.Running() != want {
			t.Fatalf("expected %s running=%v", s, want)
		}
	}
}

func TestJobStatus_Transitions(t *testing.T) {
	cases := []struct {
		from, to entity.JobStatus
		want     bool
	}{
		{entity.JobQueued, entity.JobActive, true},
		{entity.JobActive, entity.JobCompleted, true},
		{entity.JobActive, entity.JobFailed, true},
		{entity.JobQueued, entity.JobCancelRequested, true},
		{entity.JobActive, entity.JobCancelRequested, true},
		{entity.JobCancelRequested, entity.JobCanceled, true},
		{entity.JobCancelRequested, entity.JobActive, false},
		{entity.JobActive, entity.JobQueued, false},
		{entity.JobCompleted, entity.JobActive, false},
		{entity.JobFailed, entity.JobCancelRequested, false},
		{entity.JobCanceled, entity.JobQueued, false},
		{entity.JobQueued, entity.JobCompleted, true},
	}
	for _, c := range cases {
		if got := c.from.CanTransitionTo(c.to); got != c.want {
			t.Fatalf("expected %s -> %s = %v, got %v", c.from, c.to, c.want, got)
		}
	}
}

func TestJobStatus_Terminal(t *testing.T) {
	terminal := map[entity.JobStatus]bool{
		entity.JobCompleted: true,
		entity.JobFailed:    true,
		entity.JobCanceled:  true,
	}
	for _, s := range []entity.JobStatus{
		entity.JobQueued, entity.JobActive, entity.JobCompleted,
		entity.JobFailed, entity.JobCancelRequested, entity.JobCanceled,
	} {
		if s.IsTerminal() != terminal[s] {
			t.Fatalf("expected %s terminal=%v", s, terminal[s])
		}
	}
}

package sse

import (
	"github.com/dih-project/wishonia/internal/runner"
	"github.com/dih-project/wishonia/internal/todo"
)

// CheckCompleted is the payload of a check.completed event.
type CheckCompleted struct {
	Check     string   `json:"check"`
	Examined  int      `json:"examined"`
	Processed int      `json:"processed"`
	Updated   int      `json:"updated"`
	Failed    []string `json:"failed"`
	Issues    int      `json:"issues"`
	Cancelled bool     `json:"cancelled"`
}

// PublishSummary broadcasts a check.completed event for s.
func (b *Broker) PublishSummary(s runner.Summary) {
	failed := s.FailedPaths()
	if failed == nil {
		failed = []string{}
	}
	b.Publish(Event{Type: EventCheckCompleted, Data: CheckCompleted{
		Check:     s.Check,
		Examined:  s.Examined,
		Processed: len(s.Processed),
		Updated:   len(s.Updated),
		Failed:    failed,
		Issues:    s.Issues,
		Cancelled: s.Cancelled,
	}})
}

// Recorder forwards to Inner and announces every non-empty result.
type Recorder struct {
	Inner  runner.Recorder
	Broker *Broker
}

func (r *Recorder) RecordIssues(path string, issues []todo.RawIssue, agentID string) ([]todo.Todo, error) {
	created, err := r.Inner.RecordIssues(path, issues, agentID)
	if err != nil || len(created) == 0 {
		return created, err
	}
	ids := make([]string, len(created))
	for i, t := range created {
		ids[i] = t.ID
	}
	r.Broker.PublishTodos(path, ids)
	return created, nil
}

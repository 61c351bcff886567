package tasks

import "github.com/aretw0/introspection"

// QueueState is the observable state of a Queue.
type QueueState struct {
	Started  bool `json:"started"`
	Stopped  bool `json:"stopped"`
	Workers  int  `json:"workers"`
	Capacity int  `json:"capacity"`
	Pending  int  `json:"pending"`
	Running  int  `json:"running"`
	Finished int  `json:"finished"`
	Failed   int  `json:"failed"`
	Unpolled int  `json:"unpolled"`
}

// State implements introspection.Introspectable.
func (q *Queue) State() any {
	q.mu.Lock()
	defer q.mu.Unlock()
	return QueueState{
		Started:  q.started,
		Stopped:  q.stopped,
		Workers:  q.workers,
		Capacity: q.capacity,
		Pending:  q.pending,
		Running:  q.running,
		Finished: q.finished,
		Failed:   q.failed,
		Unpolled: len(q.results),
	}
}

// ComponentType implements introspection.Component.
func (q *Queue) ComponentType() string {
	return "task_queue"
}

var _ introspection.Introspectable = (*Queue)(nil)
var _ introspection.Component = (*Queue)(nil)

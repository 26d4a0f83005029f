package task

import "sync"

// Queue is the ordered script of tasks. Next returns ok=false once the
// cursor has passed the last task. Rewind moves the cursor back to the
// first task; Flush removes every task.
type Queue interface {
	Next() (t Task, ok bool, err error)
	Rewind() error
	Flush() error
}

// MemoryQueue is a Queue held in memory.
type MemoryQueue struct {
	mu     sync.Mutex
	tasks  []Task
	cursor int
}

// NewMemoryQueue creates a queue holding tasks in order.
func NewMemoryQueue(tasks ...Task) *MemoryQueue {
	return &MemoryQueue{tasks: append([]Task(nil), tasks...)}
}

// Append adds tasks to the end of the queue.
func (q *MemoryQueue) Append(tasks ...Task) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = append(q.tasks, tasks...)
}

func (q *MemoryQueue) Next() (Task, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.cursor >= len(q.tasks) {
		return nil, false, nil
	}
	t := q.tasks[q.cursor]
	q.cursor++
	return t, true, nil
}

func (q *MemoryQueue) Rewind() error {
	q.mu.Lock()
	q.cursor = 0
	q.mu.Unlock()
	return nil
}

func (q *MemoryQueue) Flush() error {
	q.mu.Lock()
	q.tasks = nil
	q.cursor = 0
	q.mu.Unlock()
	return nil
}

// Len returns the number of queued tasks.
func (q *MemoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// Tasks returns a copy of the queued tasks.
func (q *MemoryQueue) Tasks() []Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]Task(nil), q.tasks...)
}

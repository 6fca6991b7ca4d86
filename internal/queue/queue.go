// Package queue holds pending scrape tasks for the batch CLI.
package queue

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

var (
	ErrQueueEmpty  = errors.New("queue is empty")
	ErrQueueClosed = errors.New("queue is closed")
)

type Task struct {
	ID        string
	URL       string
	Retries   int
	CreatedAt time.Time
}

type Queue interface {
	Push(task *Task) error
	Pop() (*Task, error)
	Size() int
	Close() error
}

// InMemoryQueue is a FIFO queue. Pop never blocks.
type InMemoryQueue struct {
	mu     sync.Mutex
	tasks  []*Task
	closed bool
}

func NewInMemoryQueue() *InMemoryQueue {
	return &InMemoryQueue{tasks: make([]*Task, 0)}
}

func (q *InMemoryQueue) Push(task *Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}
	q.tasks = append(q.tasks, task)
	return nil
}

func (q *InMemoryQueue) Pop() (*Task, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.tasks) == 0 {
		if q.closed {
			return nil, ErrQueueClosed
		}
		return nil, ErrQueueEmpty
	}

	task := q.tasks[0]
	q.tasks[0] = nil
	q.tasks = q.tasks[1:]
	return task, nil
}

func (q *InMemoryQueue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// Close rejects further pushes. Queued tasks can still be popped.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	return nil
}

// Load pushes one task per non-empty entry of a comma separated list and per
// line of fileData. Lines starting with # are skipped.
func Load(q Queue, list string, fileData []byte) (int, error) {
	var items []string
	if list != "" {
		items = append(items, strings.Split(list, ",")...)
	}
	for _, line := range strings.Split(string(fileData), "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "#") {
			continue
		}
		items = append(items, line)
	}

	n := 0
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		task := &Task{
			ID:        fmt.Sprintf("task-%d", n),
			URL:       item,
			CreatedAt: time.Now(),
		}
		if err := q.Push(task); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

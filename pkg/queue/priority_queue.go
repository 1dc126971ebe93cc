package queue

import (
	"container/heap"
	"sync"

	"github.com/Sriram-PR/webtree/pkg/models"
)

// taskItem represents a task in the heap
type taskItem struct {
	task     *models.Task
	priority int    // Node depth; shallower tasks run first
	seq      uint64 // Insertion order, breaks ties so equal-depth tasks stay FIFO
	index    int
}

// taskHeap implements heap.Interface
type taskHeap []*taskItem

func (h taskHeap) Len() int { return len(h) }

func (h taskHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority < h[j].priority
	}
	return h[i].seq < h[j].seq
}

func (h taskHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *taskHeap) Push(x any) {
	item := x.(*taskItem)
	item.index = len(*h)
	*h = append(*h, item)
}

func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil // avoid memory leak
	item.index = -1
	*h = old[:n-1]
	return item
}

// TaskQueue is an unbounded, blocking, depth-ordered queue of crawl tasks.
// Producers never block, so a worker may enqueue its children without waiting on other workers.
type TaskQueue struct {
	h      taskHeap
	mu     sync.Mutex
	cond   *sync.Cond
	seq    uint64
	closed bool
}

// NewTaskQueue creates an empty queue
func NewTaskQueue() *TaskQueue {
	q := &TaskQueue{}
	q.cond = sync.NewCond(&q.mu)
	heap.Init(&q.h)
	return q
}

// Add enqueues task. Returns false if the queue is closed and the task was not accepted.
func (q *TaskQueue) Add(task *models.Task) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.seq++
	heap.Push(&q.h, &taskItem{task: task, priority: task.Node.Depth(), seq: q.seq})
	q.cond.Signal()
	return true
}

// Pop removes the shallowest task, blocking while the queue is empty and open.
// Returns nil, false once the queue is closed and drained.
func (q *TaskQueue) Pop() (*models.Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.h) == 0 {
		if q.closed {
			return nil, false
		}
		q.cond.Wait()
	}
	return heap.Pop(&q.h).(*taskItem).task, true
}

// Close stops accepting tasks and wakes all waiting consumers. Queued tasks can still be popped.
func (q *TaskQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		q.cond.Broadcast()
	}
}

// Len returns the number of queued tasks
func (q *TaskQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.h)
}

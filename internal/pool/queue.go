package pool

import "sync"

// jobQueue is an unbounded FIFO drained by a single worker loop. Pushing the
// stop job closes it for further submissions.
type jobQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []*Job
	depth  int
	closed bool
}

func newJobQueue() *jobQueue {
	q := &jobQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *jobQueue) push(job *Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrStopped
	}
	q.items = append(q.items, job)
	if job.stop {
		q.closed = true
	} else {
		q.depth++
	}
	q.cond.Signal()
	return nil
}

// pop blocks until a job is available.
func (q *jobQueue) pop() *Job {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) == 0 {
		q.cond.Wait()
	}
	job := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	if !job.stop {
		q.depth--
	}
	return job
}

func (q *jobQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.depth
}

package core

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// idleQueueTTL is how long a user's queue may sit empty before its drain
// goroutine exits and the queue is dropped from the map.
const idleQueueTTL = 5 * time.Minute

// Job is one accepted push notification awaiting background processing.
type Job struct {
	User      string
	HistoryID uint64
}

// Dispatcher runs notification jobs on a bounded worker pool with per-user
// serialization: jobs for the same user execute in FIFO order on a single
// goroutine, and a semaphore caps how many users are processed at once. This
// keeps concurrent notifications for one user from racing on the watch
// cursor while bounding total background work. Queues left empty past
// idleQueueTTL are reaped along with their goroutine.
type Dispatcher struct {
	process   func(ctx context.Context, job Job)
	logger    *zap.Logger
	queueSize int
	idleAfter time.Duration

	sem    chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	queues map[string]chan Job
}

// NewDispatcher creates a dispatcher with at most maxWorkers users processed
// concurrently and queueSize pending jobs per user.
func NewDispatcher(maxWorkers, queueSize int, process func(ctx context.Context, job Job), logger *zap.Logger) *Dispatcher {
	if maxWorkers <= 0 {
		maxWorkers = 4
	}
	if queueSize <= 0 {
		queueSize = 16
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		process:   process,
		logger:    logger,
		queueSize: queueSize,
		idleAfter: idleQueueTTL,
		sem:       make(chan struct{}, maxWorkers),
		ctx:       ctx,
		cancel:    cancel,
		queues:    map[string]chan Job{},
	}
}

// Enqueue admits a job for background processing. It never blocks: when the
// user's queue is full the job is rejected and the caller's only recourse is
// the upstream service's redelivery.
func (d *Dispatcher) Enqueue(job Job) bool {
	// The send stays under the lock so the idle reaper in drain cannot
	// retire a queue between the lookup and the send.
	d.mu.Lock()
	q, ok := d.queues[job.User]
	if !ok {
		q = make(chan Job, d.queueSize)
		d.queues[job.User] = q
		d.wg.Add(1)
		go d.drain(job.User, q)
	}
	select {
	case q <- job:
		d.mu.Unlock()
		return true
	default:
		d.mu.Unlock()
		d.logger.Warn("dispatcher queue full, rejecting notification",
			zap.String("user", job.User),
			zap.Uint64("history_id", job.HistoryID))
		return false
	}
}

func (d *Dispatcher) drain(user string, q chan Job) {
	defer d.wg.Done()
	idle := time.NewTimer(d.idleAfter)
	defer idle.Stop()
	for {
		select {
		case <-d.ctx.Done():
			return
		case <-idle.C:
			d.mu.Lock()
			if len(q) == 0 {
				delete(d.queues, user)
				d.mu.Unlock()
				return
			}
			d.mu.Unlock()
			idle.Reset(d.idleAfter)
		case job := <-q:
			select {
			case <-d.ctx.Done():
				return
			case d.sem <- struct{}{}:
			}
			d.process(d.ctx, job)
			<-d.sem
			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(d.idleAfter)
		}
	}
}

// queueCount reports how many user queues are currently live.
func (d *Dispatcher) queueCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queues)
}

// Stop cancels in-flight work and waits for the worker goroutines to exit.
func (d *Dispatcher) Stop() {
	d.cancel()
	d.wg.Wait()
}

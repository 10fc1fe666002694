package notify

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc/pool"
)

// FailureFunc observes a failed delivery; kind is "notify", "publish" or "dropped"
type FailureFunc func(kind string)

// AsyncNotifier hands notifications and live updates to a bounded queue drained by a
// fixed set of workers, so a slow provider never delays the state transition that
// produced them. Submitting never blocks: when the queue is full the delivery is
// dropped and reported as "dropped". Failures are logged and dropped.
type AsyncNotifier struct {
	dispatcher Dispatcher
	publisher  Publisher
	timeout    time.Duration
	onFailure  FailureFunc

	queue   chan func(ctx context.Context)
	workers *pool.Pool
	pending sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewAsyncNotifier creates a notifier with workers concurrent deliveries and room for
// queueSize waiting ones. Each delivery is bounded by timeout.
func NewAsyncNotifier(d Dispatcher, p Publisher, workers, queueSize int, timeout time.Duration, onFailure FailureFunc) *AsyncNotifier {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = workers
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	a := &AsyncNotifier{
		dispatcher: d,
		publisher:  p,
		timeout:    timeout,
		onFailure:  onFailure,
		queue:      make(chan func(ctx context.Context), queueSize),
		workers:    pool.New().WithMaxGoroutines(workers),
	}
	for i := 0; i < workers; i++ {
		a.workers.Go(a.drain)
	}
	return a
}

// Notify queues a notification
func (a *AsyncNotifier) Notify(n Notification) {
	a.submit(func(ctx context.Context) {
		if err := a.dispatcher.Send(ctx, n); err != nil {
			logrus.Warnf("Failed to send %s notification for alert %s: %v", n.Type, n.AlertID, err)
			a.failed("notify")
		}
	})
}

// Publish queues a live-update event
func (a *AsyncNotifier) Publish(topic, event string, payload interface{}) {
	a.submit(func(ctx context.Context) {
		if err := a.publisher.Publish(ctx, topic, event, payload); err != nil {
			logrus.Warnf("Failed to publish %s on %s: %v", event, topic, err)
			a.failed("publish")
		}
	})
}

func (a *AsyncNotifier) submit(task func(ctx context.Context)) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.closed {
		logrus.Debug("Notifier closed, dropping delivery")
		return
	}

	a.pending.Add(1)
	select {
	case a.queue <- task:
	default:
		a.pending.Done()
		logrus.Warnf("Notification queue full (%d waiting), dropping delivery", cap(a.queue))
		a.failed("dropped")
	}
}

func (a *AsyncNotifier) drain() {
	for task := range a.queue {
		a.run(task)
	}
}

func (a *AsyncNotifier) run(task func(ctx context.Context)) {
	defer a.pending.Done()
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()
	task(ctx)
}

func (a *AsyncNotifier) failed(kind string) {
	if a.onFailure != nil {
		a.onFailure(kind)
	}
}

// Flush waits for every queued delivery to finish. Callers stop submitting first.
func (a *AsyncNotifier) Flush() {
	a.pending.Wait()
}

// Close drains the queue and rejects further deliveries
func (a *AsyncNotifier) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	close(a.queue)
	a.mu.Unlock()

	a.workers.Wait()
}

package notify

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

// BreakerSettings configures the circuit breaker around a dispatcher
type BreakerSettings struct {
	Name            string
	MaxRequests     uint32
	Interval        time.Duration
	Timeout         time.Duration
	FailureRequests uint32
	OnStateChange   func(name string, state int)
}

// BreakerDispatcher stops calling a failing provider until it recovers, so a dead
// channel does not tie up the notification workers
type BreakerDispatcher struct {
	next    Dispatcher
	breaker *gobreaker.CircuitBreaker
}

// NewBreakerDispatcher wraps next in a circuit breaker
func NewBreakerDispatcher(next Dispatcher, s BreakerSettings) *BreakerDispatcher {
	failures := s.FailureRequests
	if failures == 0 {
		failures = 5
	}

	settings := gobreaker.Settings{
		Name:        s.Name,
		MaxRequests: s.MaxRequests,
		Interval:    s.Interval,
		Timeout:     s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logrus.Warnf("Notifier circuit breaker %s: %s -> %s", name, from, to)
			if s.OnStateChange != nil {
				s.OnStateChange(name, int(to))
			}
		},
	}

	return &BreakerDispatcher{
		next:    next,
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

// Send implements Dispatcher. When the breaker is open it fails fast with
// gobreaker.ErrOpenState.
func (d *BreakerDispatcher) Send(ctx context.Context, n Notification) error {
	_, err := d.breaker.Execute(func() (interface{}, error) {
		return nil, d.next.Send(ctx, n)
	})
	return err
}

// State returns the current breaker state
func (d *BreakerDispatcher) State() gobreaker.State {
	return d.breaker.State()
}

package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/facebookgo/clock"
	"github.com/sirupsen/logrus"
)

// DefaultFireTimeout bounds one escalation call
const DefaultFireTimeout = 30 * time.Second

// LocalScheduler keeps one in-process clock timer per alert. Timers are lost on
// restart; the Temporal backend is the durable alternative.
type LocalScheduler struct {
	clock       clock.Clock
	escalate    EscalateFunc
	fireTimeout time.Duration

	mu       sync.Mutex
	timers   map[string]armedTimer
	seq      uint64
	stopped  bool
	inFlight sync.WaitGroup
}

type armedTimer struct {
	timer *clock.Timer
	seq   uint64
}

// NewLocalScheduler creates a timer-based scheduler. A nil clock uses wall time.
func NewLocalScheduler(clk clock.Clock, escalate EscalateFunc, fireTimeout time.Duration) *LocalScheduler {
	if clk == nil {
		clk = clock.New()
	}
	if fireTimeout <= 0 {
		fireTimeout = DefaultFireTimeout
	}
	return &LocalScheduler{
		clock:       clk,
		escalate:    escalate,
		fireTimeout: fireTimeout,
		timers:      make(map[string]armedTimer),
	}
}

// Schedule implements Scheduler
func (s *LocalScheduler) Schedule(ctx context.Context, alertID, leadID string, delay time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		logrus.Warnf("Scheduler stopped, not scheduling escalation for alert %s", alertID)
		return nil
	}
	if old, ok := s.timers[alertID]; ok {
		old.timer.Stop()
	}

	s.seq++
	seq := s.seq
	timer := s.clock.AfterFunc(delay, func() {
		s.fire(seq, alertID, leadID)
	})
	s.timers[alertID] = armedTimer{timer: timer, seq: seq}

	logrus.Debugf("Scheduled escalation for alert %s in %v", alertID, delay)
	return nil
}

// fire runs the escalation for one timer. A timer that was replaced or cancelled
// before it fired is ignored.
func (s *LocalScheduler) fire(seq uint64, alertID, leadID string) {
	s.mu.Lock()
	if armed, ok := s.timers[alertID]; s.stopped || !ok || armed.seq != seq {
		s.mu.Unlock()
		return
	}
	delete(s.timers, alertID)
	s.inFlight.Add(1)
	s.mu.Unlock()
	defer s.inFlight.Done()

	ctx, cancel := context.WithTimeout(context.Background(), s.fireTimeout)
	defer cancel()

	escalated, err := s.escalate(ctx, alertID, leadID)
	if err != nil {
		logrus.Errorf("Escalation of alert %s failed: %v", alertID, err)
		return
	}
	logrus.Debugf("Escalation timer for alert %s fired (escalated=%t)", alertID, escalated)
}

// Cancel implements Scheduler
func (s *LocalScheduler) Cancel(ctx context.Context, alertID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if armed, ok := s.timers[alertID]; ok {
		armed.timer.Stop()
		delete(s.timers, alertID)
	}
	return nil
}

// Pending returns the number of armed timers
func (s *LocalScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Stop disarms every timer and waits for running escalations
func (s *LocalScheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	for id, armed := range s.timers {
		armed.timer.Stop()
		delete(s.timers, id)
	}
	s.mu.Unlock()

	s.inFlight.Wait()
}

package wall_nav

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

// ErrLoopRunning is returned when a second loop is started on the same drone.
var ErrLoopRunning = errors.New("navigation loop already running")

// SupervisorState is the lifecycle of the supervised loop.
type SupervisorState int

const (
	StateStopped SupervisorState = iota
	StateRunning
	StatePaused
)

func (s SupervisorState) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	default:
		return "stopped"
	}
}

// Supervisor starts, pauses, resumes and terminates one navigation loop.
type Supervisor struct {
	loop   *Loop
	gate   *Gate
	link   *GuardedLink
	logger *zap.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
	err     error
}

// NewSupervisor wraps link with a mutex guard and builds the loop on top of it.
func NewSupervisor(cfg AppConfig, link FlightLink, metrics *Metrics, logger *zap.Logger) *Supervisor {
	guarded := NewGuardedLink(link)
	gate := NewGate(cfg.StartPaused)
	return &Supervisor{
		loop:   NewLoop(cfg, guarded, gate, metrics, logger),
		gate:   gate,
		link:   guarded,
		logger: logger,
	}
}

// Start launches the loop goroutine. Starting a paused loop resumes it,
// whether it is still running or has finished. Only the first start honours
// StartPaused.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		if s.gate.Paused() {
			s.gate.Resume()
			return nil
		}
		return ErrLoopRunning
	}
	if s.done != nil {
		s.gate.Resume()
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.running = true
	s.cancel = cancel
	s.done = done
	s.err = nil

	go func() {
		err := s.loop.Run(runCtx)
		s.mu.Lock()
		s.running = false
		s.err = err
		s.mu.Unlock()
		cancel()
		close(done)
	}()
	return nil
}

// Pause holds the loop at its next tick boundary.
func (s *Supervisor) Pause() {
	s.gate.Pause()
	s.logger.Info("navigation paused")
}

// Resume releases a paused loop.
func (s *Supervisor) Resume() {
	s.gate.Resume()
	s.logger.Info("navigation resumed")
}

// ResetControllers clears the channel controller history before the next tick.
func (s *Supervisor) ResetControllers() {
	s.loop.RequestReset()
}

// Terminate cancels the loop and waits for it to return.
func (s *Supervisor) Terminate() error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	return s.Wait()
}

// Wait blocks until the loop returns and reports its terminal error.
func (s *Supervisor) Wait() error {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()

	if done == nil {
		return nil
	}
	<-done

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// State reports the loop lifecycle.
func (s *Supervisor) State() SupervisorState {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()

	switch {
	case !running:
		return StateStopped
	case s.gate.Paused():
		return StatePaused
	default:
		return StateRunning
	}
}

// Status returns the latest per-tick status line.
func (s *Supervisor) Status() string {
	return s.loop.Status()
}

// PIDStates returns the channel controller history as of the last tick.
func (s *Supervisor) PIDStates() map[Channel]PIDState {
	return s.loop.PIDStates()
}

// Telemetry reads the vehicle through the same guard the loop uses.
func (s *Supervisor) Telemetry(ctx context.Context) (Lidars, Velocity, error) {
	return s.link.Telemetry(ctx)
}

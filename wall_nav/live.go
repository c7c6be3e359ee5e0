package wall_nav

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Loop flies the navigator at a fixed cadence against a FlightLink.
type Loop struct {
	link    FlightLink
	ctl     *DroneController
	gate    *Gate
	period  time.Duration
	metrics *Metrics
	logger  *zap.Logger
	limiter *rate.Limiter

	// Now is the tick clock.
	Now func() time.Time

	status   atomic.Value // string
	pids     atomic.Value // map[Channel]PIDState
	resetReq atomic.Bool
}

// NewLoop wires a controller for cfg onto link. metrics may be nil.
func NewLoop(cfg AppConfig, link FlightLink, gate *Gate, metrics *Metrics, logger *zap.Logger) *Loop {
	var limiter *rate.Limiter
	if cfg.Log.StatusPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.Log.StatusPerSecond), 1)
	}
	l := &Loop{
		link:    link,
		ctl:     NewDroneController(cfg.Controller, link),
		gate:    gate,
		period:  cfg.Period(),
		metrics: metrics,
		logger:  logger,
		limiter: limiter,
		Now:     time.Now,
	}
	l.status.Store("")
	l.pids.Store(l.ctl.PIDStates())
	return l
}

// PIDStates returns the channel controller history as of the last tick.
func (l *Loop) PIDStates() map[Channel]PIDState {
	return l.pids.Load().(map[Channel]PIDState)
}

// Status returns the latest per-tick status line.
func (l *Loop) Status() string {
	return l.status.Load().(string)
}

// RequestReset makes the loop reset every channel controller before its next tick.
func (l *Loop) RequestReset() {
	l.resetReq.Store(true)
}

// Run ticks until ctx is cancelled (returns nil) or the flight link fails
// (returns the wrapped error). Commands stop as soon as ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	logger := l.logger.With(zap.String("session", uuid.NewString()))
	logger.Info("navigation loop started", zap.Duration("period", l.period))
	defer logger.Info("navigation loop stopped")

	if off := l.ctl.Cfg.StartOffset; off != [3]float64{} {
		if err := l.gate.Wait(ctx); err != nil {
			return nil
		}
		if err := l.link.MoveBy(ctx, off[0], off[1], off[2], true); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("start offset: %w", err)
		}
	}

	for {
		if err := l.gate.Wait(ctx); err != nil {
			return nil
		}
		if l.resetReq.Swap(false) {
			l.ctl.ResetControllers()
			l.pids.Store(l.ctl.PIDStates())
			logger.Info("channel controllers reset")
		}

		start := l.Now()
		dec, err := l.step(ctx, start)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Error("flight link failed, last command stays in effect", zap.Error(err))
			return err
		}
		took := l.Now().Sub(start)
		l.publish(logger, dec, took)

		sleep := l.period - took
		if sleep <= 0 {
			l.metrics.ObserveOverrun()
			continue
		}
		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

// step reads the sensors, decides, and issues the command for one tick.
func (l *Loop) step(ctx context.Context, now time.Time) (Decision, error) {
	lidars, err := l.link.ReadLidars(ctx)
	if err != nil {
		return Decision{}, fmt.Errorf("read lidars: %w", err)
	}
	l.metrics.ObserveInput(lidars)

	vel, err := l.link.ReadVelocity(ctx)
	if err != nil {
		return Decision{}, fmt.Errorf("read velocity: %w", err)
	}

	dec, err := l.ctl.Tick(ctx, FlightSnapshot{T: now, Lidars: lidars, Velocity: vel})
	if err != nil {
		return Decision{}, fmt.Errorf("tick: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return dec, err
	}

	if err := l.link.IssueCommand(ctx, dec.Command, false); err != nil {
		return dec, fmt.Errorf("issue command: %w", err)
	}
	return dec, nil
}

func (l *Loop) publish(logger *zap.Logger, dec Decision, took time.Duration) {
	status := dec.Status()
	l.status.Store(status)
	l.pids.Store(l.ctl.PIDStates())
	l.metrics.ObserveDecision(dec, took)

	if ce := logger.Check(zap.DebugLevel, "tick"); ce != nil {
		fields := append(lidarFields(dec.Lidars),
			zap.Stringer("mode", dec.Behavior),
			zap.Float64("roll", dec.Command.Roll),
			zap.Float64("pitch", dec.Command.Pitch),
			zap.Float64("yaw_rate", dec.Command.YawRate),
			zap.Duration("took", took),
		)
		ce.Write(fields...)
	}
	if r := dec.Reacquisition; r != nil {
		logger.Info("wall reacquisition",
			zap.Float64("turned_deg", r.Turned),
			zap.Stringer("front", r.Front),
			zap.Bool("nudged", r.Nudged),
		)
	}
	if l.limiter != nil && l.limiter.Allow() {
		logger.Info("status", zap.String("status", status))
	}
}

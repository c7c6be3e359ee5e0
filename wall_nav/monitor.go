package wall_nav

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Metrics exposes live loop inputs and outputs.
type Metrics struct {
	ticks          prometheus.Counter
	overruns       prometheus.Counter
	behaviors      *prometheus.CounterVec
	rules          *prometheus.CounterVec
	reacquisitions *prometheus.CounterVec
	tickDuration   prometheus.Histogram
	command        *prometheus.GaugeVec
	pid            *prometheus.GaugeVec
	lidar          *prometheus.GaugeVec
}

// NewMetrics registers the loop collectors on reg. A nil reg registers nothing.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ticks: f.NewCounter(prometheus.CounterOpts{
			Namespace: "wallnav",
			Subsystem: "loop",
			Name:      "ticks_total",
			Help:      "Total decision cycles completed",
		}),
		overruns: f.NewCounter(prometheus.CounterOpts{
			Namespace: "wallnav",
			Subsystem: "loop",
			Name:      "overruns_total",
			Help:      "Ticks that took longer than the target period",
		}),
		behaviors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wallnav",
			Subsystem: "navigator",
			Name:      "behavior_total",
			Help:      "Ticks by final behavior label",
		}, []string{"behavior"}),
		rules: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wallnav",
			Subsystem: "navigator",
			Name:      "rule_fired_total",
			Help:      "Override rule matches",
		}, []string{"rule"}),
		reacquisitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wallnav",
			Subsystem: "navigator",
			Name:      "reacquisitions_total",
			Help:      "Wall reacquisition sequences, by whether the forward nudge ran",
		}, []string{"nudged"}),
		tickDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "wallnav",
			Subsystem: "loop",
			Name:      "tick_duration_seconds",
			Help:      "Time from sensor read to command issued",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		command: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "wallnav",
			Subsystem: "navigator",
			Name:      "command",
			Help:      "Last issued command by axis",
		}, []string{"axis"}),
		pid: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "wallnav",
			Subsystem: "navigator",
			Name:      "pid_output",
			Help:      "Last channel controller output",
		}, []string{"channel"}),
		lidar: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "wallnav",
			Subsystem: "sensors",
			Name:      "lidar_meters",
			Help:      "Last raw lidar sample; -1 when absent",
		}, []string{"channel"}),
	}
}

// ObserveInput publishes the raw lidar samples of a tick.
func (m *Metrics) ObserveInput(l Lidars) {
	if m == nil {
		return
	}
	for _, c := range Channels {
		v := -1.0
		if l[c].Valid {
			v = l[c].Meters
		}
		m.lidar.WithLabelValues(c.String()).Set(v)
	}
}

// ObserveDecision publishes the outcome of a tick that took took.
func (m *Metrics) ObserveDecision(d Decision, took time.Duration) {
	if m == nil {
		return
	}
	m.ticks.Inc()
	m.tickDuration.Observe(took.Seconds())
	m.behaviors.WithLabelValues(d.Behavior.String()).Inc()
	for _, b := range d.Fired {
		m.rules.WithLabelValues(b.String()).Inc()
	}
	if d.Reacquisition != nil {
		m.reacquisitions.WithLabelValues(strconv.FormatBool(d.Reacquisition.Nudged)).Inc()
	}
	m.command.WithLabelValues("roll").Set(d.Command.Roll)
	m.command.WithLabelValues("pitch").Set(d.Command.Pitch)
	m.command.WithLabelValues("yaw_rate").Set(d.Command.YawRate)
	m.command.WithLabelValues("altitude").Set(d.Command.Altitude)
	m.pid.WithLabelValues(ChannelFront.String()).Set(d.PID.Front)
	m.pid.WithLabelValues(ChannelRight.String()).Set(d.PID.Right)
	m.pid.WithLabelValues(ChannelLeft.String()).Set(d.PID.Left)
}

// ObserveOverrun counts a tick that missed its period.
func (m *Metrics) ObserveOverrun() {
	if m == nil {
		return
	}
	m.overruns.Inc()
}

// Controls is the supervisory surface the monitor drives.
type Controls interface {
	Pause()
	Resume()
	ResetControllers()
	State() SupervisorState
	Status() string
	PIDStates() map[Channel]PIDState
	Telemetry(ctx context.Context) (Lidars, Velocity, error)
}

// NewMonitorHandler serves /metrics, /status, /pid, /telemetry and the POST
// /pause, /resume and /reset controls.
func NewMonitorHandler(g prometheus.Gatherer, ctl Controls) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	mux.HandleFunc("GET /status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprintf(w, "state=%s\n%s\n", ctl.State(), ctl.Status())
	})
	mux.HandleFunc("GET /pid", func(w http.ResponseWriter, r *http.Request) {
		states := ctl.PIDStates()
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		for _, c := range []Channel{ChannelFront, ChannelRight, ChannelLeft} {
			st, ok := states[c]
			if !ok {
				continue
			}
			fmt.Fprintf(w, "%s output=%+.3f prev_error=%+.3f integral=%+.3f primed=%t\n",
				c, st.Output, st.PrevError, st.Integral, st.Primed)
		}
	})
	mux.HandleFunc("GET /telemetry", func(w http.ResponseWriter, r *http.Request) {
		lidars, vel, err := ctl.Telemetry(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprintf(w, "%s\nvel(x=%+.3f y=%+.3f z=%+.3f yaw=%+.3f)\n", lidars, vel.X, vel.Y, vel.Z, vel.Yaw)
	})
	mux.HandleFunc("POST /pause", func(w http.ResponseWriter, r *http.Request) {
		ctl.Pause()
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("POST /resume", func(w http.ResponseWriter, r *http.Request) {
		ctl.Resume()
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("POST /reset", func(w http.ResponseWriter, r *http.Request) {
		ctl.ResetControllers()
		w.WriteHeader(http.StatusNoContent)
	})
	return mux
}

// RunMonitor serves h on cfg.Addr until ctx is done.
func RunMonitor(ctx context.Context, cfg MonitorConfig, h http.Handler, logger *zap.Logger) error {
	if !cfg.Enabled {
		return nil
	}
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:7070"
	}

	server := &http.Server{Addr: cfg.Addr, Handler: h, ReadHeaderTimeout: 5 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("monitor listening", zap.String("addr", cfg.Addr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("monitor server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}

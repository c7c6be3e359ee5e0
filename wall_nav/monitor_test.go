package wall_nav

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMetrics_ObserveDecision(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.ObserveInput(Lidars{}.With(ChannelFront, Meters(1.25)))
	m.ObserveDecision(Decision{
		Behavior:      BehaviorTunnel,
		Fired:         []Behavior{BehaviorRotateTowardWall, BehaviorTunnel},
		PID:           PIDOutputs{Front: 0.5, Right: -2},
		Command:       Command{Roll: -2, Pitch: 2, YawRate: 180, Altitude: -1},
		Reacquisition: &Reacquisition{Turned: 60, Nudged: true},
	}, 3*time.Millisecond)
	m.ObserveOverrun()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ticks))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.overruns))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.behaviors.WithLabelValues("TUNNEL")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rules.WithLabelValues("ROTATE_TOWARD_WALL")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.reacquisitions.WithLabelValues("true")))
	assert.Equal(t, 180.0, testutil.ToFloat64(m.command.WithLabelValues("yaw_rate")))
	assert.Equal(t, -2.0, testutil.ToFloat64(m.pid.WithLabelValues("right")))
	assert.Equal(t, 1.25, testutil.ToFloat64(m.lidar.WithLabelValues("front")))
	assert.Equal(t, -1.0, testutil.ToFloat64(m.lidar.WithLabelValues("back")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.tickDuration))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveInput(Lidars{})
		m.ObserveDecision(Decision{Behavior: BehaviorCruise}, time.Millisecond)
		m.ObserveOverrun()
	})
}

type fakeControls struct {
	state    SupervisorState
	status   string
	pids     map[Channel]PIDState
	calls    []string
	telemErr error
}

func (f *fakeControls) Pause()                 { f.calls = append(f.calls, "pause") }
func (f *fakeControls) Resume()                { f.calls = append(f.calls, "resume") }
func (f *fakeControls) ResetControllers()      { f.calls = append(f.calls, "reset") }
func (f *fakeControls) State() SupervisorState { return f.state }
func (f *fakeControls) Status() string         { return f.status }

func (f *fakeControls) PIDStates() map[Channel]PIDState { return f.pids }

func (f *fakeControls) Telemetry(context.Context) (Lidars, Velocity, error) {
	if f.telemErr != nil {
		return Lidars{}, Velocity{}, f.telemErr
	}
	return Lidars{}.With(ChannelRight, Meters(0.8)), Velocity{X: 0.2}, nil
}

func do(t *testing.T, h http.Handler, method, path string) (int, string) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)
	return rec.Code, string(body)
}

func TestMonitorHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	m.ObserveDecision(Decision{Behavior: BehaviorCruise}, time.Millisecond)

	ctl := &fakeControls{
		state:  StatePaused,
		status: "mode=CRUISE fired=[]",
		pids: map[Channel]PIDState{
			ChannelRight: {Output: 1.5, PrevError: -0.3, Primed: true},
			ChannelFront: {},
		},
	}
	h := NewMonitorHandler(reg, ctl)

	code, body := do(t, h, http.MethodGet, "/status")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "state=paused\nmode=CRUISE fired=[]\n", body)

	code, body = do(t, h, http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "wallnav_loop_ticks_total 1")

	code, body = do(t, h, http.MethodGet, "/pid")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "front output=+0.000 prev_error=+0.000 integral=+0.000 primed=false\n"+
		"right output=+1.500 prev_error=-0.300 integral=+0.000 primed=true\n", body)

	code, body = do(t, h, http.MethodGet, "/telemetry")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "right=0.800")
	assert.Contains(t, body, "x=+0.200")

	for _, path := range []string{"/pause", "/resume", "/reset"} {
		code, _ = do(t, h, http.MethodPost, path)
		assert.Equal(t, http.StatusNoContent, code, path)
	}
	assert.Equal(t, []string{"pause", "resume", "reset"}, ctl.calls)

	code, _ = do(t, h, http.MethodGet, "/pause")
	assert.Equal(t, http.StatusMethodNotAllowed, code)
	assert.Len(t, ctl.calls, 3)
}

func TestMonitorHandler_TelemetryFailure(t *testing.T) {
	ctl := &fakeControls{telemErr: errors.New("link down")}
	code, body := do(t, NewMonitorHandler(prometheus.NewRegistry(), ctl), http.MethodGet, "/telemetry")
	assert.Equal(t, http.StatusBadGateway, code)
	assert.True(t, strings.HasPrefix(body, "link down"))
}

func TestRunMonitor(t *testing.T) {
	h := http.NotFoundHandler()

	// Disabled returns at once.
	assert.NoError(t, RunMonitor(context.Background(), MonitorConfig{}, h, zap.NewNop()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- RunMonitor(ctx, MonitorConfig{Enabled: true, Addr: "127.0.0.1:0"}, h, zap.NewNop())
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("monitor did not stop")
	}
}

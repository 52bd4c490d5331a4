package observability_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/aretw0/aris/pkg/domain"
	"github.com/aretw0/aris/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Hooks(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := observability.NewMetrics(reg)
	require.NoError(t, err)
	hooks := m.Hooks()
	ctx := context.Background()

	hooks.OnStepLeave(ctx, &domain.StepEvent{Step: domain.StepGenerate, Duration: 20 * time.Millisecond})
	hooks.OnStepLeave(ctx, &domain.StepEvent{Step: domain.StepGenerate, Err: errors.New("boom")})
	hooks.OnToolReturn(ctx, &domain.ToolEvent{ToolName: "echo"})
	hooks.OnToolReturn(ctx, &domain.ToolEvent{ToolName: "echo", IsError: true, IsDenied: true})
	hooks.OnRunFinish(ctx, &domain.RunEvent{JobType: domain.JobQuery, Status: domain.StatusEnded})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Steps.WithLabelValues("generate", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Steps.WithLabelValues("generate", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ToolCalls.WithLabelValues("echo", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ToolCalls.WithLabelValues("echo", "denied")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Runs.WithLabelValues("query", "end")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.StepDuration))
}

func TestMetrics_DoubleRegistrationFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := observability.NewMetrics(reg)
	require.NoError(t, err)
	_, err = observability.NewMetrics(reg)
	assert.Error(t, err)
}

func TestLogHooks(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	hooks := observability.LogHooks(logger)
	ctx := context.Background()

	hooks.OnStepEnter(ctx, &domain.StepEvent{EventBase: domain.EventBase{TaskID: "t1"}, Step: domain.StepSearch})
	hooks.OnRunFinish(ctx, &domain.RunEvent{EventBase: domain.EventBase{TaskID: "t1"}, Status: domain.StatusFailed})

	out := buf.String()
	assert.Contains(t, out, "msg=step_enter")
	assert.Contains(t, out, "step=search")
	assert.Contains(t, out, "msg=run_finish")
	assert.Contains(t, out, "status=failed")
}

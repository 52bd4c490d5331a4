package observability

import (
	"context"

	"github.com/aretw0/aris/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the collectors fed by lifecycle hooks.
type Metrics struct {
	Steps        *prometheus.CounterVec
	StepDuration *prometheus.HistogramVec
	ToolCalls    *prometheus.CounterVec
	Runs         *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg registers with prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		Steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aris_step_total",
			Help: "Executed workflow steps by label and outcome.",
		}, []string{"step", "outcome"}),
		StepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "aris_step_duration_seconds",
			Help:    "Wall time spent in each workflow step.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}, []string{"step"}),
		ToolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aris_tool_calls_total",
			Help: "Tool invocations by tool and outcome.",
		}, []string{"tool", "outcome"}),
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aris_runs_total",
			Help: "Finished runs by job type and terminal status.",
		}, []string{"job_type", "status"}),
	}
	for _, c := range []prometheus.Collector{m.Steps, m.StepDuration, m.ToolCalls, m.Runs} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Hooks returns lifecycle hooks that record into the collectors.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStepLeave: func(ctx context.Context, e *domain.StepEvent) {
			step := string(e.Step)
			m.Steps.WithLabelValues(step, outcome(e.Err != nil)).Inc()
			m.StepDuration.WithLabelValues(step).Observe(e.Duration.Seconds())
		},
		OnToolReturn: func(ctx context.Context, e *domain.ToolEvent) {
			label := outcome(e.IsError)
			if e.IsDenied {
				label = "denied"
			}
			m.ToolCalls.WithLabelValues(e.ToolName, label).Inc()
		},
		OnRunFinish: func(ctx context.Context, e *domain.RunEvent) {
			m.Runs.WithLabelValues(string(e.JobType), string(e.Status)).Inc()
		},
	}
}

func outcome(failed bool) string {
	if failed {
		return "error"
	}
	return "ok"
}

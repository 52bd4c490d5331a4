package runtime

import (
	"context"

	"github.com/aretw0/aris/pkg/domain"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/aretw0/aris/internal/runtime"

func (e *Engine) startRunSpan(ctx context.Context, s *domain.State) (context.Context, trace.Span) {
	ctx, span := e.tracer.Start(ctx, "workflow.run")
	span.SetAttributes(
		attribute.String("task.id", s.TaskID),
		attribute.String("task.job_type", string(s.JobType)),
	)
	return ctx, span
}

func endRunSpan(span trace.Span, s *domain.State, err error) {
	span.SetAttributes(
		attribute.String("workflow.status", string(s.Status)),
		attribute.Int("workflow.steps", s.Steps),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "run failed")
	}
	span.End()
}

func (e *Engine) startStepSpan(ctx context.Context, label domain.Label, s *domain.State) (context.Context, trace.Span) {
	ctx, span := e.tracer.Start(ctx, "step."+string(label))
	span.SetAttributes(
		attribute.String("step.name", string(label)),
		attribute.Int("step.index", s.Steps+1),
		attribute.Int("state.messages", len(s.Messages)),
		attribute.Int("state.documents", len(s.Documents)),
	)
	return ctx, span
}

func endStepSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "step failed")
	}
	span.End()
}

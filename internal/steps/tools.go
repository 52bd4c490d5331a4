package steps

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/aris/pkg/domain"
	"github.com/aretw0/aris/pkg/registry"
	"github.com/aretw0/aris/pkg/retry"
	"golang.org/x/sync/errgroup"
)

// ExecuteTools resolves the tool calls of the most recent assistant message.
type ExecuteTools struct {
	registry    *registry.Registry
	interceptor ToolInterceptor
	opts        options
}

// NewExecuteTools creates the tool execution step. A nil interceptor approves every call.
func NewExecuteTools(reg *registry.Registry, interceptor ToolInterceptor, opts ...Option) *ExecuteTools {
	if interceptor == nil {
		interceptor = AutoApproveMiddleware()
	}
	return &ExecuteTools{
		registry:    reg,
		interceptor: interceptor,
		opts:        buildOptions(domain.StepExecuteTools, opts),
	}
}

func (x *ExecuteTools) Name() domain.Label { return domain.StepExecuteTools }

// Execute appends exactly one ToolResultMessage per pending call, in call
// order, whatever order the invocations finish in. Unknown tools, invalid
// arguments and calls failing after their retries become error results;
// only an interceptor error aborts the step.
func (x *ExecuteTools) Execute(ctx context.Context, state *domain.State) (*domain.State, error) {
	calls := pendingCalls(state.Messages)
	if len(calls) == 0 {
		return state, nil
	}

	results := make([]domain.ToolResultMessage, len(calls))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(x.opts.concurrency)
	for i, call := range calls {
		g.Go(func() error {
			res, err := x.invoke(gctx, state.TaskID, call)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, domain.NewStepError(domain.StepExecuteTools, err)
	}

	for _, res := range results {
		state.Append(res)
	}
	return state, nil
}

func (x *ExecuteTools) invoke(ctx context.Context, taskID string, call domain.ToolCall) (domain.ToolResultMessage, error) {
	x.emitCall(ctx, taskID, call)

	allowed, denied, err := x.interceptor(ctx, call)
	if err != nil {
		return domain.ToolResultMessage{}, err
	}
	if !allowed {
		denied.CallID = call.ID
		denied.Name = call.Name
		denied.IsError = true
		denied.IsDenied = true
		x.emitReturn(ctx, taskID, denied)
		return denied, nil
	}

	tool, ok := x.registry.Lookup(call.Name)
	if !ok {
		x.opts.logger.WarnContext(ctx, "Tool not found", "tool", call.Name, "call_id", call.ID)
		res := errorResult(call, fmt.Errorf("%w: %s", domain.ErrToolNotFound, call.Name))
		x.emitReturn(ctx, taskID, res)
		return res, nil
	}
	if err := x.registry.Validate(call.Name, call.Args); err != nil {
		x.opts.logger.WarnContext(ctx, "Tool arguments rejected", "tool", call.Name, "call_id", call.ID, "error", err)
		res := errorResult(call, err)
		x.emitReturn(ctx, taskID, res)
		return res, nil
	}

	policy := x.opts.policy
	policy.Name = call.Name
	start := time.Now()
	out, err := retry.Do(ctx, policy, func(ctx context.Context) (any, error) {
		return tool.Fn(ctx, call.Args)
	})
	if err != nil {
		x.opts.logger.WarnContext(ctx, "Tool call failed",
			"tool", call.Name,
			"call_id", call.ID,
			"elapsed", time.Since(start),
			"error", err,
		)
		res := errorResult(call, err)
		x.emitReturn(ctx, taskID, res)
		return res, nil
	}

	res := domain.ToolResultMessage{CallID: call.ID, Name: call.Name, Content: out}
	x.emitReturn(ctx, taskID, res)
	return res, nil
}

// pendingCalls returns the calls of the most recent assistant message that
// have no result yet, so a resumed run never executes a call twice.
func pendingCalls(msgs domain.Messages) []domain.ToolCall {
	idx := -1
	for i := len(msgs) - 1; i >= 0; i-- {
		if _, ok := msgs[i].(domain.AssistantMessage); ok {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}
	answered := make(map[string]bool)
	for _, m := range msgs[idx+1:] {
		if r, ok := m.(domain.ToolResultMessage); ok {
			answered[r.CallID] = true
		}
	}
	var out []domain.ToolCall
	for _, c := range msgs[idx].(domain.AssistantMessage).ToolCalls {
		if !answered[c.ID] {
			out = append(out, c)
		}
	}
	return out
}

func errorResult(call domain.ToolCall, err error) domain.ToolResultMessage {
	msg := err.Error()
	var ex *retry.ExhaustedError
	if errors.As(err, &ex) {
		msg = ex.Err.Error()
	}
	return domain.ToolResultMessage{
		CallID:  call.ID,
		Name:    call.Name,
		IsError: true,
		Error:   msg,
	}
}

func (x *ExecuteTools) emitCall(ctx context.Context, taskID string, call domain.ToolCall) {
	if x.opts.hooks.OnToolCall == nil {
		return
	}
	x.opts.hooks.OnToolCall(ctx, &domain.ToolEvent{
		EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventToolCall, TaskID: taskID},
		CallID:    call.ID,
		ToolName:  call.Name,
	})
}

func (x *ExecuteTools) emitReturn(ctx context.Context, taskID string, res domain.ToolResultMessage) {
	if x.opts.hooks.OnToolReturn == nil {
		return
	}
	x.opts.hooks.OnToolReturn(ctx, &domain.ToolEvent{
		EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventToolReturn, TaskID: taskID},
		CallID:    res.CallID,
		ToolName:  res.Name,
		IsError:   res.IsError,
		IsDenied:  res.IsDenied,
	})
}

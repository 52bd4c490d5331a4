package steps

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/aretw0/aris/pkg/domain"
)

// ToolInterceptor can block a tool call before it reaches the registry.
// It returns true if execution should proceed. If blocked, it returns the
// ToolResultMessage describing the denial. An error aborts the step.
type ToolInterceptor func(ctx context.Context, call domain.ToolCall) (bool, domain.ToolResultMessage, error)

// MultiInterceptor chains multiple interceptors; the first denial wins.
func MultiInterceptor(interceptors ...ToolInterceptor) ToolInterceptor {
	return func(ctx context.Context, call domain.ToolCall) (bool, domain.ToolResultMessage, error) {
		for _, interceptor := range interceptors {
			allowed, result, err := interceptor(ctx, call)
			if err != nil {
				return false, domain.ToolResultMessage{}, err
			}
			if !allowed {
				return false, result, nil
			}
		}
		return true, domain.ToolResultMessage{}, nil
	}
}

// AutoApproveMiddleware allows everything.
func AutoApproveMiddleware() ToolInterceptor {
	return func(ctx context.Context, call domain.ToolCall) (bool, domain.ToolResultMessage, error) {
		return true, domain.ToolResultMessage{}, nil
	}
}

// AllowListMiddleware denies every tool whose name is not listed.
func AllowListMiddleware(names ...string) ToolInterceptor {
	allowed := make(map[string]bool, len(names))
	for _, n := range names {
		allowed[n] = true
	}
	return func(ctx context.Context, call domain.ToolCall) (bool, domain.ToolResultMessage, error) {
		if allowed[call.Name] {
			return true, domain.ToolResultMessage{}, nil
		}
		return false, Denied(call, "tool is not on the allow list"), nil
	}
}

// DenyListMiddleware denies the listed tools.
func DenyListMiddleware(names ...string) ToolInterceptor {
	denied := make(map[string]bool, len(names))
	for _, n := range names {
		denied[n] = true
	}
	return func(ctx context.Context, call domain.ToolCall) (bool, domain.ToolResultMessage, error) {
		if denied[call.Name] {
			return false, Denied(call, "tool is denied by policy"), nil
		}
		return true, domain.ToolResultMessage{}, nil
	}
}

// Denied builds the result recorded for a call blocked by policy.
func Denied(call domain.ToolCall, reason string) domain.ToolResultMessage {
	return domain.ToolResultMessage{
		CallID:   call.ID,
		Name:     call.Name,
		IsError:  true,
		IsDenied: true,
		Error:    fmt.Sprintf("execution of %s denied: %s", call.Name, reason),
	}
}

// ConfirmationMiddleware asks on out before every call and reads the answer
// from in. Only "y" or "yes" approves. Prompts are serialized so concurrent
// calls do not interleave.
func ConfirmationMiddleware(in io.Reader, out io.Writer) ToolInterceptor {
	var mu sync.Mutex
	reader := bufio.NewReader(in)
	return func(ctx context.Context, call domain.ToolCall) (bool, domain.ToolResultMessage, error) {
		mu.Lock()
		defer mu.Unlock()

		if err := ctx.Err(); err != nil {
			return false, domain.ToolResultMessage{}, err
		}
		args, _ := json.Marshal(call.Args)
		fmt.Fprintf(out, "Tool Request: '%s' (ID: %s)\nArgs: %s\nAllow execution? [y/N] ", call.Name, call.ID, args)

		line, err := reader.ReadString('\n')
		if err != nil && (!errors.Is(err, io.EOF) || line == "") {
			return false, domain.ToolResultMessage{}, fmt.Errorf("confirmation aborted: %w", err)
		}
		switch strings.TrimSpace(strings.ToLower(line)) {
		case "y", "yes":
			return true, domain.ToolResultMessage{}, nil
		}
		return false, Denied(call, "user declined"), nil
	}
}

package ports

import (
	"context"

	"github.com/aretw0/aris/pkg/domain"
)

// TaskRunner is the task submission boundary. Adapters (HTTP, MCP, CLI)
// depend on it rather than on the engine type.
type TaskRunner interface {
	// Submit runs a task to a terminal label. It never returns internal
	// errors; failures are summarised in Result.Error.
	Submit(ctx context.Context, task domain.Task) domain.Result

	// Tools lists the tools available to generations.
	Tools() []domain.ToolDefinition
}

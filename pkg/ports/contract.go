package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/aris/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunCheckpointStoreContract runs a suite of tests to verify that a
// CheckpointStore implementation adheres to the interface contract.
func RunCheckpointStoreContract(t *testing.T, store CheckpointStore) {
	ctx := context.Background()
	taskID := "contract-test-task-" + time.Now().Format("20060102150405")

	t.Run("Save and Load", func(t *testing.T) {
		state := domain.NewState(taskID, "what is raft?", domain.JobResearch)
		state.Documents = []domain.Document{{Content: "snippet", Source: "https://raft.github.io", Title: "Raft"}}
		state.SetGeneration(domain.AssistantMessage{
			ToolCalls: []domain.ToolCall{{ID: "c1", Name: "echo", Args: map[string]any{"text": "hi"}}},
		})
		state.Append(domain.ToolResultMessage{CallID: "c1", Name: "echo", Content: "hi"})
		state.LastStep = domain.StepExecuteTools
		state.Steps = 4

		err := store.Save(ctx, taskID, state)
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Load(ctx, taskID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, state.Query, loaded.Query)
		assert.Equal(t, state.JobType, loaded.JobType)
		assert.Equal(t, state.LastStep, loaded.LastStep)
		assert.Equal(t, state.Steps, loaded.Steps)
		assert.Equal(t, state.Documents, loaded.Documents)
		require.Len(t, loaded.Messages, 3)
		assert.IsType(t, domain.AssistantMessage{}, loaded.Messages[1])
		result, ok := loaded.Messages[2].(domain.ToolResultMessage)
		require.True(t, ok)
		assert.Equal(t, "c1", result.CallID)
		require.NotNil(t, loaded.Generation)
		assert.Equal(t, "echo", loaded.Generation.ToolCalls[0].Name)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+taskID)
		assert.ErrorIs(t, err, domain.ErrCheckpointNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		err := store.Save(ctx, taskID, domain.NewState(taskID, "q", domain.JobQuery))
		require.NoError(t, err)

		err = store.Delete(ctx, taskID)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, taskID)
		assert.ErrorIs(t, err, domain.ErrCheckpointNotFound, "Load after Delete should return ErrCheckpointNotFound")
	})

	t.Run("List", func(t *testing.T) {
		id1 := taskID + "-1"
		id2 := taskID + "-2"
		_ = store.Save(ctx, id1, domain.NewState(id1, "q", domain.JobQuery))
		_ = store.Save(ctx, id2, domain.NewState(id2, "q", domain.JobQuery))

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		ids, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, ids, id1)
		assert.Contains(t, ids, id2)
	})
}

package aris_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/aris"
	"github.com/aretw0/aris/pkg/adapters/memory"
	"github.com/aretw0/aris/pkg/adapters/scripted"
	"github.com/aretw0/aris/pkg/checkpoint"
	"github.com/aretw0/aris/pkg/domain"
	"github.com/aretw0/aris/pkg/ports"
	"github.com/aretw0/aris/pkg/registry"
	"github.com/aretw0/aris/pkg/retry"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noRetry() retry.Policy {
	return retry.Policy{Tries: 1}
}

func quickRetry(tries int) retry.Policy {
	return retry.Policy{
		Tries: tries,
		Delay: time.Millisecond,
		Sleep: func(ctx context.Context, d time.Duration) error { return nil },
	}
}

func passAll() ports.Validator {
	return ports.ValidatorFunc(func(ctx context.Context, s *domain.State) (domain.Verdict, error) {
		return domain.Verdict{Passed: true, Score: 1}, nil
	})
}

func TestNew_Errors(t *testing.T) {
	_, err := aris.New()
	assert.ErrorIs(t, err, aris.ErrNoGenerator)

	gen := scripted.NewGenerator(scripted.Say("x"))
	_, err = aris.New(aris.WithGenerator(gen), aris.WithSearcher(&scripted.Searcher{}))
	assert.ErrorContains(t, err, "requires a fetcher")

	dup := registry.Tool{
		Definition: domain.ToolDefinition{Name: "same"},
		Fn:         func(ctx context.Context, args map[string]any) (any, error) { return nil, nil },
	}
	_, err = aris.New(aris.WithGenerator(gen), aris.WithTools(dup, dup))
	assert.ErrorContains(t, err, "registered twice")
}

func TestSubmit_QueryJob(t *testing.T) {
	gen := scripted.NewGenerator(scripted.Say("Raft is a consensus algorithm."))
	eng, err := aris.New(aris.WithGenerator(gen))
	require.NoError(t, err)

	res := eng.Submit(context.Background(), domain.Task{Query: "What is Raft?", JobType: domain.JobQuery})

	require.True(t, res.Succeeded(), res.Error)
	assert.Equal(t, "Raft is a consensus algorithm.", res.Generation)
	_, err = uuid.Parse(res.TaskID)
	assert.NoError(t, err, "task IDs are UUIDs")
	assert.Equal(t, 1, gen.Calls())
}

func TestSubmit_ResearchJobWithValidationAndSynthesis(t *testing.T) {
	corpus := memory.NewCorpus(5,
		memory.Page{Source: "mem://raft", Title: "Raft", Content: "Raft consensus keeps replicated logs consistent."},
		memory.Page{Source: "mem://paxos", Title: "Paxos", Content: "Paxos is an older consensus protocol."},
	)
	gen := scripted.NewGenerator(scripted.Say("draft"), scripted.Say("final answer"))
	eng, err := aris.New(
		aris.WithGenerator(gen),
		aris.WithSearcher(corpus),
		aris.WithFetcher(corpus),
		aris.WithValidator(passAll()),
	)
	require.NoError(t, err)

	res := eng.Submit(context.Background(), domain.Task{Query: "raft consensus", JobType: domain.JobResearch})

	require.True(t, res.Succeeded(), res.Error)
	assert.Equal(t, "final answer", res.Generation)

	reqs := gen.Requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, ports.PurposeGenerate, reqs[0].Purpose)
	assert.Equal(t, ports.PurposeSynthesize, reqs[1].Purpose)
	require.NotEmpty(t, reqs[0].Documents)
	assert.Equal(t, "mem://raft", reqs[0].Documents[0].Source)
	assert.True(t, reqs[0].Documents[0].Resolved)
}

func TestSubmit_ToolLoop(t *testing.T) {
	var got map[string]any
	echo := registry.Tool{
		Definition: domain.ToolDefinition{Name: "echo", Parameters: map[string]string{"text": "string"}},
		Fn: func(ctx context.Context, args map[string]any) (any, error) {
			got = args
			return args["text"], nil
		},
	}
	gen := scripted.NewGenerator(
		scripted.CallTools(domain.ToolCall{Name: "echo", Args: map[string]any{"text": "hi"}}),
		scripted.Say("echoed"),
	)
	eng, err := aris.New(aris.WithGenerator(gen), aris.WithTools(echo))
	require.NoError(t, err)

	res := eng.Submit(context.Background(), domain.Task{Query: "say hi"})

	require.True(t, res.Succeeded(), res.Error)
	assert.Equal(t, "echoed", res.Generation)
	assert.Equal(t, "hi", got["text"])

	reqs := gen.Requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, []domain.ToolDefinition{echo.Definition}, reqs[0].Tools)
	result, ok := reqs[1].Messages.Last().(domain.ToolResultMessage)
	require.True(t, ok)
	assert.Equal(t, "hi", result.Content)
}

func TestSubmit_ResearchNeedsSearcher(t *testing.T) {
	gen := scripted.NewGenerator(scripted.Say("x"))
	eng, err := aris.New(aris.WithGenerator(gen))
	require.NoError(t, err)

	res := eng.Submit(context.Background(), domain.Task{Query: "q", JobType: domain.JobResearch})
	assert.Equal(t, domain.StatusFailed, res.Status)
	assert.Contains(t, res.Error, "not supported")
	assert.Zero(t, gen.Calls())
}

func TestSubmit_RejectsEmptyQuery(t *testing.T) {
	eng, err := aris.New(aris.WithGenerator(scripted.NewGenerator(scripted.Say("x"))))
	require.NoError(t, err)

	res := eng.Submit(context.Background(), domain.Task{Query: " \n\t"})
	assert.Equal(t, domain.StatusFailed, res.Status)
	assert.Equal(t, aris.ErrEmptyQuery.Error(), res.Error)
}

func TestSubmit_ValidationExhausted(t *testing.T) {
	failing := ports.ValidatorFunc(func(ctx context.Context, s *domain.State) (domain.Verdict, error) {
		return domain.Verdict{Passed: false, Critique: "too vague"}, nil
	})
	gen := scripted.NewGenerator(scripted.Say("vague"))
	eng, err := aris.New(
		aris.WithGenerator(gen),
		aris.WithValidator(failing),
		aris.WithMaxValidationRetries(1),
	)
	require.NoError(t, err)

	res := eng.Submit(context.Background(), domain.Task{Query: "q"})
	assert.Equal(t, domain.StatusFailed, res.Status)
	assert.Equal(t, "the answer did not pass validation", res.Error)
	assert.Equal(t, 2, gen.Calls())
}

func TestSubmit_InternalErrorsAreNotLeaked(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	gen := scripted.NewGenerator(scripted.Fail(errors.New("upstream said: api key sk-123 invalid")))
	eng, err := aris.New(
		aris.WithGenerator(gen),
		aris.WithLogger(logger),
		aris.WithRetry(domain.StepGenerate, quickRetry(3)),
	)
	require.NoError(t, err)

	res := eng.Submit(context.Background(), domain.Task{Query: "q"})

	assert.Equal(t, domain.StatusFailed, res.Status)
	assert.NotContains(t, res.Error, "sk-123")
	assert.Contains(t, res.Error, res.TaskID)
	assert.Equal(t, 3, gen.Calls())
	assert.Contains(t, logs.String(), "sk-123", "details stay in the logs")
}

func TestSubmit_CancelledContext(t *testing.T) {
	eng, err := aris.New(aris.WithGenerator(scripted.NewGenerator(scripted.Say("x"))))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := eng.Submit(ctx, domain.Task{Query: "q"})
	assert.Equal(t, domain.StatusFailed, res.Status)
	assert.Equal(t, "the task was cancelled", res.Error)
}

func TestResume(t *testing.T) {
	store := memory.NewStore()
	gen := scripted.NewGenerator(scripted.Say("resumed answer"))
	eng, err := aris.New(
		aris.WithGenerator(gen),
		aris.WithCheckpoints(store),
		aris.WithRetry(domain.StepGenerate, noRetry()),
	)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "t-1", domain.NewState("t-1", "q", domain.JobQuery)))

	res, err := eng.Resume(ctx, "t-1")
	require.NoError(t, err)
	require.True(t, res.Succeeded(), res.Error)
	assert.Equal(t, "resumed answer", res.Generation)
	assert.Equal(t, 1, gen.Calls())

	// A finished run is reported from its checkpoint.
	res, err = eng.Resume(ctx, "t-1")
	require.NoError(t, err)
	assert.Equal(t, "resumed answer", res.Generation)
	assert.Equal(t, 1, gen.Calls())

	_, err = eng.Resume(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrCheckpointNotFound)
}

func TestResume_AfterInterruption(t *testing.T) {
	store := memory.NewStore()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	calls := 0
	gen := ports.GeneratorFunc(func(ctx context.Context, req ports.GenerateRequest) (domain.AssistantMessage, error) {
		mu.Lock()
		calls++
		first := calls == 1
		mu.Unlock()
		if first {
			cancel()
			return domain.AssistantMessage{}, ctx.Err()
		}
		return domain.AssistantMessage{Content: "finished later"}, nil
	})
	eng, err := aris.New(
		aris.WithGenerator(gen),
		aris.WithCheckpoints(store),
		aris.WithRetry(domain.StepGenerate, noRetry()),
	)
	require.NoError(t, err)

	res := eng.Submit(ctx, domain.Task{Query: "q"})
	assert.Equal(t, domain.StatusFailed, res.Status)
	assert.Equal(t, "the task was cancelled", res.Error)

	saved, err := store.Load(context.Background(), res.TaskID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRunning, saved.Status, "an interrupted run stays resumable")

	resumed, err := eng.Resume(context.Background(), res.TaskID)
	require.NoError(t, err)
	require.True(t, resumed.Succeeded(), resumed.Error)
	assert.Equal(t, "finished later", resumed.Generation)
	assert.Equal(t, 2, calls)
}

func TestSubmit_CallerTaskID(t *testing.T) {
	store := memory.NewStore()
	eng, err := aris.New(
		aris.WithGenerator(scripted.NewGenerator(scripted.Say("ok"))),
		aris.WithCheckpoints(store),
	)
	require.NoError(t, err)
	ctx := context.Background()
	id := uuid.NewString()

	res := eng.Submit(ctx, domain.Task{ID: id, Query: "q"})
	require.True(t, res.Succeeded(), res.Error)
	assert.Equal(t, id, res.TaskID)

	res = eng.Submit(ctx, domain.Task{ID: id, Query: "q"})
	assert.Equal(t, domain.StatusFailed, res.Status)
	assert.Equal(t, aris.ErrTaskExists.Error(), res.Error)

	res = eng.Submit(ctx, domain.Task{ID: "../etc", Query: "q"})
	assert.Equal(t, aris.ErrInvalidTaskID.Error(), res.Error)
}

func TestSubmit_MaxQuerySize(t *testing.T) {
	gen := scripted.NewGenerator(scripted.Say("ok"))
	eng, err := aris.New(aris.WithGenerator(gen), aris.WithMaxQuerySize(5))
	require.NoError(t, err)
	assert.Equal(t, 5, eng.MaxQuerySize())

	res := eng.Submit(context.Background(), domain.Task{Query: "123456"})
	assert.Equal(t, domain.StatusFailed, res.Status)
	assert.Contains(t, res.Error, aris.ErrQueryTooLarge.Error())
	assert.Zero(t, gen.Calls())
}

func TestResume_WithoutCheckpoints(t *testing.T) {
	eng, err := aris.New(aris.WithGenerator(scripted.NewGenerator(scripted.Say("x"))))
	require.NoError(t, err)
	_, err = eng.Resume(context.Background(), "t")
	assert.ErrorIs(t, err, aris.ErrNoCheckpoints)
}

func TestTopologyAndTools(t *testing.T) {
	corpus := memory.NewCorpus(0)
	tool := registry.Tool{
		Definition: domain.ToolDefinition{Name: "b"},
		Fn:         func(ctx context.Context, args map[string]any) (any, error) { return nil, nil },
	}
	other := registry.Tool{
		Definition: domain.ToolDefinition{Name: "a"},
		Fn:         func(ctx context.Context, args map[string]any) (any, error) { return nil, nil },
	}
	eng, err := aris.New(
		aris.WithGenerator(scripted.NewGenerator()),
		aris.WithSearcher(corpus),
		aris.WithFetcher(corpus),
		aris.WithTools(tool, other),
	)
	require.NoError(t, err)

	assert.Equal(t, []domain.Label{
		domain.StepSearch, domain.StepRetrieve, domain.StepGenerate,
		domain.StepExecuteTools, domain.StepSynthesize,
	}, eng.Topology())

	defs := eng.Tools()
	require.Len(t, defs, 2)
	assert.Equal(t, "a", defs[0].Name)
	assert.Equal(t, "b", defs[1].Name)
}

func TestResume_SerializedByManager(t *testing.T) {
	store := checkpoint.NewManager(memory.NewStore())
	gen := scripted.NewGenerator(scripted.Say("once"))
	eng, err := aris.New(
		aris.WithGenerator(gen),
		aris.WithCheckpoints(store),
		aris.WithRetry(domain.StepGenerate, noRetry()),
	)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, "t-2", domain.NewState("t-2", "q", domain.JobQuery)))

	var wg sync.WaitGroup
	results := make([]domain.Result, 4)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := eng.Resume(ctx, "t-2")
			assert.NoError(t, err)
			results[i] = res
		}()
	}
	wg.Wait()

	for _, res := range results {
		assert.Equal(t, "once", res.Generation)
	}
	assert.Equal(t, 1, gen.Calls(), "only the first resume runs the workflow")
}

package graph_test

import (
	"strings"
	"testing"

	"github.com/aretw0/aris/internal/presentation/graph"
	"github.com/aretw0/aris/pkg/domain"
)

var full = []domain.Label{
	domain.StepSearch, domain.StepRetrieve, domain.StepGenerate,
	domain.StepExecuteTools, domain.StepValidate, domain.StepSynthesize,
}

func TestGenerateMermaid(t *testing.T) {
	tests := []struct {
		name        string
		topology    []domain.Label
		contains    []string
		notContains []string
	}{
		{
			name:     "Full Topology",
			topology: full,
			contains: []string{
				`start(("start"))`,
				`execute_tools[["execute_tools"]]`,
				`search[("search")]`,
				`start -- "research" --> search`,
				`search -- "unfetched sources" --> retrieve`,
				`generate -- "tool calls" --> execute_tools`,
				`execute_tools --> generate`,
				`validate -- "passed" --> synthesize`,
				`validate -- "retries exhausted" --> failed`,
				`synthesize --> end`,
			},
			notContains: []string{`generate -- "answer" --> end`},
		},
		{
			name:     "Query Only",
			topology: []domain.Label{domain.StepGenerate, domain.StepExecuteTools, domain.StepSynthesize},
			contains: []string{
				`start --> generate`,
				`generate -- "answer" --> end`,
			},
			notContains: []string{"search", "validate", `failed(("failed"))`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := graph.GenerateMermaid(tt.topology, nil)
			if !strings.HasPrefix(got, "graph TD\n") {
				t.Errorf("missing header:\n%s", got)
			}
			for _, want := range tt.contains {
				if !strings.Contains(got, want) {
					t.Errorf("expected %q in:\n%s", want, got)
				}
			}
			for _, unwanted := range tt.notContains {
				if strings.Contains(got, unwanted) {
					t.Errorf("did not expect %q in:\n%s", unwanted, got)
				}
			}
		})
	}
}

func TestGenerateMermaid_Overlay(t *testing.T) {
	got := graph.GenerateMermaid(full, &graph.Overlay{
		Visited: []domain.Label{domain.StepSearch, domain.StepSearch, domain.StepGenerate},
		Current: domain.StepGenerate,
	})

	if strings.Count(got, "class search visited;") != 1 {
		t.Errorf("visited steps should be styled once:\n%s", got)
	}
	if strings.Contains(got, "class generate visited;") {
		t.Errorf("current step should not also be visited:\n%s", got)
	}
	if !strings.Contains(got, "class generate current;") {
		t.Errorf("missing current style:\n%s", got)
	}
}

func TestOverlayFor(t *testing.T) {
	if graph.OverlayFor(nil) != nil {
		t.Error("nil state should give no overlay")
	}

	fresh := domain.NewState("t", "q", domain.JobQuery)
	if o := graph.OverlayFor(fresh); o.Current != "start" {
		t.Errorf("fresh state: current = %q", o.Current)
	}

	done := domain.NewState("t", "q", domain.JobQuery)
	done.LastStep = domain.StepSynthesize
	done.Status = domain.StatusEnded
	o := graph.OverlayFor(done)
	if o.Current != domain.LabelEnd || len(o.Visited) != 1 || o.Visited[0] != domain.StepSynthesize {
		t.Errorf("ended state: %+v", o)
	}
}

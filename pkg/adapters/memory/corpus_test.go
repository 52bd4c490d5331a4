package memory_test

import (
	"context"
	"testing"

	"github.com/aretw0/aris/pkg/adapters/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCorpus_SearchRanksByTermOverlap(t *testing.T) {
	c := memory.NewCorpus(0,
		memory.Page{Source: "mem://paxos", Title: "Paxos", Content: "Consensus for replicated state machines."},
		memory.Page{Source: "mem://raft", Title: "Raft", Content: "Raft is a consensus algorithm with leader election."},
		memory.Page{Source: "mem://cooking", Title: "Bread", Content: "Flour and water."},
	)

	hits, err := c.Search(context.Background(), "raft consensus")
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "mem://raft", hits[0].URL)
	assert.Equal(t, "mem://paxos", hits[1].URL)

	page, err := c.Fetch(context.Background(), "mem://raft")
	require.NoError(t, err)
	assert.Contains(t, page.Content, "leader election")

	_, err = c.Fetch(context.Background(), "mem://missing")
	assert.Error(t, err)
}

func TestCorpus_LimitAndShortTerms(t *testing.T) {
	c := memory.NewCorpus(1,
		memory.Page{Source: "a", Content: "go go go"},
		memory.Page{Source: "b", Content: "golang"},
	)

	hits, err := c.Search(context.Background(), "go")
	require.NoError(t, err)
	assert.Empty(t, hits, "terms shorter than three runes are ignored")

	hits, err = c.Search(context.Background(), "golang")
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}

/*
Package aris runs tool-augmented LLM workflows as a fixed graph of steps.

A task (a query plus a job type) is turned into a State that flows through
search, retrieve, generate, execute_tools, validate and synthesize until it
reaches the "end" or "failed" terminal. A pure router picks the next step
from the state alone; every step returns a new state that only appends to
the message history, and the engine refuses any successor that rewrites it.

# Capabilities

The engine never talks to the outside world directly. Callers plug in:

  - a Generator (required) for model calls,
  - a Searcher and Fetcher for research jobs,
  - a Validator to gate answers before synthesis,
  - registry tools the model may call.

Every external call goes through a retry policy with exponential backoff.

# Usage

	eng, err := aris.New(
		aris.WithGenerator(myModel),
		aris.WithTools(myTools...),
	)
	if err != nil {
		log.Fatal(err)
	}

	res := eng.Submit(ctx, domain.Task{Query: "What is Raft?", JobType: domain.JobQuery})
	if !res.Succeeded() {
		log.Fatal(res.Error)
	}
	fmt.Println(res.Generation)
*/
package aris

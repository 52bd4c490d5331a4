/*
Package ports defines the driven ports (interfaces) for the ARIS engine.

These interfaces decouple the workflow core from the concrete search, fetch,
inference and persistence backends, so the same engine runs against SearXNG
and Ollama in production and scripted doubles in tests.

# Key Interfaces

  - Step: one unit of work executed by the engine.
  - Searcher, Fetcher, Generator, Validator: the external capabilities steps call.
  - CheckpointStore: optional persistence of in-flight run state.
  - DistributedLocker: distributed locking for checkpoint access across replicas.
  - TaskRunner: the task submission boundary consumed by the HTTP and MCP adapters.
*/
package ports

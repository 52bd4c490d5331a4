/*
Package domain contains the core entities of the ARIS workflow engine.

It defines the Shared State threaded through a run, the closed set of message
variants that make up its causal history, the step labels produced by the
router and the typed errors that cross step boundaries. The package is kept
pure: no I/O, no logging, no third-party dependencies.

# Key Entities

  - State: the single record owned by one engine run (query, job type, messages, documents, generation).
  - Message: a sealed variant of UserMessage, AssistantMessage or ToolResultMessage.
  - Document: a retrieved content unit carrying its provenance.
  - StepError: the only error a step may surface to the engine.
*/
package domain

/*
Package steps implements the units of work the engine routes between.

Every step satisfies ports.Step: it receives a private copy of the run state,
calls its external capability through the retry wrapper, and returns the
updated state. Steps only append to the history; they never reorder or
rewrite it. Retrieve and ExecuteTools fan their I/O out over a bounded pool of
goroutines and join it before returning, merging results by original index.
*/
package steps

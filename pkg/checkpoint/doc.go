// Package checkpoint serializes access to persisted run states.
//
// A Manager wraps any ports.CheckpointStore and guarantees that saves for the
// same task ID never interleave, either inside one process (a ref-counted
// mutex per task) or across replicas (an optional ports.DistributedLocker).
// It satisfies ports.CheckpointStore itself, so it can be handed straight to
// the engine.
package checkpoint

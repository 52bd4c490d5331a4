// Package redis stores checkpoints in Redis and provides a Redis-backed
// distributed lock for the checkpoint manager.
package redis

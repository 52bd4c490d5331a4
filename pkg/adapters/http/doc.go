// Package http exposes a task runner over HTTP with chi.
//
// Routes:
//
//	POST /v1/tasks    run a task and return its Result
//	GET  /v1/tools    list registered tools
//	GET  /v1/events   server-sent lifecycle events (optional ?task_id=)
//	GET  /health      liveness probe
//	GET  /info        build information
//	GET  /metrics     Prometheus exposition (when configured)
package http

/*
Package observability turns engine lifecycle events into Prometheus metrics
and structured log lines.

Both are plain domain.LifecycleHooks, so they compose with Merge and with any
hooks the caller registers on the engine.
*/
package observability

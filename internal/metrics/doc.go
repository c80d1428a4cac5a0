/*
Package metrics provides Prometheus instrumentation for the turn engine.

# Overview

The Collector registers and records all engine instruments through promauto,
grouped by namespace. Instruments cover the turn cycle end to end: turn
counts and latency, tool-loop behavior, node transitions, memory curation
stage outcomes, and reasoning-model usage.

All Collector methods are safe on a nil receiver, so callers running without
metrics skip instrumentation without guarding every call site.
*/
package metrics

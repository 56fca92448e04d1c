/*
Package observability provides tools for monitoring the chatflow engine.

It exposes Prometheus collectors for hydrations, transitions and store writes,
and lifecycle hooks that feed those collectors or a structured logger.
*/
package observability

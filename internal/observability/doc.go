// Package observability provides the append-only JSONL event log that all
// taskmirror components write diagnostics to, and a metrics calculator that
// aggregates sync and scheduler activity from it.
package observability

// Package httpapi exposes the recovery engine over HTTP.
//
// The server implements a graceful Echo server with the report intake,
// status, threshold administration, health and Prometheus metrics endpoints.
// Report intake always answers 200: the engine resolves every report to an
// outcome, and transport-level failure semantics would mislead callers into
// retry loops the engine already handles.
package httpapi

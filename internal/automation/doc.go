// Package automation starts remediation workflows on Temporal.
//
// The recovery engine only ever starts workflows and records their identity;
// workflow progress and completion are owned by the automation cluster. The
// client is wrapped behind a narrow starter interface so tests run without a
// Temporal server.
package automation

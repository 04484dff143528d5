// Package audit records remediation decisions durably.
//
// The NATS publisher emits one JSON message per entry on a per-action
// subject, so downstream consumers can subscribe to the whole trail or to a
// single remediation type. Deployments without a broker use LogTrail, which
// writes entries to the structured log instead.
package audit

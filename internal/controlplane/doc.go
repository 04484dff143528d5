// Package controlplane provides the in-process collaborators the recovery
// engine acts through: a service registry holding endpoints, routing and
// rate-limit state, and a credential vault that rotates per-service tokens.
//
// In a full deployment these would front real infrastructure (a service mesh,
// a secrets manager); the in-memory versions carry identical semantics and
// back the single-binary and test deployments.
package controlplane

// Package advisor provides recovery-plan suggestion via langchaingo.
//
// The LLM advisor sends a compact description of a system snapshot and the
// triggering error report to an OpenAI-compatible chat endpoint and parses the
// structured plan out of the response. Transient provider failures are retried
// with exponential backoff.
//
// Deployments without a model endpoint use the Rules advisor, a deterministic
// table keyed on the error category. It is also the fallback the LLM advisor
// degrades to when FallbackToRules is enabled.
package advisor

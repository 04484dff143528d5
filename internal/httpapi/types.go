package httpapi

import "github.com/fyrsmithlabs/sentineld/internal/recovery"

// ReportRequest is the JSON body of POST /api/v1/report.
type ReportRequest struct {
	ServiceID   string         `json:"service_id"`
	ErrorClass  string         `json:"error_class"`
	OperationID string         `json:"operation_id,omitempty"`
	Detail      string         `json:"detail,omitempty"`
	Context     map[string]any `json:"context,omitempty"`
}

// ReportResponse is the JSON response of POST /api/v1/report.
type ReportResponse struct {
	Recovered bool   `json:"recovered"`
	Action    string `json:"action"`
	Message   string `json:"message,omitempty"`
}

// ThresholdRequest is the JSON body of PUT /api/v1/thresholds/:class.
type ThresholdRequest struct {
	Limit int `json:"limit"`
}

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is the JSON response for GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

// StatusResponse mirrors the engine's introspection view.
type StatusResponse = recovery.Status

package logger

// Fields is an alias for map[string]interface{} for convenience.
type Fields map[string]interface{}

// ============================================
// Standard Tracing Fields (Context level)
// These fields are propagated through the call chain
// ============================================

const (
	// FieldRequestID is the HTTP request ID (UUID)
	FieldRequestID = "request_id"

	// FieldRunID is the scheduler run audit record ID
	FieldRunID = "run_id"

	// FieldOrgID is the organization (tenant) ID
	FieldOrgID = "org_id"

	// FieldJobID is the batch job ID
	FieldJobID = "job_id"

	// FieldTaskID is the provider-call task ID
	FieldTaskID = "task_id"

	// FieldDayKey is the timezone-normalized calendar-day key
	FieldDayKey = "day_key"

	// FieldProvider is the AI provider identifier
	FieldProvider = "provider"

	// FieldComponent is the component/module name
	FieldComponent = "component"
)

// ============================================
// Standard Metric Fields (Entry level)
// These fields are used for aggregation and alerting
// ============================================

const (
	// FieldDurationMs is the execution duration in milliseconds
	FieldDurationMs = "duration_ms"

	// FieldCount is a generic count field
	FieldCount = "count"

	// FieldStatus is the operation status
	FieldStatus = "status"
)

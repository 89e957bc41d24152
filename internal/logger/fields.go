package logger

// Fields is an alias for map[string]interface{} for convenience.
type Fields map[string]interface{}

// Tracing fields, carried through the call chain via context.
const (
	// FieldRunID identifies one archiver pass (UUID).
	FieldRunID = "run_id"

	// FieldComponent is the component/module name
	FieldComponent = "component"

	// FieldMode is the process mode (sync or backfill)
	FieldMode = "mode"

	// FieldLogID is the upstream record id currently being processed
	FieldLogID = "log_id"

	// FieldRequestID is the HTTP request ID of the status endpoint
	FieldRequestID = "request_id"
)

// Metric fields, attached per entry for aggregation.
const (
	// FieldDurationMs is the execution duration in milliseconds
	FieldDurationMs = "duration_ms"

	// FieldCount is a generic count field
	FieldCount = "count"

	// FieldSize is the data size in bytes
	FieldSize = "size"

	// FieldStatus is the operation status
	FieldStatus = "status"
)

package ai

// BackendUnavailableError indicates the model call itself failed (transport,
// auth, quota). The caller may retry or fall back to the rule-based path.
type BackendUnavailableError struct {
	Provider string
	Err      error
}

func (e *BackendUnavailableError) Error() string {
	return "ai backend unavailable (" + e.Provider + "): " + e.Err.Error()
}

func (e *BackendUnavailableError) Unwrap() error { return e.Err }

// SchemaViolationError indicates the model answered but the output does not
// conform to the declared comprobante schema.
type SchemaViolationError struct {
	Detail string
	Err    error
}

func (e *SchemaViolationError) Error() string {
	msg := "ai response violates schema: " + e.Detail
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *SchemaViolationError) Unwrap() error { return e.Err }

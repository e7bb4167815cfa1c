package models

// ValidationError reports a rejected input. Field names the offending input
// ("admissionNumber", "quantity", ...) so forms can highlight it.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

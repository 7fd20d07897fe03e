package reporting

import (
	"fmt"
	"time"
)

// ConfigurationError reports a static family/descriptor defect.
// Params: Family is the affected family name (may be empty); Reason describes the defect.
// Returns: non-retryable error surfaced to the caller as-is.
type ConfigurationError struct {
	Family string
	Reason string
}

// Error renders configuration error text.
// Params: none.
// Returns: message prefixed with family name when known.
func (e *ConfigurationError) Error() string {
	if e.Family == "" {
		return "configuration error: " + e.Reason
	}
	return fmt.Sprintf("configuration error in family %q: %s", e.Family, e.Reason)
}

// configErrorf builds ConfigurationError with formatted reason.
// Params: family name and format arguments.
// Returns: typed configuration error.
func configErrorf(family string, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Family: family, Reason: fmt.Sprintf(format, args...)}
}

// UnknownFamilyError reports a catalog lookup miss.
// Params: Name is the requested family name.
// Returns: lookup error.
type UnknownFamilyError struct {
	Name string
}

// Error renders lookup miss text.
// Params: none.
// Returns: error message.
func (e *UnknownFamilyError) Error() string {
	return fmt.Sprintf("unknown metric family %q", e.Name)
}

// RequestError reports export parameters that cannot be served, such as an inverted window
// or an identifier that would leave the instance directory.
type RequestError struct {
	Family string
	Reason string
}

// Error renders the rejected request.
func (e *RequestError) Error() string {
	if e.Family == "" {
		return "invalid request: " + e.Reason
	}
	return fmt.Sprintf("invalid request for family %q: %s", e.Family, e.Reason)
}

// TimestampInFutureError reports an archive whose last update lies past the tolerance window.
// Params: Path relative to storage root; LastUpdate from rrdtool info; Pause remaining until collection resumes.
// Returns: actionable user-visible error.
type TimestampInFutureError struct {
	Path       string
	LastUpdate time.Time
	Pause      time.Duration
	PauseText  string
}

// Error renders the pause notice.
// Params: none.
// Returns: error message naming the file and pause duration.
func (e *TimestampInFutureError) Error() string {
	return fmt.Sprintf(
		"RRD file %s has update time in the future. Data collection will be paused for %s.",
		e.Path,
		e.PauseText,
	)
}

// QueryExecutionError reports a failed or unparsable rrdtool invocation.
// Params: Op names the rrdtool command; Diagnostic carries stderr text; Timeout marks deadline expiry.
// Returns: execution error wrapping the underlying cause.
type QueryExecutionError struct {
	Op         string
	Diagnostic string
	Timeout    bool
	Err        error
}

// Error renders execution failure text.
// Params: none.
// Returns: message with diagnostic output when present.
func (e *QueryExecutionError) Error() string {
	msg := fmt.Sprintf("failed to %s RRD data", e.Op)
	if e.Timeout {
		msg += ": timed out"
	}
	if e.Diagnostic != "" {
		return msg + ": " + e.Diagnostic
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes the underlying cause.
// Params: none.
// Returns: wrapped error or nil.
func (e *QueryExecutionError) Unwrap() error {
	return e.Err
}

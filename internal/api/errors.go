package api

import (
	"context"
	"errors"
	"net/http"

	"rrdexport/internal/reporting"
)

// errorBody is the JSON error envelope.
type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
	Path  string `json:"path,omitempty"`
	Pause string `json:"pause,omitempty"`
}

// badRequestError marks malformed request parameters.
type badRequestError struct {
	err error
}

func (e *badRequestError) Error() string { return e.err.Error() }

func (e *badRequestError) Unwrap() error { return e.err }

// classify maps exporter errors onto HTTP status codes.
// Params: err returned by the exporter or parameter parsing.
// Returns: status code and response body.
func classify(err error) (int, errorBody) {
	body := errorBody{Error: err.Error(), Kind: "internal"}

	var (
		badRequest *badRequestError
		reqErr     *reporting.RequestError
		unknown    *reporting.UnknownFamilyError
		cfgErr     *reporting.ConfigurationError
		future     *reporting.TimestampInFutureError
		execErr    *reporting.QueryExecutionError
	)
	switch {
	case errors.As(err, &badRequest):
		body.Kind = "bad_request"
		return http.StatusBadRequest, body
	case errors.As(err, &reqErr):
		body.Kind = "bad_request"
		return http.StatusBadRequest, body
	case errors.As(err, &unknown):
		body.Kind = "unknown_family"
		return http.StatusNotFound, body
	case errors.As(err, &cfgErr):
		body.Kind = "configuration"
		return http.StatusInternalServerError, body
	case errors.As(err, &future):
		body.Kind = "timestamp_in_future"
		body.Path = future.Path
		body.Pause = future.PauseText
		return http.StatusConflict, body
	case errors.As(err, &execErr):
		body.Kind = "query_execution"
		if execErr.Timeout {
			return http.StatusGatewayTimeout, body
		}
		return http.StatusBadGateway, body
	case errors.Is(err, context.DeadlineExceeded):
		body.Kind = "timeout"
		return http.StatusGatewayTimeout, body
	case errors.Is(err, context.Canceled):
		body.Kind = "canceled"
		return http.StatusServiceUnavailable, body
	default:
		return http.StatusInternalServerError, body
	}
}

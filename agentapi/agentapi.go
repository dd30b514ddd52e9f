// Package agentapi implements [parley.Backend] for the agent service's
// streaming ask endpoint.
//
// The service answers a POST with a chunked response body carrying typed
// frames: an "event:" marker line, one or more "data:" payload lines, and a
// blank-line terminator (SSE-shaped, but delivered on the request's own
// response body). The package splits that into three layers, each testable
// on its own: a line scanner with an explicit carry-over buffer, a frame
// assembler, and per-kind JSON decoders.
package agentapi

import "time"

const (
	defaultBaseURL     = "http://localhost:8840"
	askPath            = "/v1/conversations/ask"
	defaultIdleTimeout = 30 * time.Second
)

// apiRequest is the JSON body sent to the ask endpoint.
type apiRequest struct {
	Input     string `json:"input"`
	SessionID string `json:"session_id,omitempty"`
}

// apiErrorResponse is the JSON body of a non-2xx response.
type apiErrorResponse struct {
	Message string `json:"message"`
}

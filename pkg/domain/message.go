package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Request is a single command sent to the host.
type Request struct {
	ID     uint64          `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// RPCError is the error object carried by a failed Response.
type RPCError struct {
	Message string `json:"message"`
}

// Response is the host reply to a Request. Exactly one of Result or Error is set.
type Response struct {
	ID     json.RawMessage `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *RPCError       `json:"error,omitempty"`
}

// NewResult builds a successful response for the request id.
func NewResult(id json.RawMessage, result any) (Response, error) {
	data, err := json.Marshal(result)
	if err != nil {
		return Response{}, fmt.Errorf("failed to marshal result: %w", err)
	}
	return Response{ID: id, Result: data}, nil
}

// NewErrorResponse builds a failed response for the request id.
func NewErrorResponse(id json.RawMessage, message string) Response {
	return Response{ID: id, Error: &RPCError{Message: message}}
}

// RequestID decodes the correlation id of a response.
// Hosts may echo the id as a number or as a numeric string.
func (r Response) RequestID() (uint64, error) {
	if len(r.ID) == 0 {
		return 0, fmt.Errorf("response has no id")
	}
	var n uint64
	if err := json.Unmarshal(r.ID, &n); err == nil {
		return n, nil
	}
	var s string
	if err := json.Unmarshal(r.ID, &s); err != nil {
		return 0, fmt.Errorf("unsupported response id %s", string(r.ID))
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("unsupported response id %q: %w", s, err)
	}
	return n, nil
}

// IncomingRequest is the host-side view of a Request: the id is kept raw so it
// can be echoed back verbatim whatever its JSON type.
type IncomingRequest struct {
	ID     json.RawMessage `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

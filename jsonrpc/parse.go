package jsonrpc

import (
	"bytes"
	"encoding/json"
)

// Payload is a parsed inbound message: one call, or a batch of calls.
//
// Calls are kept undecoded so that a malformed entry in a batch fails only
// that entry.
type Payload struct {
	Batch bool
	Calls []json.RawMessage
}

// Parse checks that payload is well-formed JSON and splits a batch into its
// calls. Method and params are not validated here.
//
// Malformed JSON yields CodeParseError. An empty batch yields
// CodeInvalidRequest. Either is answered with a single, non-batch response.
func Parse(payload []byte) (Payload, *JSONRPCError) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return Payload{}, NewParseError("empty payload")
	}

	if trimmed[0] == '[' {
		var calls []json.RawMessage
		if err := json.Unmarshal(trimmed, &calls); err != nil {
			return Payload{}, NewParseError(err.Error())
		}
		if len(calls) == 0 {
			return Payload{}, NewInvalidRequestError("empty batch")
		}
		return Payload{Batch: true, Calls: calls}, nil
	}

	var call json.RawMessage
	if err := json.Unmarshal(trimmed, &call); err != nil {
		return Payload{}, NewParseError(err.Error())
	}
	return Payload{Calls: []json.RawMessage{call}}, nil
}

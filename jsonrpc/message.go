package jsonrpc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Version is the only protocol version accepted and emitted.
const Version = "2.0"

var nullID = json.RawMessage("null")

// ParamsKind tags the shape of a request's params member.
type ParamsKind int

const (
	ParamsAbsent ParamsKind = iota
	ParamsPositional
	ParamsNamed
	// ParamsInvalid marks params that are present but neither an array nor
	// an object. It is rejected when the call is bound, not when it is decoded.
	ParamsInvalid
)

func (k ParamsKind) String() string {
	switch k {
	case ParamsAbsent:
		return "absent"
	case ParamsPositional:
		return "positional"
	case ParamsNamed:
		return "named"
	default:
		return "invalid"
	}
}

// Params holds a request's params as either an ordered list or a mapping.
type Params struct {
	Kind       ParamsKind
	Positional []json.RawMessage
	Named      map[string]json.RawMessage
}

// PositionalParams builds positional params from already-encoded values.
func PositionalParams(values ...json.RawMessage) Params {
	return Params{Kind: ParamsPositional, Positional: values}
}

// NamedParams builds named params from already-encoded values.
func NamedParams(values map[string]json.RawMessage) Params {
	return Params{Kind: ParamsNamed, Named: values}
}

// Request is a decoded call.
//
// ID holds the raw id exactly as received so that it is echoed byte for byte.
// It is nil when the id member was absent.
type Request struct {
	JSONRPC string
	Method  string
	ID      json.RawMessage
	Params  Params
}

// IsNotification reports whether the call carried no id, or an explicit null id.
func (r *Request) IsNotification() bool {
	return len(r.ID) == 0 || bytes.Equal(r.ID, nullID)
}

// ResponseID returns the id to attach to the response for this call.
func (r *Request) ResponseID() json.RawMessage {
	if len(r.ID) == 0 {
		return nullID
	}
	return r.ID
}

// DecodeRequest decodes a single call object.
//
// Failures are reported as CodeInvalidRequest. The returned Request carries
// whatever id could be read before the failure, so the error response can
// still be correlated.
//
// The jsonrpc member is optional; when present it must be "2.0".
func DecodeRequest(raw json.RawMessage) (Request, *JSONRPCError) {
	var req Request

	var object map[string]json.RawMessage
	if err := json.Unmarshal(raw, &object); err != nil || object == nil {
		return req, NewInvalidRequestError("request must be a JSON object")
	}

	if rawID, ok := object["id"]; ok {
		id, err := decodeID(rawID)
		if err != nil {
			return req, NewInvalidRequestError(err.Error())
		}
		req.ID = id
	}

	if rawVersion, ok := object["jsonrpc"]; ok {
		if err := json.Unmarshal(rawVersion, &req.JSONRPC); err != nil || req.JSONRPC != Version {
			return req, NewInvalidRequestError(fmt.Sprintf("jsonrpc must be %q", Version))
		}
	}

	rawMethod, ok := object["method"]
	if !ok {
		return req, NewInvalidRequestError("method is required")
	}
	if err := json.Unmarshal(rawMethod, &req.Method); err != nil {
		return req, NewInvalidRequestError("method must be a string")
	}
	if req.Method == "" {
		return req, NewInvalidRequestError("method must not be empty")
	}

	if rawParams, ok := object["params"]; ok {
		req.Params = decodeParams(rawParams)
	}

	return req, nil
}

// decodeID accepts a string, number, or null id.
func decodeID(raw json.RawMessage) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, errors.New("id must be a string, number, or null")
	}
	switch c := trimmed[0]; {
	case c == 'n':
		return nullID, nil
	case c == '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return nil, errors.New("id must be a string, number, or null")
		}
	case c == '-' || (c >= '0' && c <= '9'):
		var n json.Number
		if err := json.Unmarshal(trimmed, &n); err != nil {
			return nil, errors.New("id must be a string, number, or null")
		}
	default:
		return nil, errors.New("id must be a string, number, or null")
	}
	return trimmed, nil
}

func decodeParams(raw json.RawMessage) Params {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return Params{Kind: ParamsInvalid}
	}
	switch trimmed[0] {
	case '[':
		var list []json.RawMessage
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return Params{Kind: ParamsInvalid}
		}
		if list == nil {
			list = []json.RawMessage{}
		}
		return Params{Kind: ParamsPositional, Positional: list}
	case '{':
		var named map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &named); err != nil {
			return Params{Kind: ParamsInvalid}
		}
		return Params{Kind: ParamsNamed, Named: named}
	default:
		return Params{Kind: ParamsInvalid}
	}
}

// Response is a single response object. Exactly one of Result and Error is set.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *JSONRPCError   `json:"error,omitempty"`
}

// Success builds a result response. A nil value is encoded as a null result.
func Success(id json.RawMessage, value interface{}) (Response, error) {
	result, err := json.Marshal(value)
	if err != nil {
		return Response{}, fmt.Errorf("jsonrpc: encode result: %w", err)
	}
	if len(id) == 0 {
		id = nullID
	}
	return Response{JSONRPC: Version, ID: id, Result: result}, nil
}

// Failure builds an error response from any error.
func Failure(id json.RawMessage, err error) Response {
	if len(id) == 0 {
		id = nullID
	}
	return Response{JSONRPC: Version, ID: id, Error: encodable(asError(err))}
}

package jsonrpc

import (
	"encoding/json"
	"errors"
)

// Standard JSON-RPC 2.0 error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// Codes in [CodeServerErrorMin, CodeServerErrorMax] are reserved for
// implementation-defined server errors. Handlers signal domain failures
// with codes from this range.
const (
	CodeServerErrorMin = -32099
	CodeServerErrorMax = -32000
)

var (
	ErrDuplicateMethod   = errors.New("jsonrpc: duplicate method")
	ErrReservedMethod    = errors.New("jsonrpc: reserved method name")
	ErrRegistryFrozen    = errors.New("jsonrpc: registry is frozen")
	ErrInvalidDescriptor = errors.New("jsonrpc: invalid method descriptor")
	ErrInvalidHandler    = errors.New("jsonrpc: invalid handler")
)

// JSONRPCError is the error object carried in an error response.
//
// Handlers return a *JSONRPCError to report a failure with a specific code;
// the dispatcher passes it to the caller unchanged. Any other error returned
// by a handler is reported as CodeInternalError.
type JSONRPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e *JSONRPCError) Error() string {
	if e == nil {
		return "jsonrpc: error: <nil>"
	}
	return e.Message
}

// ErrorDetail is the data member attached to protocol and internal errors.
type ErrorDetail struct {
	Detail string `json:"detail"`
}

func NewError(code int, message string) *JSONRPCError {
	return &JSONRPCError{Code: code, Message: message}
}

func NewErrorWithData(code int, message string, data interface{}) *JSONRPCError {
	return &JSONRPCError{Code: code, Message: message, Data: data}
}

func newDetailError(code int, message, detail string) *JSONRPCError {
	e := NewError(code, message)
	if detail != "" {
		e.Data = ErrorDetail{Detail: detail}
	}
	return e
}

func NewParseError(detail string) *JSONRPCError {
	return newDetailError(CodeParseError, "Parse error", detail)
}

func NewInvalidRequestError(detail string) *JSONRPCError {
	return newDetailError(CodeInvalidRequest, "Invalid Request", detail)
}

// NewMethodNotFoundError reports the unresolved method name in the error data.
func NewMethodNotFoundError(method string) *JSONRPCError {
	return NewErrorWithData(CodeMethodNotFound, "Method not found", map[string]string{"method": method})
}

func NewInvalidParamsError(detail string) *JSONRPCError {
	return newDetailError(CodeInvalidParams, "Invalid params", detail)
}

// NewInternalError always carries a detail so callers have a description of
// the failure, even when the cause was empty.
func NewInternalError(detail string) *JSONRPCError {
	if detail == "" {
		detail = "unknown error"
	}
	return newDetailError(CodeInternalError, "Internal error", detail)
}

// IsServerErrorCode reports whether code lies in the implementation-defined range.
func IsServerErrorCode(code int) bool {
	return code >= CodeServerErrorMin && code <= CodeServerErrorMax
}

// asError converts any error to a JSON-RPC error.
// JSONRPCError values preserve their code; other errors become InternalError.
func asError(err error) *JSONRPCError {
	var rpcErr *JSONRPCError
	if errors.As(err, &rpcErr) && rpcErr != nil {
		return rpcErr
	}
	if err == nil {
		return NewInternalError("")
	}
	return NewInternalError(err.Error())
}

// encodable drops error data that cannot be serialized, so a bad data value
// never turns a well-formed error response into an encoding failure.
func encodable(e *JSONRPCError) *JSONRPCError {
	if e.Data == nil {
		return e
	}
	if _, err := json.Marshal(e.Data); err != nil {
		return &JSONRPCError{Code: e.Code, Message: e.Message}
	}
	return e
}

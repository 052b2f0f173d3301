// Package jsonrpc implements a JSON-RPC 2.0 engine and its HTTP binding.
//
// This package implements the JSON-RPC 2.0 specification (https://www.jsonrpc.org/specification)
// and JSON-RPC over HTTP (https://www.simple-is-better.org/json-rpc/transport_http.html),
// with method discovery through rpc.discover (https://spec.open-rpc.org).
//
// # Basic Usage
//
// Register methods, build a dispatcher, and serve it over HTTP:
//
//	reg := jsonrpc.NewRegistry()
//	reg.Method("add").
//	    Summary("Add two numbers").
//	    Handle(jsonrpc.Func(func(ctx context.Context, p AddParams) (float64, error) {
//	        return p.A + p.B, nil
//	    })).
//	    MustRegister()
//
//	d := jsonrpc.NewDispatcher(reg)
//	e := jsonrpc.NewEndpoint(d)
//	http.Handle("/rpc", endpoint.Handler(e.Endpoint))
//
// The params struct declares the method's parameters in order:
//
//	type AddParams struct {
//	    A float64 `json:"a" summary:"first addend"`
//	    B float64 `json:"b"`
//	}
//
// Callers may pass params by position ([1, 2]) or by name ({"a": 1, "b": 2});
// handlers see the same values either way. Pointer fields, and fields tagged
// `jsonrpc:"optional"`, are optional.
//
// # Namespaces
//
// Namespace prefixes method names with a group and an underscore:
//
//	calc := reg.Namespace("calc")
//	calc.Method("add") // -> "calc_add"
//
// Names starting with "rpc." are reserved.
//
// # Batches
//
// A batch is answered with an array holding one response per call, in the
// order the calls were received. Calls in a batch run concurrently, bounded
// by WithBatchConcurrency. Every call receives a response, including calls
// without an id.
//
// # Error Handling
//
// Return a *JSONRPCError to report a specific code:
//
//	return 0, jsonrpc.NewErrorWithData(-32001, "Division by zero", map[string]any{"b": 0})
//
// Any other error, and any panic, is reported as CodeInternalError with the
// cause in data.detail. Standard error codes are defined as constants:
//   - CodeParseError (-32700)
//   - CodeInvalidRequest (-32600)
//   - CodeMethodNotFound (-32601)
//   - CodeInvalidParams (-32602)
//   - CodeInternalError (-32603)
//
// # Discovery
//
// rpc.discover returns an OpenRPC document built from the registry, or any
// other Provider set with WithDiscovery. JSONRPCEndpoint.Discovery serves the
// same document over GET.
//
// # Processor Integration
//
// Processors can be passed to endpoint.Handler for cross-cutting concerns:
//
//	http.Handle("/rpc", endpoint.Handler(e.Endpoint, requestID, accessLog))
//
// Processor errors return HTTP error responses (not JSON-RPC errors).
package jsonrpc

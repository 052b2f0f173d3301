package jsonrpc

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/mnehpets/rpcserve/endpoint"
)

// JSONRPCEndpoint binds a Dispatcher to HTTP.
// Use endpoint.Handler(e.Endpoint, processors...) to create an http.Handler.
type JSONRPCEndpoint struct {
	dispatcher *Dispatcher
}

// NewEndpoint creates an HTTP binding for d.
func NewEndpoint(d *Dispatcher) *JSONRPCEndpoint {
	return &JSONRPCEndpoint{dispatcher: d}
}

// rpcParams captures the raw request body. Parsing is deferred to the
// dispatcher, since JSON-RPC reports malformed bodies as protocol errors
// rather than HTTP errors.
type rpcParams struct {
	Body        []byte `body:""`
	ContentType string `header:"Content-Type"`
}

// Endpoint processes JSON-RPC requests sent with POST.
//
// Every JSON-RPC outcome, including parse errors, is reported with HTTP 200.
// Bodies may be JSON or CBOR; the response uses the request's encoding.
func (e *JSONRPCEndpoint) Endpoint(w http.ResponseWriter, r *http.Request, params rpcParams) (endpoint.Renderer, error) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		return nil, endpoint.Error(http.StatusMethodNotAllowed, "JSON-RPC requires POST method", nil)
	}

	c, ok := codecFor(params.ContentType)
	if !ok {
		return nil, endpoint.Error(http.StatusUnsupportedMediaType, "Content-Type must be application/json or application/cbor", nil)
	}

	var reply Reply
	payload, err := c.decode(params.Body)
	if err != nil {
		reply = Reply{Responses: []Response{Failure(nil, NewParseError(err.Error()))}}
	} else {
		reply = e.dispatcher.Handle(r.Context(), payload)
	}

	body, err := json.Marshal(reply)
	if err != nil {
		return nil, endpoint.Error(http.StatusInternalServerError, "", err)
	}
	body, err = c.encode(body)
	if err != nil {
		return nil, endpoint.Error(http.StatusInternalServerError, "", err)
	}

	return &endpoint.BytesRenderer{ContentType: c.contentType, Body: body}, nil
}

type discoveryParams struct {
	IfNoneMatch string `header:"If-None-Match"`
}

// Discovery serves the discovery document over GET, the same document that
// rpc.discover returns. Responses carry an ETag and honour If-None-Match.
func (e *JSONRPCEndpoint) Discovery(w http.ResponseWriter, r *http.Request, params discoveryParams) (endpoint.Renderer, error) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		return nil, endpoint.Error(http.StatusMethodNotAllowed, "", nil)
	}

	doc, err := e.dispatcher.Discover(r.Context())
	if err != nil {
		return nil, endpoint.Error(http.StatusServiceUnavailable, "discovery document unavailable", err)
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return nil, endpoint.Error(http.StatusInternalServerError, "", err)
	}

	etag := DocumentETag(body)
	header := http.Header{}
	header.Set("ETag", etag)
	header.Set("Cache-Control", "no-cache")
	if etagMatches(params.IfNoneMatch, etag) {
		return &endpoint.BytesRenderer{Status: http.StatusNotModified, Header: header}, nil
	}
	if r.Method == http.MethodHead {
		header.Set("Content-Type", contentTypeJSON)
		return &endpoint.BytesRenderer{Header: header}, nil
	}
	return &endpoint.BytesRenderer{ContentType: contentTypeJSON, Header: header, Body: append(body, '\n')}, nil
}

// etagMatches reports whether an If-None-Match header value matches etag.
// The header may list several tags, or "*". Comparison is weak.
func etagMatches(header, etag string) bool {
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" {
			return true
		}
		if strings.TrimPrefix(candidate, "W/") == strings.TrimPrefix(etag, "W/") {
			return true
		}
	}
	return false
}

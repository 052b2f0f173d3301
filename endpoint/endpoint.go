// Package endpoint provides a type-safe abstraction for building HTTP handlers.
//
// A request passes through three phases:
//
//  1. Unmarshal: the EndpointHandler decodes the request (body, headers, query)
//     into a typed parameters struct using struct tags.
//  2. Endpoint: the EndpointFunc receives the decoded parameters and the request,
//     executes business logic, and returns a Renderer. It does not write to the
//     response directly.
//  3. Render: the returned Renderer writes the status code, headers, and body.
//
// Processors are chained as middleware and run before the EndpointFunc.
//
// Renderers:
//   - JSONRenderer: serializes a value as JSON.
//   - BytesRenderer: writes pre-encoded bytes with a given content type.
//   - StringRenderer: writes a plain string.
//   - NoContentRenderer: writes a status code with no body.
package endpoint

import (
	"errors"
	"io"
	"net/http"
)

// EndpointError is a client-visible error that maps directly to an HTTP status code.
type EndpointError struct {
	Status int
	// Message is a short, human-readable description suitable for an HTTP error body.
	Message string
	Cause   error
}

func (e *EndpointError) Error() string {
	if e == nil {
		return "endpoint: error: <nil>"
	}
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
		if msg == "" {
			msg = "unknown error"
		}
	}
	if e.Cause != nil {
		return msg + ": " + e.Cause.Error()
	}
	return msg
}

func (e *EndpointError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Error creates a new EndpointError. An err that already is an EndpointError
// is returned unchanged.
func Error(status int, message string, err error) error {
	var ee *EndpointError
	if errors.As(err, &ee) {
		return err
	}
	return &EndpointError{Status: status, Message: message, Cause: err}
}

// Renderer writes a response. Renderers MUST call w.WriteHeader and may set
// headers such as Content-Type before doing so.
//
// A non-nil error from Render means the response could not be written; the
// caller logs it, since the status line may already have been sent.
type Renderer interface {
	Render(w http.ResponseWriter, r *http.Request) error
}

// RendererFunc adapts a function to a Renderer.
type RendererFunc func(w http.ResponseWriter, r *http.Request) error

func (f RendererFunc) Render(w http.ResponseWriter, r *http.Request) error {
	return f(w, r)
}

// Processor is middleware-style logic that runs before the EndpointFunc.
//
// Processors MUST call next unless they intend to short-circuit the request,
// and MUST NOT write the response status or body. A non-nil error stops the
// chain and is turned into an HTTP error response.
type Processor interface {
	Process(w http.ResponseWriter, r *http.Request, next func(w http.ResponseWriter, r *http.Request) error) error
}

// ProcessorFunc adapts a function to a Processor.
type ProcessorFunc func(w http.ResponseWriter, r *http.Request, next func(w http.ResponseWriter, r *http.Request) error) error

func (f ProcessorFunc) Process(w http.ResponseWriter, r *http.Request, next func(w http.ResponseWriter, r *http.Request) error) error {
	return f(w, r, next)
}

// EndpointFunc implements business logic for one route.
//
// It receives the decoded params and returns a Renderer for the response.
// Params decoding is performed by the Handler wrapper.
type EndpointFunc[P any] func(w http.ResponseWriter, r *http.Request, params P) (Renderer, error)

// EndpointHandler is the http.Handler wrapper for an EndpointFunc.
type EndpointHandler[P any] struct {
	Endpoint   EndpointFunc[P]
	Processors []Processor
}

// Handler constructs an EndpointHandler. It exists to enable type inference
// for the params type P.
func Handler[P any](fn EndpointFunc[P], processors ...Processor) *EndpointHandler[P] {
	return &EndpointHandler[P]{
		Endpoint:   fn,
		Processors: processors,
	}
}

// HandleFunc adapts an EndpointFunc into an http.HandlerFunc.
func HandleFunc[P any](fn EndpointFunc[P], processors ...Processor) http.HandlerFunc {
	return Handler(fn, processors...).ServeHTTP
}

// ServeHTTP implements http.Handler.
func (h *EndpointHandler[P]) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.Endpoint == nil {
		http.Error(w, "endpoint: nil EndpointFunc", http.StatusInternalServerError)
		return
	}

	tw := &trackingWriter{ResponseWriter: w}
	// last is the innermost request reached. Its context carries any
	// request-scoped logger installed by a processor.
	last := r
	var run func(i int, w2 http.ResponseWriter, r2 *http.Request) error
	run = func(i int, w2 http.ResponseWriter, r2 *http.Request) error {
		last = r2
		if i < len(h.Processors) {
			if h.Processors[i] == nil {
				return errors.New("endpoint: nil processor")
			}
			return h.Processors[i].Process(w2, r2, func(w3 http.ResponseWriter, r3 *http.Request) error {
				return run(i+1, w3, r3)
			})
		}
		return h.serve(w2, r2)
	}

	err := run(0, tw, r)
	if err == nil {
		return
	}

	logger := LoggerFromContext(last.Context(), nil)
	if tw.wrote {
		// Headers are gone; all that is left is to record the failure.
		logger.WithError(err).Warn("endpoint: render failed")
		return
	}

	status, message := http.StatusInternalServerError, err.Error()
	var ee *EndpointError
	if errors.As(err, &ee) && ee != nil {
		if ee.Status >= 100 {
			status = ee.Status
		}
		message = ee.Message
		if message == "" {
			message = http.StatusText(status)
		}
	}
	if status >= http.StatusInternalServerError {
		logger.WithError(err).WithField("status", status).Error("endpoint: request failed")
	}
	if status == http.StatusNoContent || status == http.StatusNotModified {
		w.WriteHeader(status)
		return
	}
	http.Error(w, message, status)
}

// serve decodes params, calls the EndpointFunc, and renders its result.
func (h *EndpointHandler[P]) serve(w http.ResponseWriter, r *http.Request) error {
	var params P
	if err := Unmarshal(r, &params); err != nil {
		return err
	}
	renderer, err := h.Endpoint(w, r, params)
	if err != nil {
		return err
	}
	if renderer == nil {
		return errors.New("endpoint: nil renderer")
	}
	if c, ok := renderer.(io.Closer); ok {
		defer c.Close()
	}
	return renderer.Render(w, r)
}

// trackingWriter records whether the response has been started, so that a
// late error is not answered with a second status line.
type trackingWriter struct {
	http.ResponseWriter
	wrote bool
}

func (tw *trackingWriter) WriteHeader(status int) {
	tw.wrote = true
	tw.ResponseWriter.WriteHeader(status)
}

func (tw *trackingWriter) Write(b []byte) (int, error) {
	tw.wrote = true
	return tw.ResponseWriter.Write(b)
}

func (tw *trackingWriter) Unwrap() http.ResponseWriter {
	return tw.ResponseWriter
}

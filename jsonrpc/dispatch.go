package jsonrpc

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mnehpets/rpcserve/endpoint"
)

// Observer is notified once per call with the outcome code (0 on success).
// method is empty when the call could not be decoded.
type Observer interface {
	ObserveCall(method string, code int, elapsed time.Duration)
}

// Dispatcher resolves, binds, and invokes calls against a frozen Registry.
// It is safe for concurrent use.
type Dispatcher struct {
	registry         *Registry
	discovery        Provider
	logger           logrus.FieldLogger
	observer         Observer
	batchConcurrency int
	maxBatchSize     int
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithDiscovery sets the provider answering rpc.discover.
// The default describes the registry.
func WithDiscovery(p Provider) Option {
	return func(d *Dispatcher) {
		d.discovery = p
	}
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(d *Dispatcher) {
		d.logger = l
	}
}

func WithObserver(o Observer) Option {
	return func(d *Dispatcher) {
		d.observer = o
	}
}

// WithBatchConcurrency bounds how many calls of one batch run at once.
// n <= 0 removes the bound. The default is GOMAXPROCS.
func WithBatchConcurrency(n int) Option {
	return func(d *Dispatcher) {
		if n <= 0 {
			n = -1
		}
		d.batchConcurrency = n
	}
}

// WithMaxBatchSize rejects batches with more than n calls: every call gets an
// Invalid Request response carrying its id. n <= 0 means no limit.
func WithMaxBatchSize(n int) Option {
	return func(d *Dispatcher) {
		d.maxBatchSize = n
	}
}

// NewDispatcher freezes reg and returns a dispatcher serving its methods.
func NewDispatcher(reg *Registry, opts ...Option) *Dispatcher {
	reg.Freeze()
	d := &Dispatcher{
		registry:         reg,
		logger:           logrus.StandardLogger(),
		batchConcurrency: runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.discovery == nil {
		d.discovery = RegistryProvider(reg, Info{Title: "JSON-RPC API", Version: "1.0.0"})
	}
	return d
}

// Discover returns the discovery document.
func (d *Dispatcher) Discover(ctx context.Context) (interface{}, error) {
	return d.discovery.Document(ctx)
}

// Call processes one encoded call and always returns a response for it.
func (d *Dispatcher) Call(ctx context.Context, raw json.RawMessage) Response {
	start := time.Now()

	req, rpcErr := DecodeRequest(raw)
	if rpcErr != nil {
		d.observe("", rpcErr.Code, start)
		return Failure(req.ResponseID(), rpcErr)
	}

	resp := d.Invoke(ctx, &req)
	code := 0
	if resp.Error != nil {
		code = resp.Error.Code
	}
	d.observe(req.Method, code, start)
	return resp
}

// Invoke runs a decoded request: resolve, bind, invoke, and encode.
// Handler failures, including panics, are converted to error responses.
func (d *Dispatcher) Invoke(ctx context.Context, req *Request) (resp Response) {
	id := req.ResponseID()
	logger := endpoint.LoggerFromContext(ctx, d.logger).WithField("rpc_method", req.Method)

	defer func() {
		if r := recover(); r != nil {
			logger.WithField("panic", r).Error("jsonrpc: handler panic")
			resp = Failure(id, NewInternalError(fmt.Sprint(r)))
		}
	}()

	if req.Method == DiscoverMethod {
		doc, err := d.discovery.Document(ctx)
		if err != nil {
			logger.WithError(err).Error("jsonrpc: discovery document unavailable")
			return Failure(id, NewInternalError("discovery document unavailable: "+err.Error()))
		}
		return d.success(id, doc, logger)
	}

	desc, ok := d.registry.Lookup(req.Method)
	if !ok {
		return Failure(id, NewMethodNotFoundError(req.Method))
	}

	args, err := Bind(desc.Params, req.Params)
	if err != nil {
		return Failure(id, err)
	}

	result, err := desc.Handler(ctx, args)
	if err != nil {
		rpcErr := asError(err)
		if rpcErr.Code == CodeInternalError {
			logger.WithError(err).Error("jsonrpc: handler failed")
		}
		return Failure(id, rpcErr)
	}
	return d.success(id, result, logger)
}

func (d *Dispatcher) success(id json.RawMessage, value interface{}, logger logrus.FieldLogger) Response {
	resp, err := Success(id, value)
	if err != nil {
		logger.WithError(err).Error("jsonrpc: result encoding failed")
		return Failure(id, NewInternalError(err.Error()))
	}
	return resp
}

func (d *Dispatcher) observe(method string, code int, start time.Time) {
	if d.observer != nil {
		d.observer.ObserveCall(method, code, time.Since(start))
	}
}

package jsonrpc

import (
	"context"
	"encoding/json"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Reply is the outcome of one inbound payload. It encodes as an array when
// the payload was a batch, and as a single response object otherwise.
type Reply struct {
	Batch     bool
	Responses []Response
}

func (r Reply) MarshalJSON() ([]byte, error) {
	if r.Batch {
		return json.Marshal(r.Responses)
	}
	if len(r.Responses) != 1 {
		return nil, fmt.Errorf("jsonrpc: single reply with %d responses", len(r.Responses))
	}
	return json.Marshal(r.Responses[0])
}

// Handle processes a raw payload.
//
// Every call in a batch is answered, in input order, regardless of the order
// in which calls complete. A failing call never affects its siblings.
// Parse errors and empty batches produce a single non-batch error response.
// A batch over the size limit is answered call by call with
// CodeInvalidRequest.
func (d *Dispatcher) Handle(ctx context.Context, payload []byte) Reply {
	p, perr := Parse(payload)
	if perr != nil {
		d.logger.WithField("code", perr.Code).Debug("jsonrpc: rejected payload")
		d.observeProtocol(perr.Code)
		return Reply{Responses: []Response{Failure(nil, perr)}}
	}

	if d.maxBatchSize > 0 && len(p.Calls) > d.maxBatchSize {
		return d.rejectBatch(p.Calls)
	}

	responses := make([]Response, len(p.Calls))
	if len(p.Calls) == 1 {
		responses[0] = d.Call(ctx, p.Calls[0])
		return Reply{Batch: p.Batch, Responses: responses}
	}

	var g errgroup.Group
	g.SetLimit(d.batchConcurrency)
	for i, raw := range p.Calls {
		g.Go(func() error {
			responses[i] = d.Call(ctx, raw)
			return nil
		})
	}
	_ = g.Wait()

	return Reply{Batch: p.Batch, Responses: responses}
}

// rejectBatch answers every call of an oversized batch with
// CodeInvalidRequest, echoing each call's id. No handler runs.
func (d *Dispatcher) rejectBatch(calls []json.RawMessage) Reply {
	err := NewInvalidRequestError(fmt.Sprintf("batch of %d calls exceeds limit of %d", len(calls), d.maxBatchSize))
	responses := make([]Response, len(calls))
	for i, raw := range calls {
		req, _ := DecodeRequest(raw)
		responses[i] = Failure(req.ResponseID(), err)
		d.observeProtocol(err.Code)
	}
	return Reply{Batch: true, Responses: responses}
}

// Process handles payload and encodes the reply.
func (d *Dispatcher) Process(ctx context.Context, payload []byte) ([]byte, error) {
	return json.Marshal(d.Handle(ctx, payload))
}

func (d *Dispatcher) observeProtocol(code int) {
	if d.observer != nil {
		d.observer.ObserveCall("", code, 0)
	}
}

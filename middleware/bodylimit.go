package middleware

import (
	"fmt"
	"net/http"

	"github.com/mnehpets/rpcserve/endpoint"
)

// BodyLimitProcessor caps the request body at Limit bytes. Requests that
// declare a larger Content-Length are rejected with 413 before the endpoint
// runs; others fail with 413 when the body is read past the limit.
type BodyLimitProcessor struct {
	Limit int64
}

// Process implements endpoint.Processor. A Limit <= 0 disables the check.
func (p *BodyLimitProcessor) Process(w http.ResponseWriter, r *http.Request, next func(http.ResponseWriter, *http.Request) error) error {
	if p.Limit <= 0 || r.Body == nil {
		return next(w, r)
	}
	if r.ContentLength > p.Limit {
		return endpoint.Error(http.StatusRequestEntityTooLarge, "",
			fmt.Errorf("content length %d exceeds limit of %d bytes", r.ContentLength, p.Limit))
	}
	r.Body = http.MaxBytesReader(w, r.Body, p.Limit)
	return next(w, r)
}

var _ endpoint.Processor = (*BodyLimitProcessor)(nil)

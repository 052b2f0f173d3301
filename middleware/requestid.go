package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/mnehpets/rpcserve/endpoint"
)

// RequestIDHeader carries the request identifier in both directions.
const RequestIDHeader = "X-Request-ID"

// MaxRequestIDLength bounds client-supplied identifiers. Longer or
// non-printable values are replaced with a fresh one.
const MaxRequestIDLength = 128

type requestIDKey struct{}

// RequestIDProcessor assigns every request an identifier, echoes it in the
// response, and stores a logger carrying it in the request context.
//
// Downstream code retrieves the logger with endpoint.LoggerFromContext and
// the identifier with RequestIDFromContext.
type RequestIDProcessor struct {
	Logger logrus.FieldLogger

	// TrustHeader accepts an incoming X-Request-ID instead of always
	// generating one.
	TrustHeader bool
}

// NewRequestIDProcessor creates a processor that trusts incoming request IDs.
// A nil logger uses the logrus standard logger.
func NewRequestIDProcessor(logger logrus.FieldLogger) *RequestIDProcessor {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &RequestIDProcessor{Logger: logger, TrustHeader: true}
}

// Process implements endpoint.Processor.
func (p *RequestIDProcessor) Process(w http.ResponseWriter, r *http.Request, next func(http.ResponseWriter, *http.Request) error) error {
	id := ""
	if p.TrustHeader {
		id = r.Header.Get(RequestIDHeader)
	}
	if !validRequestID(id) {
		id = uuid.NewString()
	}
	w.Header().Set(RequestIDHeader, id)

	logger := p.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	ctx := context.WithValue(r.Context(), requestIDKey{}, id)
	ctx = endpoint.WithLogger(ctx, logger.WithField("request_id", id))
	return next(w, r.WithContext(ctx))
}

// RequestIDFromContext returns the identifier assigned by RequestIDProcessor,
// or "" if there is none.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func validRequestID(id string) bool {
	if id == "" || len(id) > MaxRequestIDLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		if c := id[i]; c <= ' ' || c > '~' {
			return false
		}
	}
	return true
}

var _ endpoint.Processor = (*RequestIDProcessor)(nil)

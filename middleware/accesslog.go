package middleware

import (
	"errors"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mnehpets/rpcserve/endpoint"
)

// AccessLogProcessor logs one line per request at info level with the
// method, path, status, and duration.
//
// Place it after RequestIDProcessor so the line carries the request ID.
type AccessLogProcessor struct {
	// Logger is used when the context carries no request-scoped logger.
	Logger logrus.FieldLogger
}

// Process implements endpoint.Processor.
func (p *AccessLogProcessor) Process(w http.ResponseWriter, r *http.Request, next func(http.ResponseWriter, *http.Request) error) error {
	start := time.Now()
	sw := &statusWriter{ResponseWriter: w}

	err := next(sw, r)

	status := sw.status
	if status == 0 {
		status = statusOf(err)
	}
	entry := endpoint.LoggerFromContext(r.Context(), p.Logger).WithFields(logrus.Fields{
		"http_method": r.Method,
		"path":        r.URL.Path,
		"status":      status,
		"duration_ms": float64(time.Since(start).Microseconds()) / 1000,
		"bytes":       sw.bytes,
	})
	if err != nil && status >= http.StatusInternalServerError {
		entry = entry.WithError(err)
	}
	entry.Info("request")
	return err
}

// statusOf predicts the status that endpoint.Handler will send for err.
func statusOf(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var ee *endpoint.EndpointError
	if errors.As(err, &ee) && ee != nil && ee.Status >= 100 {
		return ee.Status
	}
	return http.StatusInternalServerError
}

type statusWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (sw *statusWriter) WriteHeader(status int) {
	if sw.status == 0 {
		sw.status = status
	}
	sw.ResponseWriter.WriteHeader(status)
}

func (sw *statusWriter) Write(b []byte) (int, error) {
	if sw.status == 0 {
		sw.status = http.StatusOK
	}
	n, err := sw.ResponseWriter.Write(b)
	sw.bytes += n
	return n, err
}

func (sw *statusWriter) Unwrap() http.ResponseWriter {
	return sw.ResponseWriter
}

var _ endpoint.Processor = (*AccessLogProcessor)(nil)

package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/mnehpets/rpcserve/endpoint"
)

// SecurityHeadersProcessor sets response headers suited to a JSON API and,
// when CORS is configured, answers browser preflight requests.
//
// Defaults from NewSecurityHeadersProcessor:
//   - Strict-Transport-Security: max-age=31536000; includeSubDomains
//   - X-Content-Type-Options: nosniff
//   - Referrer-Policy: no-referrer
//   - Content-Security-Policy: default-src 'none'; frame-ancestors 'none'
//   - Cache-Control: no-store
//
// Header values are fixed at construction. Modify Headers directly to add or
// remove entries; an empty value is not sent.
type SecurityHeadersProcessor struct {
	Headers http.Header

	// CORS enables Cross-Origin Resource Sharing. Nil disables it.
	CORS *CORSConfig
}

// CORSConfig configures Cross-Origin Resource Sharing.
type CORSConfig struct {
	// AllowedOrigins lists origins allowed to call the API. "*" allows any
	// origin, but is ignored when AllowCredentials is set.
	AllowedOrigins []string

	// AllowedMethods defaults to POST, GET, OPTIONS.
	AllowedMethods []string

	// AllowedHeaders defaults to Content-Type and X-Request-ID.
	AllowedHeaders []string

	// ExposedHeaders defaults to X-Request-ID, so browser clients can
	// correlate calls with server logs.
	ExposedHeaders []string

	AllowCredentials bool

	// MaxAge is how long, in seconds, preflight results may be cached.
	// Default: 600.
	MaxAge int
}

// SecurityHeadersOption configures a SecurityHeadersProcessor.
type SecurityHeadersOption func(*SecurityHeadersProcessor)

// NewSecurityHeadersProcessor creates a processor with API defaults.
func NewSecurityHeadersProcessor(opts ...SecurityHeadersOption) *SecurityHeadersProcessor {
	p := &SecurityHeadersProcessor{
		Headers: http.Header{
			"Strict-Transport-Security": {FormatHSTS(31536000, true, false)},
			"X-Content-Type-Options":    {"nosniff"},
			"Referrer-Policy":           {"no-referrer"},
			"Content-Security-Policy":   {"default-src 'none'; frame-ancestors 'none'"},
			"Cache-Control":             {"no-store"},
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// WithHSTS replaces the Strict-Transport-Security value. maxAge <= 0 disables it.
func WithHSTS(maxAge int, includeSubDomains, preload bool) SecurityHeadersOption {
	return WithHeader("Strict-Transport-Security", FormatHSTS(maxAge, includeSubDomains, preload))
}

// WithoutHSTS disables Strict-Transport-Security, e.g. for plain HTTP on a
// private network.
func WithoutHSTS() SecurityHeadersOption {
	return WithHeader("Strict-Transport-Security", "")
}

// WithHeader sets a header value. An empty value removes the header.
func WithHeader(name, value string) SecurityHeadersOption {
	return func(p *SecurityHeadersProcessor) {
		if value == "" {
			p.Headers.Del(name)
			return
		}
		p.Headers.Set(name, value)
	}
}

// WithCORS enables CORS, filling unset fields with defaults.
func WithCORS(config CORSConfig) SecurityHeadersOption {
	return func(p *SecurityHeadersProcessor) {
		if config.AllowedMethods == nil {
			config.AllowedMethods = []string{http.MethodPost, http.MethodGet, http.MethodOptions}
		}
		if config.AllowedHeaders == nil {
			config.AllowedHeaders = []string{"Content-Type", RequestIDHeader}
		}
		if config.ExposedHeaders == nil {
			config.ExposedHeaders = []string{RequestIDHeader}
		}
		if config.MaxAge == 0 {
			config.MaxAge = 600
		}
		p.CORS = &config
	}
}

// FormatHSTS formats a Strict-Transport-Security value. It returns "" when
// maxAge <= 0.
func FormatHSTS(maxAge int, includeSubDomains, preload bool) string {
	if maxAge <= 0 {
		return ""
	}
	value := "max-age=" + strconv.Itoa(maxAge)
	if includeSubDomains {
		value += "; includeSubDomains"
	}
	if preload {
		value += "; preload"
	}
	return value
}

// Process implements endpoint.Processor.
func (p *SecurityHeadersProcessor) Process(w http.ResponseWriter, r *http.Request, next func(http.ResponseWriter, *http.Request) error) error {
	h := w.Header()
	for name, values := range p.Headers {
		if len(values) > 0 && values[0] != "" {
			h[name] = append([]string(nil), values...)
		}
	}

	if p.CORS != nil {
		p.CORS.apply(w, r)

		// A preflight is an OPTIONS request carrying Origin and
		// Access-Control-Request-Method. It never reaches the endpoint.
		if r.Method == http.MethodOptions &&
			r.Header.Get("Origin") != "" &&
			r.Header.Get("Access-Control-Request-Method") != "" {
			return endpoint.Error(http.StatusNoContent, "", nil)
		}
	}

	return next(w, r)
}

func (c *CORSConfig) apply(w http.ResponseWriter, r *http.Request) {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return
	}
	h := w.Header()
	h.Add("Vary", "Origin")

	allowed := ""
	for _, o := range c.AllowedOrigins {
		if o == origin {
			allowed = origin
			break
		}
		// A wildcard must never be combined with credentials.
		if o == "*" && !c.AllowCredentials {
			allowed = "*"
		}
	}
	if allowed == "" {
		return
	}
	h.Set("Access-Control-Allow-Origin", allowed)

	if c.AllowCredentials {
		h.Set("Access-Control-Allow-Credentials", "true")
	}
	if len(c.ExposedHeaders) > 0 {
		h.Set("Access-Control-Expose-Headers", strings.Join(c.ExposedHeaders, ", "))
	}
	if r.Method == http.MethodOptions {
		if len(c.AllowedMethods) > 0 {
			h.Set("Access-Control-Allow-Methods", strings.Join(c.AllowedMethods, ", "))
		}
		if len(c.AllowedHeaders) > 0 {
			h.Set("Access-Control-Allow-Headers", strings.Join(c.AllowedHeaders, ", "))
		}
		if c.MaxAge > 0 {
			h.Set("Access-Control-Max-Age", strconv.Itoa(c.MaxAge))
		}
	}
}

var _ endpoint.Processor = (*SecurityHeadersProcessor)(nil)

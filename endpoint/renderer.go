package endpoint

import "net/http"

// StringRenderer writes a string body.
//
// ContentType defaults to "text/plain; charset=utf-8" and Status to 200.
type StringRenderer struct {
	Status      int
	Body        string
	ContentType string
}

func (sr *StringRenderer) Render(w http.ResponseWriter, _ *http.Request) error {
	contentType := sr.ContentType
	if contentType == "" {
		contentType = "text/plain; charset=utf-8"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(statusOr(sr.Status, http.StatusOK))
	if sr.Body == "" {
		return nil
	}
	_, err := w.Write([]byte(sr.Body))
	return err
}

// BytesRenderer writes an already-encoded body.
//
// Header entries replace any response headers of the same name before the
// status is written.
// An empty Body writes headers only, which suits 304 responses.
type BytesRenderer struct {
	Status      int
	ContentType string
	Header      http.Header
	Body        []byte
}

func (br *BytesRenderer) Render(w http.ResponseWriter, _ *http.Request) error {
	for k, vs := range br.Header {
		w.Header()[k] = append([]string(nil), vs...)
	}
	if br.ContentType != "" && len(br.Body) > 0 {
		w.Header().Set("Content-Type", br.ContentType)
	}
	w.WriteHeader(statusOr(br.Status, http.StatusOK))
	if len(br.Body) == 0 {
		return nil
	}
	_, err := w.Write(br.Body)
	return err
}

// NoContentRenderer writes a status code with no body. Status defaults to 204.
type NoContentRenderer struct {
	Status int
}

func (ncr *NoContentRenderer) Render(w http.ResponseWriter, _ *http.Request) error {
	w.WriteHeader(statusOr(ncr.Status, http.StatusNoContent))
	return nil
}

func statusOr(status, fallback int) int {
	if status == 0 {
		return fallback
	}
	return status
}

package endpoint

import (
	"bytes"
	"encoding/json"
	"net/http"
)

// JSONRenderer serializes a value as JSON and writes it to the response.
//
// Content-Type is always "application/json". Status defaults to 200.
// HTML characters are not escaped and a trailing newline is appended.
type JSONRenderer struct {
	Status int
	Value  interface{}
}

func (jr *JSONRenderer) Render(w http.ResponseWriter, _ *http.Request) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(jr.Value); err != nil {
		// Nothing has been written yet, so the caller can still send a 500.
		return err
	}
	w.Header().Set("Content-Type", "application/json")
	status := jr.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, err := w.Write(buf.Bytes())
	return err
}

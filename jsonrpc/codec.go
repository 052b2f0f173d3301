package jsonrpc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime"
	"reflect"
	"strings"

	"github.com/fxamacker/cbor/v2"
)

const (
	contentTypeJSON = "application/json"
	contentTypeCBOR = "application/cbor"
)

// codec translates between a transport encoding and the JSON the
// dispatcher works on.
type codec struct {
	contentType string
	decode      func(body []byte) ([]byte, error)
	encode      func(jsonBody []byte) ([]byte, error)
}

var jsonCodec = codec{
	contentType: contentTypeJSON,
	decode:      func(b []byte) ([]byte, error) { return b, nil },
	encode:      func(b []byte) ([]byte, error) { return append(b, '\n'), nil },
}

var (
	cborDecMode cbor.DecMode
	cborEncMode cbor.EncMode
)

func init() {
	var err error
	cborDecMode, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]interface{}(nil)),
	}.DecMode()
	if err != nil {
		panic(err)
	}
	cborEncMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
}

var cborCodec = codec{
	contentType: contentTypeCBOR,
	decode:      cborToJSON,
	encode:      jsonToCBOR,
}

// codecFor selects a codec by media type. An empty Content-Type means JSON.
func codecFor(contentType string) (codec, bool) {
	contentType = strings.TrimSpace(contentType)
	if contentType == "" {
		return jsonCodec, true
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return codec{}, false
	}
	switch strings.ToLower(mt) {
	case contentTypeJSON:
		return jsonCodec, true
	case contentTypeCBOR:
		return cborCodec, true
	default:
		return codec{}, false
	}
}

func cborToJSON(body []byte) ([]byte, error) {
	var v interface{}
	if err := cborDecMode.Unmarshal(body, &v); err != nil {
		return nil, fmt.Errorf("cbor: %w", err)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("cbor: %w", err)
	}
	return b, nil
}

func jsonToCBOR(jsonBody []byte) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(jsonBody))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return cborEncMode.Marshal(cborNumbers(v))
}

// cborNumbers replaces json.Number values with integers where the number is
// integral, so that they encode as CBOR integers rather than strings.
func cborNumbers(v interface{}) interface{} {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case []interface{}:
		for i := range t {
			t[i] = cborNumbers(t[i])
		}
		return t
	case map[string]interface{}:
		for k := range t {
			t[k] = cborNumbers(t[k])
		}
		return t
	default:
		return v
	}
}

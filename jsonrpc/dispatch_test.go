package jsonrpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
)

type pairParams struct {
	A float64 `json:"a"`
	B float64 `json:"b"`
}

type numbersParams struct {
	Numbers []float64 `json:"numbers"`
}

func newTestRegistry() *Registry {
	reg := NewRegistry()
	calc := reg.Namespace("calc")

	calc.Method("add").
		Handle(Func(func(ctx context.Context, p numbersParams) (float64, error) {
			var total float64
			for _, n := range p.Numbers {
				total += n
			}
			return total, nil
		})).
		MustRegister()

	calc.Method("subtract").
		Handle(Func(func(ctx context.Context, p pairParams) (float64, error) {
			return p.A - p.B, nil
		})).
		MustRegister()

	calc.Method("divide").
		Error(-32001, "Division by zero").
		Handle(Func(func(ctx context.Context, p pairParams) (float64, error) {
			if p.B == 0 {
				return 0, NewErrorWithData(-32001, "Division by zero", map[string]float64{"b": p.B})
			}
			return p.A / p.B, nil
		})).
		MustRegister()

	reg.Method("sleep").
		Handle(Func(func(ctx context.Context, p struct {
			Ms int `json:"ms"`
		}) (int, error) {
			time.Sleep(time.Duration(p.Ms) * time.Millisecond)
			return p.Ms, nil
		})).
		MustRegister()

	reg.Method("fail").
		HandlerFunc(func(ctx context.Context, args Args) (interface{}, error) {
			return nil, errors.New("disk on fire")
		}).
		MustRegister()

	reg.Method("wrapped").
		HandlerFunc(func(ctx context.Context, args Args) (interface{}, error) {
			return nil, fmt.Errorf("lookup: %w", NewErrorWithData(-32002, "Domain error: negative input", map[string]int{"x": -1}))
		}).
		MustRegister()

	reg.Method("panic").
		HandlerFunc(func(ctx context.Context, args Args) (interface{}, error) {
			panic("kaboom")
		}).
		MustRegister()

	reg.Method("unencodable").
		HandlerFunc(func(ctx context.Context, args Args) (interface{}, error) {
			return make(chan int), nil
		}).
		MustRegister()

	return reg
}

func newTestDispatcher(opts ...Option) *Dispatcher {
	return NewDispatcher(newTestRegistry(), opts...)
}

// handle runs payload and decodes the encoded reply into generic JSON.
func handle(t *testing.T, d *Dispatcher, payload string) interface{} {
	t.Helper()
	b, err := d.Process(context.Background(), []byte(payload))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		t.Fatalf("invalid reply %s: %v", b, err)
	}
	return v
}

func handleSingle(t *testing.T, d *Dispatcher, payload string) map[string]interface{} {
	t.Helper()
	v := handle(t, d, payload)
	resp, ok := v.(map[string]interface{})
	if !ok {
		t.Fatalf("got %T, want a single response object", v)
	}
	return resp
}

func errorCode(t *testing.T, resp map[string]interface{}) int {
	t.Helper()
	errObj, ok := resp["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("response has no error: %v", resp)
	}
	if _, ok := resp["result"]; ok {
		t.Errorf("response has both result and error: %v", resp)
	}
	return int(errObj["code"].(float64))
}

func TestDispatchSuccess(t *testing.T) {
	d := newTestDispatcher()

	resp := handleSingle(t, d, `{"jsonrpc":"2.0","method":"calc_subtract","params":[5,3],"id":"req-1"}`)
	if resp["result"].(float64) != 2 {
		t.Errorf("got result %v, want 2", resp["result"])
	}
	if resp["id"] != "req-1" {
		t.Errorf("got id %v, want req-1", resp["id"])
	}
	if resp["jsonrpc"] != "2.0" {
		t.Errorf("got jsonrpc %v, want 2.0", resp["jsonrpc"])
	}
	if _, ok := resp["error"]; ok {
		t.Errorf("unexpected error member: %v", resp)
	}
}

func TestDispatchShapeAgnostic(t *testing.T) {
	d := newTestDispatcher()
	pairs := [][2]float64{{1, 2}, {-4, 0.5}, {1e9, 3}, {0, 0}}

	for _, p := range pairs {
		positional := handleSingle(t, d, fmt.Sprintf(`{"method":"calc_subtract","params":[%v,%v],"id":1}`, p[0], p[1]))
		named := handleSingle(t, d, fmt.Sprintf(`{"method":"calc_subtract","params":{"b":%v,"a":%v},"id":1}`, p[1], p[0]))
		if positional["result"] != named["result"] {
			t.Errorf("%v: positional %v, named %v", p, positional["result"], named["result"])
		}
	}
}

func TestDispatchDivideByZero(t *testing.T) {
	d := newTestDispatcher()

	b, err := d.Process(context.Background(), []byte(`{"jsonrpc":"2.0","id":1,"method":"calc_divide","params":[10,0]}`))
	if err != nil {
		t.Fatal(err)
	}
	want := `{"jsonrpc":"2.0","id":1,"error":{"code":-32001,"message":"Division by zero","data":{"b":0}}}`
	if string(b) != want {
		t.Errorf("got %s, want %s", b, want)
	}
}

func TestDispatchErrors(t *testing.T) {
	d := newTestDispatcher()

	tests := []struct {
		name       string
		payload    string
		wantCode   int
		wantDetail string
	}{
		{"unknown method positional", `{"method":"nope","params":[1],"id":1}`, CodeMethodNotFound, ""},
		{"unknown method named", `{"method":"nope","params":{"a":1},"id":1}`, CodeMethodNotFound, ""},
		{"unknown method no params", `{"method":"nope","id":1}`, CodeMethodNotFound, ""},
		{"missing params", `{"method":"calc_subtract","params":[1],"id":1}`, CodeInvalidParams, "missing param: b"},
		{"missing named params", `{"method":"calc_subtract","params":{"a":1},"id":1}`, CodeInvalidParams, "missing param: b"},
		{"wrong type", `{"method":"calc_subtract","params":["x",1],"id":1}`, CodeInvalidParams, ""},
		{"too many", `{"method":"calc_subtract","params":[1,2,3],"id":1}`, CodeInvalidParams, "too many params"},
		{"scalar params", `{"method":"calc_subtract","params":7,"id":1}`, CodeInvalidParams, ""},
		{"handler error", `{"method":"fail","id":1}`, CodeInternalError, "disk on fire"},
		{"handler panic", `{"method":"panic","id":1}`, CodeInternalError, "kaboom"},
		{"unencodable result", `{"method":"unencodable","id":1}`, CodeInternalError, "encode result"},
		{"wrapped domain error", `{"method":"wrapped","id":1}`, -32002, ""},
		{"invalid request", `{"jsonrpc":"1.0","method":"fail","id":1}`, CodeInvalidRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := handleSingle(t, d, tt.payload)
			if got := errorCode(t, resp); got != tt.wantCode {
				t.Errorf("got code %d, want %d", got, tt.wantCode)
			}
			if resp["id"].(float64) != 1 {
				t.Errorf("got id %v, want 1", resp["id"])
			}
			if tt.wantDetail == "" {
				return
			}
			data, _ := resp["error"].(map[string]interface{})["data"].(map[string]interface{})
			detail, _ := data["detail"].(string)
			if !strings.Contains(detail, tt.wantDetail) {
				t.Errorf("got detail %q, want it to contain %q", detail, tt.wantDetail)
			}
		})
	}
}

func TestDispatchMethodNotFoundData(t *testing.T) {
	resp := handleSingle(t, newTestDispatcher(), `{"method":"calc_nope","id":1}`)
	data := resp["error"].(map[string]interface{})["data"].(map[string]interface{})
	if data["method"] != "calc_nope" {
		t.Errorf("got data %v, want method calc_nope", data)
	}
}

func TestDispatchNotificationAnswered(t *testing.T) {
	resp := handleSingle(t, newTestDispatcher(), `{"jsonrpc":"2.0","method":"calc_add","params":[[1,2]]}`)
	if resp["id"] != nil {
		t.Errorf("got id %v, want null", resp["id"])
	}
	if resp["result"].(float64) != 3 {
		t.Errorf("got result %v, want 3", resp["result"])
	}
}

func TestBatchExample(t *testing.T) {
	d := newTestDispatcher()

	v := handle(t, d, `[{"id":1,"method":"calc_add","params":[[1,2,3]]},{"id":2,"method":"nope","params":[]}]`)
	resp, ok := v.([]interface{})
	if !ok {
		t.Fatalf("got %T, want an array", v)
	}
	if len(resp) != 2 {
		t.Fatalf("got %d responses, want 2", len(resp))
	}
	first := resp[0].(map[string]interface{})
	if first["id"].(float64) != 1 || first["result"].(float64) != 6 {
		t.Errorf("got first response %v", first)
	}
	second := resp[1].(map[string]interface{})
	if second["id"].(float64) != 2 || errorCode(t, second) != CodeMethodNotFound {
		t.Errorf("got second response %v", second)
	}
}

func TestBatchPreservesOrder(t *testing.T) {
	d := newTestDispatcher(WithBatchConcurrency(0))

	// Earlier calls sleep longer, so they finish last.
	var calls []string
	n := 8
	for i := 0; i < n; i++ {
		calls = append(calls, fmt.Sprintf(`{"method":"sleep","params":[%d],"id":%d}`, (n-i)*5, i))
	}
	v := handle(t, d, "["+strings.Join(calls, ",")+"]")
	resp := v.([]interface{})
	if len(resp) != n {
		t.Fatalf("got %d responses, want %d", len(resp), n)
	}
	for i, r := range resp {
		m := r.(map[string]interface{})
		if int(m["id"].(float64)) != i {
			t.Errorf("response %d: got id %v", i, m["id"])
		}
		if int(m["result"].(float64)) != (n-i)*5 {
			t.Errorf("response %d: got result %v", i, m["result"])
		}
	}
}

func TestBatchIsolatesFailures(t *testing.T) {
	d := newTestDispatcher(WithBatchConcurrency(2))

	payload := `[
		{"method":"calc_add","params":[[1,1]],"id":1},
		{"method":"panic","id":2},
		42,
		{"method":"calc_divide","params":{"a":1,"b":0},"id":4},
		{"jsonrpc":"2.0","id":5},
		{"method":"calc_subtract","params":{"a":9,"b":4},"id":6}
	]`
	resp := handle(t, d, payload).([]interface{})
	if len(resp) != 6 {
		t.Fatalf("got %d responses, want 6", len(resp))
	}

	want := []struct {
		id     interface{}
		code   int
		result float64
	}{
		{float64(1), 0, 2},
		{float64(2), CodeInternalError, 0},
		{nil, CodeInvalidRequest, 0},
		{float64(4), -32001, 0},
		{float64(5), CodeInvalidRequest, 0},
		{float64(6), 0, 5},
	}
	for i, w := range want {
		m := resp[i].(map[string]interface{})
		if m["id"] != w.id {
			t.Errorf("response %d: got id %v, want %v", i, m["id"], w.id)
		}
		if w.code != 0 {
			if got := errorCode(t, m); got != w.code {
				t.Errorf("response %d: got code %d, want %d", i, got, w.code)
			}
			continue
		}
		if m["result"].(float64) != w.result {
			t.Errorf("response %d: got result %v, want %v", i, m["result"], w.result)
		}
	}
}

func TestBatchSingleElementIsArray(t *testing.T) {
	v := handle(t, newTestDispatcher(), `[{"method":"calc_add","params":[[2]],"id":1}]`)
	resp, ok := v.([]interface{})
	if !ok || len(resp) != 1 {
		t.Fatalf("got %v, want a one-element array", v)
	}
}

func TestProtocolErrorsAreNotBatched(t *testing.T) {
	tests := []struct {
		name     string
		payload  string
		wantCode int
	}{
		{"malformed", `{"jsonrpc":"2.0","method":`, CodeParseError},
		{"not json", `not json at all`, CodeParseError},
		{"malformed batch", `[{"method":"a"},`, CodeParseError},
		{"empty batch", `[]`, CodeInvalidRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := handleSingle(t, newTestDispatcher(), tt.payload)
			if got := errorCode(t, resp); got != tt.wantCode {
				t.Errorf("got code %d, want %d", got, tt.wantCode)
			}
			if id, ok := resp["id"]; !ok || id != nil {
				t.Errorf("got id %v (present %v), want null", id, ok)
			}
		})
	}
}

func TestMaxBatchSize(t *testing.T) {
	d := newTestDispatcher(WithMaxBatchSize(2))

	v := handle(t, d, `[{"method":"calc_add","params":[[1]],"id":1},{"method":"calc_add","params":[[1]],"id":"two"},{"method":"calc_add","params":[[1]]},7]`)
	arr, ok := v.([]interface{})
	if !ok || len(arr) != 4 {
		t.Fatalf("got %v, want four responses", v)
	}
	wantIDs := []interface{}{float64(1), "two", nil, nil}
	for i, item := range arr {
		resp := item.(map[string]interface{})
		if resp["result"] != nil {
			t.Errorf("response %d: got result %v, want no handler to run", i, resp["result"])
		}
		if got := errorCode(t, resp); got != CodeInvalidRequest {
			t.Errorf("response %d: got code %d, want %d", i, got, CodeInvalidRequest)
		}
		if resp["id"] != wantIDs[i] {
			t.Errorf("response %d: got id %v, want %v", i, resp["id"], wantIDs[i])
		}
	}

	v = handle(t, d, `[{"method":"calc_add","params":[[1]],"id":1},{"method":"calc_add","params":[[1]],"id":2}]`)
	if arr, ok := v.([]interface{}); !ok || len(arr) != 2 {
		t.Errorf("got %v, want two responses", v)
	}
}

func TestDiscover(t *testing.T) {
	reg := newTestRegistry()
	d := NewDispatcher(reg, WithDiscovery(RegistryProvider(reg, Info{Title: "calc", Version: "2.0.0"})))

	for _, payload := range []string{
		`{"jsonrpc":"2.0","method":"rpc.discover","id":1}`,
		`{"jsonrpc":"2.0","method":"rpc.discover","params":[],"id":1}`,
		`{"jsonrpc":"2.0","method":"rpc.discover","params":"ignored","id":1}`,
	} {
		resp := handleSingle(t, d, payload)
		doc, ok := resp["result"].(map[string]interface{})
		if !ok {
			t.Fatalf("got %v, want a discovery document", resp)
		}
		if doc["openrpc"] != OpenRPCVersion {
			t.Errorf("got openrpc %v, want %s", doc["openrpc"], OpenRPCVersion)
		}
		info := doc["info"].(map[string]interface{})
		if info["title"] != "calc" {
			t.Errorf("got title %v, want calc", info["title"])
		}

		seen := map[string]bool{}
		for _, m := range doc["methods"].([]interface{}) {
			seen[m.(map[string]interface{})["name"].(string)] = true
		}
		for _, desc := range reg.Methods() {
			if !seen[desc.Name] {
				t.Errorf("method %q missing from discovery document", desc.Name)
			}
		}
	}
}

func TestDiscoverDocumentShape(t *testing.T) {
	reg := newTestRegistry()
	doc := BuildDocument(reg, Info{Title: "t", Version: "1"})

	var divide *OpenRPCMethod
	for i := range doc.Methods {
		if doc.Methods[i].Name == "calc_divide" {
			divide = &doc.Methods[i]
		}
	}
	if divide == nil {
		t.Fatal("calc_divide missing")
	}
	if len(divide.Params) != 2 || divide.Params[0].Name != "a" || !divide.Params[0].Required {
		t.Errorf("got params %+v", divide.Params)
	}
	if divide.Result == nil || divide.Result.Schema == nil {
		t.Error("missing result descriptor")
	}
	if len(divide.Errors) != 1 || divide.Errors[0].Code != -32001 {
		t.Errorf("got errors %+v", divide.Errors)
	}
	if _, err := json.Marshal(doc); err != nil {
		t.Errorf("document does not encode: %v", err)
	}
}

func TestStaticDiscovery(t *testing.T) {
	static := json.RawMessage(`{"openrpc":"1.2.6","info":{"title":"static","version":"0"},"methods":[]}`)
	p, err := StaticProvider(static)
	if err != nil {
		t.Fatal(err)
	}
	d := newTestDispatcher(WithDiscovery(p))

	resp := handleSingle(t, d, `{"method":"rpc.discover","id":1}`)
	info := resp["result"].(map[string]interface{})["info"].(map[string]interface{})
	if info["title"] != "static" {
		t.Errorf("got title %v, want static", info["title"])
	}

	if _, err := StaticProvider(json.RawMessage(`{`)); err == nil {
		t.Error("expected an error for an invalid document")
	}
	if _, err := LoadStaticProvider("testdata/does-not-exist.json"); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestDiscoveryUnavailable(t *testing.T) {
	d := newTestDispatcher(WithDiscovery(ProviderFunc(func(context.Context) (interface{}, error) {
		return nil, errors.New("not loaded")
	})))
	resp := handleSingle(t, d, `{"method":"rpc.discover","id":1}`)
	if got := errorCode(t, resp); got != CodeInternalError {
		t.Errorf("got code %d, want %d", got, CodeInternalError)
	}
}

type recordingObserver struct {
	mu    sync.Mutex
	calls []string
}

func (o *recordingObserver) ObserveCall(method string, code int, elapsed time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, fmt.Sprintf("%s:%d", method, code))
}

func TestObserver(t *testing.T) {
	obs := &recordingObserver{}
	d := newTestDispatcher(WithObserver(obs), WithBatchConcurrency(1))

	handle(t, d, `[{"method":"calc_add","params":[[1]],"id":1},{"method":"nope","id":2},{"id":3}]`)
	handle(t, d, `{`)

	want := []string{"calc_add:0", "nope:-32601", ":-32600", ":-32700"}
	if len(obs.calls) != len(want) {
		t.Fatalf("got %v, want %v", obs.calls, want)
	}
	for i := range want {
		if obs.calls[i] != want[i] {
			t.Errorf("call %d: got %s, want %s", i, obs.calls[i], want[i])
		}
	}
}

func TestNewDispatcherFreezesRegistry(t *testing.T) {
	reg := newTestRegistry()
	NewDispatcher(reg)
	if err := reg.Register(Descriptor{Name: "late", Handler: nopHandler}); !errors.Is(err, ErrRegistryFrozen) {
		t.Errorf("got %v, want ErrRegistryFrozen", err)
	}
}

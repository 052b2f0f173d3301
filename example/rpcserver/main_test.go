package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"

	"github.com/mnehpets/rpcserve/config"
)

func newTestServer(t *testing.T, cfg config.Config) *httptest.Server {
	t.Helper()
	logger, _ := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	h, err := newServer(cfg, logger)
	if err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func post(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestServer(t *testing.T) {
	cfg := config.Default()
	cfg.ChainState = "../../chain/testdata/state.yaml"
	srv := newTestServer(t, cfg)

	resp := post(t, srv.URL+cfg.Path, `[
		{"jsonrpc":"2.0","method":"calc_add","params":[[1,2]],"id":1},
		{"jsonrpc":"2.0","method":"eth_chainId","id":2},
		{"jsonrpc":"2.0","method":"calc_divide","params":[1,0],"id":3}
	]`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("got status %d", resp.StatusCode)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID")
	}
	if resp.Header.Get("X-Content-Type-Options") != "nosniff" {
		t.Error("missing security headers")
	}

	var got []map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d responses, want 3", len(got))
	}
	if got[0]["result"] != float64(3) {
		t.Errorf("calc_add: got %v", got[0])
	}
	if got[1]["result"] != "0x7a69" {
		t.Errorf("eth_chainId: got %v", got[1])
	}
	if errObj, _ := got[2]["error"].(map[string]interface{}); errObj == nil || errObj["code"] != float64(-32001) {
		t.Errorf("calc_divide: got %v", got[2])
	}
}

func TestServerBodyLimit(t *testing.T) {
	cfg := config.Default()
	cfg.MaxBodyBytes = 16
	srv := newTestServer(t, cfg)

	resp := post(t, srv.URL+cfg.Path, `{"jsonrpc":"2.0","method":"calc_add","params":[[1,2]],"id":1}`)
	if resp.StatusCode != http.StatusRequestEntityTooLarge {
		t.Errorf("got status %d, want 413", resp.StatusCode)
	}
}

func TestServerDiscoveryAndMetrics(t *testing.T) {
	cfg := config.Default()
	srv := newTestServer(t, cfg)

	post(t, srv.URL+cfg.Path, `{"jsonrpc":"2.0","method":"web3_clientVersion","id":1}`)

	resp, err := http.Get(srv.URL + cfg.DiscoveryPath)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK || resp.Header.Get("ETag") == "" {
		t.Fatalf("got status %d, etag %q", resp.StatusCode, resp.Header.Get("ETag"))
	}
	if cc := resp.Header.Values("Cache-Control"); len(cc) != 1 || cc[0] != "no-cache" {
		t.Errorf("got Cache-Control %v, want [no-cache]", cc)
	}
	var doc map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		t.Fatal(err)
	}
	if doc["openrpc"] != "1.2.6" {
		t.Errorf("got openrpc %v", doc["openrpc"])
	}
	if info, _ := doc["info"].(map[string]interface{}); info["title"] != "rpcserve" {
		t.Errorf("got info %v", doc["info"])
	}

	mresp, err := http.Get(srv.URL + cfg.MetricsPath)
	if err != nil {
		t.Fatal(err)
	}
	defer mresp.Body.Close()
	body, err := io.ReadAll(mresp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(body), `jsonrpc_calls_total{code="0",method="web3_clientVersion"} 1`) {
		t.Errorf("metrics missing call counter:\n%s", body)
	}
}

func TestServerOversizeBatch(t *testing.T) {
	cfg := config.Default()
	srv := newTestServer(t, cfg)

	calls := make([]string, cfg.MaxBatch+1)
	for i := range calls {
		calls[i] = fmt.Sprintf(`{"jsonrpc":"2.0","method":"calc_add","params":[[1]],"id":%d}`, i)
	}
	resp := post(t, srv.URL+cfg.Path, "["+strings.Join(calls, ",")+"]")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("got status %d", resp.StatusCode)
	}

	var got []map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("want an array reply: %v", err)
	}
	if len(got) != len(calls) {
		t.Fatalf("got %d responses, want %d", len(got), len(calls))
	}
	for i, r := range got {
		if r["id"] != float64(i) {
			t.Errorf("response %d: got id %v", i, r["id"])
		}
		if errObj, _ := r["error"].(map[string]interface{}); errObj == nil || errObj["code"] != float64(-32600) {
			t.Errorf("response %d: got %v", i, r)
		}
	}
}

func TestServerHealth(t *testing.T) {
	srv := newTestServer(t, config.Default())

	resp, err := http.Get(srv.URL + config.HealthPath)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var got map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	// 11 calc methods and 6 chain methods.
	if got["status"] != "ok" || got["methods"] != float64(17) {
		t.Errorf("got %v", got)
	}
}

func TestNewServerRejectsBadState(t *testing.T) {
	cfg := config.Default()
	cfg.ChainState = "does-not-exist.yaml"
	logger, _ := logtest.NewNullLogger()
	if _, err := newServer(cfg, logger); err == nil {
		t.Error("expected an error")
	}
}

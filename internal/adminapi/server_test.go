package adminapi

import (
	"bytes"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/carlosrabelo/mcproxy/internal/metrics"
	"github.com/carlosrabelo/mcproxy/internal/routing"
)

func newTestServer(t *testing.T) (*httptest.Server, *routing.Router) {
	t.Helper()
	router := routing.NewRouter()
	mx := metrics.NewCollector()
	srv := NewServer("127.0.0.1:0", router, mx)
	ts := httptest.NewServer(srv.Handler)
	t.Cleanup(ts.Close)
	return ts, router
}

func TestHealthz(t *testing.T) {
	ts, _ := newTestServer(t)
	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestStatusReflectsRoutes(t *testing.T) {
	ts, router := newTestServer(t)
	addr, _ := net.ResolveTCPAddr("tcp", "127.0.0.1:25566")
	router.Add("play.example.com", addr)

	resp, err := http.Get(ts.URL + "/status")
	if err != nil {
		t.Fatalf("GET /status: %v", err)
	}
	defer resp.Body.Close()

	var out statusView
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Routes) != 1 || out.Routes[0].Domain != "play.example.com" {
		t.Errorf("routes = %+v", out.Routes)
	}
}

func TestServersCollectionListAndAdd(t *testing.T) {
	ts, router := newTestServer(t)

	body, _ := json.Marshal(map[string]string{"domain": "new.example.com", "sockaddr": "127.0.0.1:25567"})
	resp, err := http.Post(ts.URL+"/api/servers", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}

	if _, ok := router.Get("new.example.com"); !ok {
		t.Error("expected route to be added to the router")
	}

	listResp, err := http.Get(ts.URL + "/api/servers")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer listResp.Body.Close()
	var routes []routeView
	if err := json.NewDecoder(listResp.Body).Decode(&routes); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(routes) != 1 {
		t.Fatalf("routes = %+v, want 1 entry", routes)
	}
}

func TestServersCollectionRejectsMissingFields(t *testing.T) {
	ts, _ := newTestServer(t)
	body, _ := json.Marshal(map[string]string{"domain": "only-domain.example.com"})
	resp, err := http.Post(ts.URL+"/api/servers", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestServerItemGetAndDelete(t *testing.T) {
	ts, router := newTestServer(t)
	addr, _ := net.ResolveTCPAddr("tcp", "127.0.0.1:25568")
	router.Add("item.example.com", addr)

	resp, err := http.Get(ts.URL + "/api/servers/item.example.com")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/api/servers/item.example.com", nil)
	delResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE: %v", err)
	}
	defer delResp.Body.Close()
	if delResp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", delResp.StatusCode)
	}
	var deleted routeView
	if err := json.NewDecoder(delResp.Body).Decode(&deleted); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if deleted.Domain != "item.example.com" {
		t.Errorf("deleted.Domain = %q, want item.example.com", deleted.Domain)
	}

	if _, ok := router.Get("item.example.com"); ok {
		t.Error("expected route to be removed")
	}
}

func TestServerItemNotFound(t *testing.T) {
	ts, _ := newTestServer(t)
	resp, err := http.Get(ts.URL + "/api/servers/nowhere.example.com")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestMetricsEndpointServesPrometheusFormat(t *testing.T) {
	ts, _ := newTestServer(t)
	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

// Package adminapi implements the proxy's admin HTTP surface: health
// check, a JSON status dump, Prometheus metrics, and CRUD over the
// routing table (SPEC_FULL.md §6, §D.5).
package adminapi

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"

	"github.com/carlosrabelo/mcproxy/internal/metrics"
	"github.com/carlosrabelo/mcproxy/internal/routing"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewServer builds the admin HTTP server bound to addr, serving
// /healthz, /status, /metrics, and /api/servers(/{host}).
func NewServer(addr string, router *routing.Router, mx *metrics.Collector) *http.Server {
	metrics.MustRegister("mcproxy", mx)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", handleHealthz)
	mux.HandleFunc("/status", handleStatus(router, mx))
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/api/servers", handleServersCollection(router))
	mux.HandleFunc("/api/servers/", handleServerItem(router))

	return &http.Server{Addr: addr, Handler: mux}
}

func handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleStatus(router *routing.Router, mx *metrics.Collector) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		hosts := router.Hosts()
		routeViews := make([]routeView, 0, len(hosts))
		for _, h := range hosts {
			route, ok := router.Get(h)
			if !ok {
				continue
			}
			routeViews = append(routeViews, routeView{
				Domain:  route.Domain,
				Addr:    route.Addr.String(),
				Players: route.Players(),
			})
		}
		out := statusView{
			Metrics: mx.Snapshot(),
			Routes:  routeViews,
		}
		writeJSON(w, http.StatusOK, out)
	}
}

type routeView struct {
	Domain  string   `json:"domain"`
	Addr    string   `json:"sockaddr"`
	Players []string `json:"players"`
}

type statusView struct {
	Metrics metrics.Snapshot `json:"metrics"`
	Routes  []routeView      `json:"routes"`
}

// handleServersCollection serves GET /api/servers (list) and
// POST /api/servers (add a route).
func handleServersCollection(router *routing.Router) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			hosts := router.Hosts()
			out := make([]routeView, 0, len(hosts))
			for _, h := range hosts {
				route, ok := router.Get(h)
				if !ok {
					continue
				}
				out = append(out, routeView{Domain: route.Domain, Addr: route.Addr.String(), Players: route.Players()})
			}
			writeJSON(w, http.StatusOK, out)

		case http.MethodPost:
			var req struct {
				Domain   string `json:"domain"`
				Upstream string `json:"sockaddr"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, http.StatusBadRequest, "invalid request body")
				return
			}
			if req.Domain == "" || req.Upstream == "" {
				writeError(w, http.StatusBadRequest, "domain and sockaddr are required")
				return
			}
			addr, err := net.ResolveTCPAddr("tcp", req.Upstream)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid sockaddr: "+err.Error())
				return
			}
			route := router.Add(req.Domain, addr)
			writeJSON(w, http.StatusCreated, routeView{Domain: route.Domain, Addr: route.Addr.String(), Players: route.Players()})

		default:
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	}
}

// handleServerItem serves GET /api/servers/{host} and
// DELETE /api/servers/{host}.
func handleServerItem(router *routing.Router) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		host := strings.TrimPrefix(r.URL.Path, "/api/servers/")
		if host == "" {
			writeError(w, http.StatusBadRequest, "missing host")
			return
		}

		switch r.Method {
		case http.MethodGet:
			route, ok := router.Get(host)
			if !ok {
				writeError(w, http.StatusNotFound, "no route for host "+host)
				return
			}
			writeJSON(w, http.StatusOK, routeView{Domain: route.Domain, Addr: route.Addr.String(), Players: route.Players()})

		case http.MethodDelete:
			route, ok := router.Remove(host)
			if !ok {
				writeError(w, http.StatusNotFound, "no route for host "+host)
				return
			}
			writeJSON(w, http.StatusOK, routeView{Domain: route.Domain, Addr: route.Addr.String(), Players: route.Players()})

		default:
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

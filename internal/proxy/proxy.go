// Package proxy wires together routing, egress dialing, and the
// per-connection session state machines into the accept loop and
// admin HTTP surface described in SPEC_FULL.md.
package proxy

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"time"

	"github.com/carlosrabelo/mcproxy/internal/adminapi"
	"github.com/carlosrabelo/mcproxy/internal/egress"
	"github.com/carlosrabelo/mcproxy/internal/metrics"
	"github.com/carlosrabelo/mcproxy/internal/ratelimit"
	"github.com/carlosrabelo/mcproxy/internal/routing"
	"github.com/carlosrabelo/mcproxy/internal/session"
	"github.com/carlosrabelo/mcproxy/pkg/logger"
)

// RouteConfig is one static routing-table entry as loaded from the
// config file: a virtual hostname and the upstream it forwards to.
type RouteConfig struct {
	Domain   string `json:"domain"`
	Upstream string `json:"upstream"` // "host:port"
}

// Config holds the whole proxy configuration.
type Config struct {
	Proxy struct {
		Listen     string `json:"listen"`
		MaxClients int    `json:"max_clients"`
		TLS        struct {
			Enabled bool   `json:"enabled"`
			Cert    string `json:"cert_file"`
			Key     string `json:"key_file"`
		} `json:"tls"`
		// HandshakeTimeoutSeconds bounds AwaitHandshake and AwaitStatus
		// (SPEC_FULL.md §5 Timeouts); 0 disables it. The config loader in
		// cmd/mcproxy replaces 0 with 10 seconds.
		HandshakeTimeoutSeconds int `json:"handshake_timeout_seconds"`
	} `json:"proxy"`
	Routes    []RouteConfig    `json:"routes"`
	Egress    egress.Config    `json:"egress"`
	RateLimit ratelimit.Config `json:"ratelimit"`
	HTTP      struct {
		Listen string `json:"listen"`
	} `json:"http"`
}

// Proxy is the main proxy instance: one listener, one routing table,
// one egress dialer, shared by every ClientSession it spawns.
type Proxy struct {
	cfg    *Config
	router *routing.Router
	dialer *egress.Dialer
	mx     *metrics.Collector
	log    *logger.Logger
}

// NewProxy builds a Proxy from cfg, populating the routing table from
// cfg.Routes. Each upstream address is resolved once at startup; a bad
// entry fails fast rather than surfacing as a runtime routing error.
func NewProxy(cfg *Config) (*Proxy, error) {
	dialer, err := egress.New(&cfg.Egress)
	if err != nil {
		return nil, fmt.Errorf("proxy: building egress dialer: %w", err)
	}

	router := routing.NewRouter()
	for _, rc := range cfg.Routes {
		addr, err := net.ResolveTCPAddr("tcp", rc.Upstream)
		if err != nil {
			return nil, fmt.Errorf("proxy: resolving route %s -> %s: %w", rc.Domain, rc.Upstream, err)
		}
		router.Add(rc.Domain, addr)
	}

	return &Proxy{
		cfg:    cfg,
		router: router,
		dialer: dialer,
		mx:     metrics.NewCollector(),
		log:    logger.Default,
	}, nil
}

// Listen opens the player-facing listener per cfg.Proxy.{Listen,TLS}.
// Split out from Serve so callers (and tests) that need the bound
// address — e.g. when Listen is configured with an ephemeral ":0" port
// — can read it back before traffic starts flowing.
func (p *Proxy) Listen() (net.Listener, error) {
	if p.cfg.Proxy.TLS.Enabled {
		cert, err := tls.LoadX509KeyPair(p.cfg.Proxy.TLS.Cert, p.cfg.Proxy.TLS.Key)
		if err != nil {
			return nil, fmt.Errorf("proxy: loading tls keys: %w", err)
		}
		ln, err := tls.Listen("tcp", p.cfg.Proxy.Listen, &tls.Config{Certificates: []tls.Certificate{cert}})
		if err != nil {
			return nil, err
		}
		p.log.Info("proxy: listening on %s (TLS enabled)", ln.Addr())
		return ln, nil
	}

	ln, err := net.Listen("tcp", p.cfg.Proxy.Listen)
	if err != nil {
		return nil, err
	}
	p.log.Info("proxy: listening on %s", ln.Addr())
	return ln, nil
}

// AcceptLoop opens the listener and serves it until ctx is cancelled.
func (p *Proxy) AcceptLoop(ctx context.Context) error {
	ln, err := p.Listen()
	if err != nil {
		return err
	}
	return p.Serve(ctx, ln)
}

// Serve spawns one ClientSession per connection accepted from ln until
// ctx is cancelled or the listener errors.
func (p *Proxy) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	rl := ratelimit.NewLimiter(ctx, &p.cfg.RateLimit)
	handshakeTimeout := time.Duration(p.cfg.Proxy.HandshakeTimeoutSeconds) * time.Second

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			p.log.Error("proxy: accept error: %v", err)
			continue
		}

		if !rl.AllowConnection(conn.RemoteAddr()) {
			p.log.Info("proxy: rejecting %s: rate limit exceeded", conn.RemoteAddr())
			_ = conn.Close()
			continue
		}

		if p.cfg.Proxy.MaxClients > 0 && p.mx.ClientSessionsActive.Load() >= int64(p.cfg.Proxy.MaxClients) {
			p.log.Info("proxy: rejecting %s: max clients reached", conn.RemoteAddr())
			rl.ReleaseConnection(conn.RemoteAddr())
			_ = conn.Close()
			continue
		}

		cs := session.New(conn, p.router, p.dialer, p.mx, p.log, handshakeTimeout)
		p.log.Debug("proxy: client connected: %s", conn.RemoteAddr())
		go func() {
			defer rl.ReleaseConnection(conn.RemoteAddr())
			cs.Run(ctx)
		}()
	}
}

// HTTPServe runs the admin HTTP API until ctx is cancelled.
func (p *Proxy) HTTPServe(ctx context.Context) {
	srv := adminapi.NewServer(p.cfg.HTTP.Listen, p.router, p.mx)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	p.log.Info("http: listening on %s", p.cfg.HTTP.Listen)
	if err := srv.ListenAndServe(); err != nil {
		p.log.Error("http: %v", err)
	}
}

// Metrics exposes the proxy's metrics collector, e.g. for tests.
func (p *Proxy) Metrics() *metrics.Collector {
	return p.mx
}

// Router exposes the proxy's routing table, e.g. for tests or runtime
// route management outside the admin API.
func (p *Proxy) Router() *routing.Router {
	return p.router
}

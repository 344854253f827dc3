// Package egress provides the dialer the proxy uses for its outbound
// (upstream-facing) connections: either a direct TCP dial or a dial
// through a SOCKS5 proxy, in both cases optionally wrapped in TLS.
package egress

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/url"
	"time"

	"golang.org/x/net/proxy"
)

// Config describes how to reach upstream Minecraft servers.
type Config struct {
	Socks SocksConfig `json:"socks"`
	TLS   TLSConfig   `json:"tls"`
}

// SocksConfig holds SOCKS5 proxy configuration for upstream dials.
type SocksConfig struct {
	Enabled  bool   `json:"enabled"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"` // optional authentication
	Password string `json:"password"` // optional authentication
}

// TLSConfig controls whether upstream dials are wrapped in TLS.
type TLSConfig struct {
	Enabled            bool `json:"enabled"`
	InsecureSkipVerify bool `json:"insecure_skip_verify"`
}

// Dialer dials upstream Minecraft servers, directly or through a
// SOCKS5 proxy, optionally wrapping the result in TLS.
type Dialer struct {
	cfg    *Config
	dialer proxy.Dialer
}

// New creates a Dialer from cfg.
func New(cfg *Config) (*Dialer, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	if !cfg.Socks.Enabled {
		return &Dialer{
			cfg:    cfg,
			dialer: &net.Dialer{Timeout: 10 * time.Second},
		}, nil
	}

	if cfg.Socks.Host == "" || cfg.Socks.Port == 0 {
		return nil, fmt.Errorf("egress: socks host and port are required when socks is enabled")
	}

	proxyAddr := fmt.Sprintf("%s:%d", cfg.Socks.Host, cfg.Socks.Port)
	authURL := &url.URL{Scheme: "socks5", Host: proxyAddr}
	if cfg.Socks.Username != "" {
		authURL.User = url.UserPassword(cfg.Socks.Username, cfg.Socks.Password)
	}

	d, err := proxy.FromURL(authURL, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("egress: creating socks5 dialer: %w", err)
	}

	return &Dialer{cfg: cfg, dialer: d}, nil
}

// DialContext connects to address ("host:port"), honoring ctx
// cancellation, then wraps the connection in TLS if configured.
func (d *Dialer) DialContext(ctx context.Context, address string) (net.Conn, error) {
	conn, err := d.dialContext(ctx, address)
	if err != nil {
		return nil, err
	}
	if !d.cfg.TLS.Enabled {
		return conn, nil
	}
	host, _, splitErr := net.SplitHostPort(address)
	if splitErr != nil {
		host = address
	}
	tlsConn := tls.Client(conn, &tls.Config{
		ServerName:         host,
		InsecureSkipVerify: d.cfg.TLS.InsecureSkipVerify,
	})
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("egress: tls handshake: %w", err)
	}
	return tlsConn, nil
}

func (d *Dialer) dialContext(ctx context.Context, address string) (net.Conn, error) {
	if dialerCtx, ok := d.dialer.(interface {
		DialContext(context.Context, string, string) (net.Conn, error)
	}); ok {
		return dialerCtx.DialContext(ctx, "tcp", address)
	}

	done := make(chan struct{})
	var conn net.Conn
	var err error
	go func() {
		conn, err = d.dialer.Dial("tcp", address)
		close(done)
	}()
	select {
	case <-done:
		return conn, err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// SocksEnabled reports whether upstream dials go through a SOCKS5 proxy.
func (d *Dialer) SocksEnabled() bool {
	return d.cfg.Socks.Enabled
}

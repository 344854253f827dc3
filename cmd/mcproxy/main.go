// mcproxy - protocol-aware Minecraft reverse proxy
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/carlosrabelo/mcproxy/internal/proxy"
	"github.com/carlosrabelo/mcproxy/pkg/logger"
)

func main() {
	cfgFile := flag.String("config", "config.json", "Path to configuration file")
	version := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *version {
		fmt.Println("mcproxy v0.1.0")
		os.Exit(0)
	}

	cfg, err := loadConfig(*cfgFile)
	if err != nil {
		logger.Error("failed to load config: %v", err)
		os.Exit(1)
	}

	// An optional positional argument overrides the listen port.
	if flag.NArg() > 0 {
		host, _, err := net.SplitHostPort(cfg.Proxy.Listen)
		if err != nil {
			logger.Error("invalid listen address %q: %v", cfg.Proxy.Listen, err)
			os.Exit(1)
		}
		cfg.Proxy.Listen = net.JoinHostPort(host, flag.Arg(0))
	}

	p, err := proxy.NewProxy(cfg)
	if err != nil {
		logger.Error("failed to create proxy: %v", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	if cfg.HTTP.Listen != "" {
		go p.HTTPServe(ctx)
	}

	go func() {
		if err := p.AcceptLoop(ctx); err != nil {
			logger.Error("accept loop error: %v", err)
			cancel()
		}
	}()

	<-sigCh
	logger.Info("shutting down...")
	cancel()
	time.Sleep(1 * time.Second)
	logger.Info("shutdown complete")
}

func loadConfig(path string) (*proxy.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg proxy.Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if cfg.Proxy.Listen == "" {
		cfg.Proxy.Listen = "0.0.0.0:25565"
	}
	if cfg.Proxy.MaxClients == 0 {
		cfg.Proxy.MaxClients = 1000
	}
	if cfg.Proxy.HandshakeTimeoutSeconds == 0 {
		cfg.Proxy.HandshakeTimeoutSeconds = 10
	}
	if cfg.HTTP.Listen == "" {
		cfg.HTTP.Listen = "127.0.0.1:8080"
	}

	if len(cfg.Routes) == 0 {
		return nil, fmt.Errorf("routes: at least one route is required")
	}
	seen := make(map[string]bool, len(cfg.Routes))
	for _, r := range cfg.Routes {
		if r.Domain == "" || r.Upstream == "" {
			return nil, fmt.Errorf("routes: domain and upstream are required for every entry")
		}
		if seen[r.Domain] {
			return nil, fmt.Errorf("routes: duplicate domain %q", r.Domain)
		}
		seen[r.Domain] = true
	}

	if cfg.Egress.Socks.Enabled && (cfg.Egress.Socks.Host == "" || cfg.Egress.Socks.Port == 0) {
		return nil, fmt.Errorf("egress.socks: host and port are required when enabled")
	}

	return &cfg, nil
}

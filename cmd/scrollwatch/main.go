// Command scrollwatch runs the scroll-position layout coordinator
// against a live page.
//
// Usage:
//
//	scrollwatch -config page.yaml             # coordinate a configured page
//	scrollwatch -config page.yaml -audit      # static selector audit, then exit
//	scrollwatch -url https://example.com      # quick observation, no features
package main

import (
	"context"
	"crypto/tls"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	_ "modernc.org/sqlite"

	"github.com/hazyhaar/scrollsync/audit"
	"github.com/hazyhaar/scrollsync/browser"
	"github.com/hazyhaar/scrollsync/journal"
	"github.com/hazyhaar/scrollsync/layout"
	"github.com/hazyhaar/scrollsync/mcpquic"
)

func main() {
	configPath := flag.String("config", "", "path to page config YAML")
	singleURL := flag.String("url", "", "observe a single URL without features")
	auditOnly := flag.Bool("audit", false, "audit config selectors against the page markup and exit")
	adminAddr := flag.String("admin", "", "debug HTTP listen address (overrides config)")
	mcpAddr := flag.String("mcp-quic", "", "MCP-over-QUIC listen address (empty disables)")
	remoteChrome := flag.String("remote-chrome", "", "WebSocket URL of an external Chrome (empty launches locally)")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := runOptions{
		configPath:   *configPath,
		singleURL:    *singleURL,
		auditOnly:    *auditOnly,
		adminAddr:    *adminAddr,
		mcpAddr:      *mcpAddr,
		remoteChrome: *remoteChrome,
	}

	if err := run(ctx, logger, opts); err != nil {
		logger.Error("scrollwatch: fatal", "error", err)
		os.Exit(1)
	}
}

type runOptions struct {
	configPath   string
	singleURL    string
	auditOnly    bool
	adminAddr    string
	mcpAddr      string
	remoteChrome string
}

func run(ctx context.Context, logger *slog.Logger, opts runOptions) error {
	switch {
	case opts.configPath != "":
		cfg, err := layout.LoadConfigFile(opts.configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if opts.auditOnly {
			return runAudit(cfg)
		}
		return runPage(ctx, logger, cfg, opts)
	case opts.singleURL != "":
		cfg := &layout.Config{}
		cfg.Page.ID = "adhoc"
		cfg.Page.URL = opts.singleURL
		cfg.Sinks = []layout.SinkConfig{{Type: "stdout"}}
		return runPage(ctx, logger, cfg, opts)
	}

	fmt.Fprintln(os.Stderr, "usage: scrollwatch -config <file> [-audit] | -url <url>")
	os.Exit(1)
	return nil
}

func runAudit(cfg *layout.Config) error {
	if cfg.Page.URL == "" {
		return fmt.Errorf("audit: config has no page url")
	}
	rep, err := audit.CheckURL(cfg, cfg.Page.URL)
	if err != nil {
		return err
	}
	fmt.Print(rep.Summary())
	if !rep.Passed {
		return fmt.Errorf("audit: %s failed", cfg.Page.ID)
	}
	return nil
}

func runPage(ctx context.Context, logger *slog.Logger, cfg *layout.Config, opts runOptions) error {
	if cfg.Page.URL == "" {
		return fmt.Errorf("config has no page url")
	}

	sinks, jrnl, err := buildSinks(logger, cfg)
	if err != nil {
		return err
	}
	if jrnl != nil {
		defer jrnl.Close()
	}

	coord := layout.New(cfg, logger, sinks...)

	mgr := browser.NewManager(browser.Config{
		RemoteURL: opts.remoteChrome,
		Logger:    logger,
	})
	if err := mgr.Start(ctx); err != nil {
		return fmt.Errorf("browser start: %w", err)
	}
	defer mgr.Close()

	page, err := mgr.OpenPage(ctx, cfg.Page.URL)
	if err != nil {
		return fmt.Errorf("open page: %w", err)
	}
	defer page.Close()

	coord.SetBindings(browser.NewDriver(page, cfg, logger))
	if err := coord.Start(ctx); err != nil {
		return fmt.Errorf("coordinator start: %w", err)
	}
	defer coord.Stop()

	if jrnl != nil {
		go sweepLoop(ctx, logger, jrnl, cfg.Journal.Retention)
	}

	if addr := adminListen(cfg, opts); addr != "" {
		srv := &http.Server{Addr: addr, Handler: coord.AdminRouter()}
		go func() {
			logger.Info("scrollwatch: admin listening", "addr", addr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("scrollwatch: admin server", "error", err)
			}
		}()
		defer srv.Close()
	}

	if opts.mcpAddr != "" {
		if err := startMCP(ctx, logger, coord, opts.mcpAddr); err != nil {
			logger.Error("scrollwatch: mcp quic", "error", err)
		}
	}

	pump := browser.NewPump(page, coord, 0, logger)
	logger.Info("scrollwatch: coordinating", "page", cfg.Page.ID, "url", cfg.Page.URL)
	if err := pump.Run(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("signal pump: %w", err)
	}
	return nil
}

func buildSinks(logger *slog.Logger, cfg *layout.Config) ([]layout.Sink, *journal.Journal, error) {
	var sinks []layout.Sink
	for _, sc := range cfg.Sinks {
		switch sc.Type {
		case "stdout":
			sinks = append(sinks, layout.NewStdoutSink(nil))
		case "webhook":
			sinks = append(sinks, layout.NewWebhookSink(sc.URL, logger))
		default:
			logger.Warn("scrollwatch: unknown sink type", "type", sc.Type)
		}
	}
	if len(sinks) == 0 {
		sinks = append(sinks, layout.NewStdoutSink(nil))
	}

	var jrnl *journal.Journal
	if cfg.Journal.Path != "" {
		var err error
		jrnl, err = journal.Open(cfg.Journal.Path, journal.WithLogger(logger))
		if err != nil {
			return nil, nil, fmt.Errorf("open journal: %w", err)
		}
		sinks = append(sinks, layout.NewJournalSink(jrnl))
	}
	return sinks, jrnl, nil
}

func adminListen(cfg *layout.Config, opts runOptions) string {
	if opts.adminAddr != "" {
		return opts.adminAddr
	}
	return cfg.Admin.Listen
}

func sweepLoop(ctx context.Context, logger *slog.Logger, jrnl *journal.Journal, retention time.Duration) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := jrnl.Sweep(ctx, retention)
			if err != nil {
				logger.Warn("scrollwatch: journal sweep", "error", err)
			} else if n > 0 {
				logger.Debug("scrollwatch: journal swept", "removed", n)
			}
		}
	}
}

func startMCP(ctx context.Context, logger *slog.Logger, coord *layout.Coordinator, addr string) error {
	srv := mcp.NewServer(&mcp.Implementation{
		Name:    "scrollsync",
		Version: "1.0.0",
	}, nil)
	coord.RegisterMCP(srv)

	certFile := os.Getenv("TLS_CERT")
	keyFile := os.Getenv("TLS_KEY")

	var tlsCfg *tls.Config
	var err error
	if certFile != "" && keyFile != "" {
		tlsCfg, err = mcpquic.ServerTLSConfig(certFile, keyFile)
	} else {
		tlsCfg, err = mcpquic.SelfSignedTLSConfig()
	}
	if err != nil {
		return err
	}

	ql, err := mcpquic.NewListener(addr, tlsCfg, srv, logger)
	if err != nil {
		return err
	}
	go func() {
		logger.Info("scrollwatch: mcp quic listening", "addr", addr)
		if err := ql.Serve(ctx); err != nil && ctx.Err() == nil {
			logger.Error("scrollwatch: mcp quic serve", "error", err)
		}
	}()
	return nil
}

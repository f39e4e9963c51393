package main

import (
	"context"
	"errors"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"volpin/internal/auth"
	"volpin/internal/cache"
	"volpin/internal/capture"
	"volpin/internal/config"
	"volpin/internal/fetch"
	appLog "volpin/internal/log"
	"volpin/internal/remote"
	"volpin/internal/web"
)

// flagConfig holds CLI flag values.
type flagConfig struct {
	configPath string
	listen     string
	once       bool
	noSnapshot bool
	debug      bool
}

func main() {
	appLog.Info("volpin starting", "version", "0.1.0")

	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	// CLI --listen overrides config file listen if provided.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))
	if flags.debug {
		appLog.SetLevel(appLog.LevelDebug)
	}

	appLog.Info("effective config",
		"listen", conf.Listen,
		"server_url", conf.ServerURL,
		"timezone", conf.Timezone,
		"refresh", conf.RefreshCron,
		"horizon_days", conf.HorizonDays,
		"cache_dir", conf.CacheDir,
		"snapshot", conf.Snapshot.Enabled && !flags.noSnapshot,
		"once", flags.once,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	session := auth.Session{UserID: conf.Auth.UserID, Token: conf.Auth.Token}
	store := cache.NewStore(conf.CacheDir)
	client := remote.NewClient(conf.ServerURL, session)
	server := web.NewServer(conf, store, client)

	// The snapshot capture dials our own /map/ page, so the HTTP server
	// must be accepting connections before any refresh cycle runs —
	// including the --once cycle and the startup warm-up.
	httpServer, ln, err := startServer(conf.Listen, server.Handler(), func(err error) {
		appLog.Error("HTTP server failed", err)
		cancel()
	})
	if err != nil {
		appLog.Error("failed to listen", err, "listen", conf.Listen)
		os.Exit(1)
	}
	appLog.Info("HTTP server listening", "listen", "http://"+ln.Addr().String())

	snapshotEnabled := conf.Snapshot.Enabled && !flags.noSnapshot
	snapshotURL := "http://" + ln.Addr().String() + "/map/"

	refresh := func(ctx context.Context) {
		// Network-first listing; a success overwrites the durable cache
		// slot so later offline reads have something to fall back on.
		if _, err := fetch.Do(ctx, store, web.EventsKey, client.ListEvents); err != nil {
			if errors.Is(err, fetch.ErrNoDataAvailable) {
				appLog.Info("refresh: no data available yet")
			} else {
				appLog.Error("refresh: events fetch failed", err)
			}
		}

		if !snapshotEnabled {
			return
		}
		err := capture.MapPNG(ctx, capture.Options{
			URL:        snapshotURL,
			OutputPath: conf.PreviewPath(),
			Width:      conf.Snapshot.Width,
			Height:     conf.Snapshot.Height,
		})
		if err != nil {
			appLog.Error("refresh: snapshot capture failed", err)
		}
	}

	if flags.once {
		refresh(ctx)
		shutdown(httpServer)
		appLog.Info("volpin exiting", "mode", "once")
		return
	}

	// Background refresh on the configured cron schedule.
	sched := cron.New()
	if _, err := sched.AddFunc(conf.RefreshCron, func() { refresh(ctx) }); err != nil {
		appLog.Error("invalid refresh schedule", err, "refresh", conf.RefreshCron)
		os.Exit(1)
	}
	sched.Start()
	defer sched.Stop()

	// Warm the cache shortly after startup so the first page load does
	// not depend on the remote service being up.
	go refresh(ctx)

	<-ctx.Done()
	shutdown(httpServer)

	appLog.Info("volpin exiting")
}

// startServer binds the listen address synchronously and serves in the
// background; when it returns without error, the address is accepting
// connections.
func startServer(listen string, handler http.Handler, onError func(error)) (*http.Server, net.Listener, error) {
	ln, err := net.Listen("tcp", listen)
	if err != nil {
		return nil, nil, err
	}

	srv := &http.Server{Handler: handler}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			onError(err)
		}
	}()
	return srv, ln, nil
}

func shutdown(srv *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		appLog.Error("HTTP server shutdown failed", err)
	}
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/volpin/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Run one refresh cycle and exit")
	flag.BoolVar(&cfg.noSnapshot, "no-snapshot", false, "Disable map snapshot rendering")
	flag.BoolVar(&cfg.debug, "debug", false, "Enable debug behavior")

	flag.Parse()

	return cfg
}

package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/urfave/cli/v3"

	"github.com/fedsearch/fedsearch/pkg/aggregator"
	"github.com/fedsearch/fedsearch/pkg/api"
	"github.com/fedsearch/fedsearch/pkg/cache"
	"github.com/fedsearch/fedsearch/pkg/config"
	"github.com/fedsearch/fedsearch/pkg/contentstore"
	"github.com/fedsearch/fedsearch/pkg/core"
	"github.com/fedsearch/fedsearch/pkg/realtime"
)

// ServeCommand creates the serve command
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the search API server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "listen",
				Usage: "Address to listen on",
				Value: ":8480",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return serve(ctx, c.String("config"), c.String("listen"))
		},
	}
}

// server bundles the long-lived pieces a config reload operates on.
type server struct {
	mu         sync.RWMutex
	aggregator *aggregator.Aggregator
	store      *contentstore.Manager
	cache      *cache.Cache
	hub        *realtime.Hub
}

func serve(ctx context.Context, configPath, listenAddr string) error {
	agg, store, c, cfg, err := setupAggregator(configPath)
	if err != nil {
		return err
	}
	defer func() {
		if err := agg.Close(); err != nil {
			logger.Warnf("closing sources: %v", err)
		}
		if err := store.Close(); err != nil {
			logger.Warnf("closing store: %v", err)
		}
		if err := c.Close(); err != nil {
			logger.Warnf("closing cache: %v", err)
		}
	}()

	hub := realtime.NewHub(32)
	srv := &server{aggregator: agg, store: store, cache: c, hub: hub}

	// Content mutations flush every derived artifact and feed the change
	// stream, so clients never see stale results after a publish.
	wireChangeEvents(srv)

	mux := http.NewServeMux()
	apiServer := api.NewServer(agg, store, hub)
	apiServer.RegisterRoutes(mux)

	var handler http.Handler = mux
	handler = api.GzipMiddleware(handler)
	handler = api.CorsMiddleware(cfg.AllowedOrigins)(handler)

	httpServer := &http.Server{
		Addr:              listenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("listening on %s", listenAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Warnf("creating config file watcher: %v", err)
	} else {
		defer func() {
			if err := watcher.Close(); err != nil {
				logger.Warnf("closing config file watcher: %v", err)
			}
		}()
		if err := watcher.Add(configPath); err != nil {
			logger.Warnf("watching config file %s: %v", configPath, err)
		} else {
			logger.Infof("watching config file for changes: %s", configPath)
		}
	}

	fmt.Println("Server started. Press Ctrl+C to stop, send SIGHUP or modify the config file to reload.")

	var watchEvents chan fsnotify.Event
	var watchErrors chan error
	if watcher != nil {
		watchEvents = watcher.Events
		watchErrors = watcher.Errors
	}

	for {
		select {
		case sig := <-sigCh:
			switch sig {
			case syscall.SIGHUP:
				logger.Infof("received SIGHUP, reloading configuration")
				if err := reloadConfiguration(configPath, srv); err != nil {
					logger.Errorf("reloading configuration: %v", err)
				} else {
					logger.Infof("configuration reloaded")
				}
			case syscall.SIGINT, syscall.SIGTERM:
				fmt.Println("\nShutting down...")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return httpServer.Shutdown(shutdownCtx)
			}
		case event, ok := <-watchEvents:
			if !ok {
				watchEvents = nil
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				// Editors often replace the file; give the write a
				// moment to settle before reading it back.
				time.Sleep(100 * time.Millisecond)
				logger.Infof("config file changed (%s), reloading", event.Op)
				if err := reloadConfiguration(configPath, srv); err != nil {
					logger.Errorf("reloading configuration after file change: %v", err)
				} else {
					logger.Infof("configuration reloaded after file change")
				}
			}
		case err, ok := <-watchErrors:
			if !ok {
				watchErrors = nil
				continue
			}
			logger.Warnf("config watcher error: %v", err)
		case err := <-errCh:
			return fmt.Errorf("http server: %w", err)
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return httpServer.Shutdown(shutdownCtx)
		}
	}
}

// wireChangeEvents connects store mutations to cache invalidation and the
// realtime hub.
func wireChangeEvents(srv *server) {
	srv.store.OnChange(func(event contentstore.ChangeEvent) {
		srv.mu.RLock()
		agg := srv.aggregator
		srv.mu.RUnlock()
		if err := agg.InvalidateAll(); err != nil {
			logger.Warnf("invalidating caches after content change: %v", err)
		}
		srv.hub.Broadcast(realtime.ChangeEvent{
			Site:   event.Site,
			ItemID: event.ItemID,
			Action: event.Action,
			At:     event.At,
		})
	})
}

// reloadConfiguration rebuilds the source set from the config file and swaps
// it into the running aggregator. The store, cache and HTTP listener survive
// the reload; storage_dir and cache_dir changes require a restart. The cache
// is flushed so results reflect the new source set immediately.
func reloadConfiguration(configPath string, srv *server) error {
	newCfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	registry := core.GetGlobalRegistry()
	if err := createProvidersFromConfig(registry, newCfg); err != nil {
		return fmt.Errorf("creating sources: %w", err)
	}

	srv.mu.Lock()
	agg, store, c := srv.aggregator, srv.store, srv.cache
	srv.mu.Unlock()

	sources := buildSources(registry, newCfg, store, c)
	old := agg.Reconfigure(sources, aggregator.Config{
		SearchTTL:    newCfg.SearchTTL(),
		SuggestTTL:   newCfg.SuggestTTL(),
		NegativeTTL:  newCfg.NegativeTTL(),
		SuggestLimit: newCfg.SuggestLimit,
	})
	for _, src := range old {
		if err := src.Provider.Close(); err != nil {
			logger.Warnf("closing replaced source %s: %v", src.Provider.Name(), err)
		}
	}

	if err := agg.InvalidateAll(); err != nil {
		return fmt.Errorf("flushing cache: %w", err)
	}

	logger.Infof("active sources: %v", newCfg.ListSources())
	return nil
}

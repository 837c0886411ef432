// Package main is the entry point for the imladris server.
//
// imladris serves a collection of tagged links and images stored as rows of
// a Google Sheets spreadsheet. Reads are answered from an in-memory snapshot
// rebuilt when older than the cache TTL; writes go straight to the sheet.
// Configuration is read from config.json or config.yaml, then IMLADRIS_*
// environment variables (including those of a .env file), then CLI flags.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"

	"github.com/maruel/imladris/internal/config"
	"github.com/maruel/imladris/internal/imgur"
	"github.com/maruel/imladris/internal/jsonldb"
	"github.com/maruel/imladris/internal/server"
	"github.com/maruel/imladris/internal/sheetdb"
	"github.com/maruel/imladris/internal/sheets"
	"github.com/maruel/imladris/internal/storage"
	"github.com/maruel/imladris/internal/telemetry"
	"github.com/maruel/imladris/internal/utils"
)

func main() {
	if err := mainImpl(); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "imladris: %v\n", err)
		os.Exit(1)
	}
}

func mainImpl() error {
	version := flag.Bool("version", false, "Print version and exit")
	httpAddr := flag.String("http", "localhost:8080", "Address to listen on")
	configPath := flag.String("config", "config.json", "Configuration file (.json, .yaml or .yml)")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	memory := flag.Bool("memory", false, "Store items in memory instead of Google Sheets")
	jsonlPath := flag.String("jsonl", "", "Store items in this JSONL file instead of Google Sheets")
	idFormat := flag.String("id-format", utils.IDFormatUUID, fmt.Sprintf("Item id format %v", utils.IDFormats))
	otlpEndpoint := flag.String("otlp-endpoint", "", "OTLP/HTTP collector host:port for metrics; disabled when empty")
	otlpInsecure := flag.Bool("otlp-insecure", false, "Send metrics over plain HTTP")
	cacheTTL := flag.Duration("cache-ttl", 0, "Override the cache TTL")
	flag.Parse()
	if len(flag.Args()) > 0 {
		return fmt.Errorf("unknown arguments: %v", flag.Args())
	}

	if *version {
		printVersion()
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer stop()
	ll := &slog.LevelVar{}
	slog.SetDefault(newLogger(ll))
	switch *logLevel {
	case "debug":
		ll.Set(slog.LevelDebug)
	case "info":
	case "warn":
		ll.Set(slog.LevelWarn)
	case "error":
		ll.Set(slog.LevelError)
	default:
		return fmt.Errorf("unknown log level: %q", *logLevel)
	}

	newID, err := utils.IDGenerator(*idFormat)
	if err != nil {
		return err
	}
	if *memory && *jsonlPath != "" {
		return errors.New("-memory and -jsonl are mutually exclusive")
	}
	local := *memory || *jsonlPath != ""
	cfg, err := loadConfig(*configPath, local)
	if err != nil {
		return err
	}
	if *cacheTTL > 0 {
		cfg.CacheTTL = config.Duration(*cacheTTL)
	}

	buildVersion, _, _, _ := getBuildInfo()
	tp, err := telemetry.NewProvider(ctx, telemetry.Config{
		OTLPEndpoint:   *otlpEndpoint,
		OTLPInsecure:   *otlpInsecure,
		ServiceVersion: buildVersion,
	})
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			slog.Warn("Failed to flush metrics", "err", err)
		}
	}()

	var store sheetdb.Store
	switch {
	case *memory:
		slog.InfoContext(ctx, "Using in-memory store")
		store = sheetdb.NewMemoryStore()
	case *jsonlPath != "":
		js, err := jsonldb.Open(*jsonlPath)
		if err != nil {
			return err
		}
		slog.InfoContext(ctx, "Using JSONL store", "path", js.Path())
		store = js
	default:
		sc, err := sheets.NewServiceAccountClient(ctx, cfg.GoogleSecret, sheets.Config{
			SpreadsheetID: cfg.SpreadsheetID,
			SheetID:       cfg.SheetID,
			SheetName:     cfg.SheetName,
			FirstRow:      cfg.StartingRow,
			RatePerMin:    cfg.SheetsRatePerMin,
		})
		if err != nil {
			return err
		}
		slog.InfoContext(ctx, "Using Google Sheets", "spreadsheet", cfg.SpreadsheetID, "range", sc.DataRange())
		store = sc
	}
	var images storage.ImageHost
	if cfg.ImgurClientID != "" {
		images = imgur.NewClient(cfg.ImgurClientID)
	} else {
		slog.InfoContext(ctx, "Image uploads disabled, no imgurAPI_ClientID")
	}

	meter := tp.Meter("github.com/maruel/imladris")
	cache := storage.NewCache(store, &storage.CacheOptions{TTL: cfg.CacheTTL.D(), Meter: meter})
	items := storage.NewItemService(store, cache, images, newID)

	// Index in the background so the first request is likely served from the
	// cache. Failures are retried by the next read.
	go func() {
		if _, err := cache.EnsureFresh(ctx, false); err != nil && ctx.Err() == nil {
			slog.WarnContext(ctx, "Initial indexing failed", "err", err)
		}
	}()

	if !local {
		if err := watchFile(ctx, *configPath, stop); err != nil {
			return fmt.Errorf("failed to watch config: %w", err)
		}
	}

	httpServer := &http.Server{
		Addr:              *httpAddr,
		Handler:           server.NewRouter(items, buildVersion, meter),
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Run server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		slog.InfoContext(ctx, "Starting server", "addr", *httpAddr, "version", buildVersion, "ttl", cache.TTL())
		serverErr <- httpServer.ListenAndServe()
	}()

	// Wait for either context cancellation or server error
	select {
	case err := <-serverErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		// Graceful shutdown
		slog.InfoContext(ctx, "Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
		slog.InfoContext(ctx, "Server stopped")
	}
	return nil
}

// loadConfig reads the configuration file, then applies the environment.
// With a local store the file is optional and not validated.
func loadConfig(path string, local bool) (*config.Config, error) {
	if err := config.LoadDotEnv(filepath.Join(filepath.Dir(path), ".env")); err != nil {
		return nil, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		if !local || !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		cfg = config.Default()
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return nil, err
	}
	if local {
		return cfg, nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", path, err)
	}
	return cfg, nil
}

func newLogger(ll *slog.LevelVar) *slog.Logger {
	// Skip timestamps when running under systemd (it adds its own).
	underSystemd := os.Getenv("JOURNAL_STREAM") != ""
	return slog.New(tint.NewHandler(colorable.NewColorable(os.Stderr), &tint.Options{
		Level:      ll,
		TimeFormat: "15:04:05.000", // Like time.TimeOnly plus milliseconds.
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if underSystemd && a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.Attr{}
			}
			skip := false
			switch t := a.Value.Any().(type) {
			case string:
				skip = t == ""
			case bool:
				skip = !t
			case int64:
				skip = t == 0
			case float64:
				skip = t == 0
			case time.Time:
				skip = t.IsZero()
			case time.Duration:
				skip = t == 0
			case nil:
				skip = true
			}
			if skip {
				return slog.Attr{}
			}
			return a
		},
	}))
}

func printVersion() {
	version, goVersion, revision, dirty := getBuildInfo()
	fmt.Printf("imladris %s\n", version)
	fmt.Printf("  Go version: %s\n", goVersion)
	fmt.Printf("  Revision:   %s\n", revision)
	if dirty {
		fmt.Printf("  Modified:   true\n")
	}
}

func getBuildInfo() (version, goVersion, revision string, dirty bool) {
	version = "unknown"
	goVersion = "unknown"
	revision = "unknown"
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	version = info.Main.Version
	if version == "" || version == "(devel)" {
		version = "dev"
	}
	goVersion = info.GoVersion
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			revision = setting.Value
		case "vcs.modified":
			dirty = setting.Value == "true"
		}
	}
	return
}

// watchFile calls stop to trigger a graceful shutdown when path is modified,
// so that the supervisor restarts the process with the new configuration.
//
// The parent directory is watched since editors often replace files.
func watchFile(ctx context.Context, path string, stop context.CancelFunc) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		_ = w.Close()
		return err
	}
	go func() {
		defer func() { _ = w.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != abs {
					continue
				}
				if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
					slog.InfoContext(ctx, "Configuration modified, initiating shutdown", "path", path)
					stop()
					return
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				slog.WarnContext(ctx, "Error watching configuration", "err", err)
			}
		}
	}()
	return nil
}

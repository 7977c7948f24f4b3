package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/rendis/intentd/internal/actions"
	"github.com/rendis/intentd/internal/dispatcher"
	"github.com/rendis/intentd/internal/embedding"
	"github.com/rendis/intentd/internal/index"
	"github.com/rendis/intentd/internal/logging"
	"github.com/rendis/intentd/internal/resolver"
	"github.com/rendis/intentd/internal/server"
	"github.com/rendis/intentd/internal/session"
	"github.com/rendis/intentd/internal/snippet"
	"github.com/rendis/intentd/internal/store"
	"github.com/rendis/intentd/internal/validation"
	"github.com/rendis/intentd/pkg/mcp"
)

func main() {
	mcpMode := flag.Bool("mcp", false, "serve the MCP stdio transport instead of HTTP")
	envFile := flag.String("env", "", "path to an env file to load")
	flag.Parse()

	if *envFile != "" {
		if err := godotenv.Load(*envFile); err != nil {
			fmt.Fprintf(os.Stderr, "load env file %s: %v\n", *envFile, err)
			os.Exit(1)
		}
	} else {
		_ = godotenv.Load(".env")
	}

	cfg := loadConfig()
	logger := newLogger(cfg.LogLevel)

	if err := run(cfg, logger, *mcpMode); err != nil {
		logger.Error("intentd failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	inner := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	return slog.New(logging.NewCorrelationHandler(inner))
}

func run(cfg Config, logger *slog.Logger, mcpMode bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	st, err := store.NewLibSQLStore("file:" + cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	if err := st.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate store: %w", err)
	}

	registry := actions.NewRegistry()
	if err := actions.RegisterBuiltins(registry, actions.BuiltinConfig{
		FS: actions.FSConfig{Root: cfg.FSRoot},
	}); err != nil {
		return fmt.Errorf("register builtins: %w", err)
	}
	logger.Info("loaded actions", slog.Int("count", registry.Count()))

	provider := embedding.NewOllamaProvider(embedding.OllamaConfig{
		Endpoint:   cfg.EmbedEndpoint,
		Model:      cfg.EmbedModel,
		Dimensions: cfg.EmbedDimensions,
	})

	// The index is rebuilt unconditionally from the current registry so a
	// catalog change never leaves stale persisted vectors behind.
	ix := index.New(provider, st, logger)
	if err := ix.Rebuild(ctx, registry.Catalog()); err != nil {
		return fmt.Errorf("rebuild similarity index: %w", err)
	}

	sessions := session.NewStore()
	res := resolver.New(provider, ix, sessions, cfg.Threshold, logger)
	disp := dispatcher.New(registry, validation.NewJSONSchemaValidator(),
		duration(cfg.DispatchTimeout, 30*time.Second), logger)

	if ttl := duration(cfg.SessionTTL, 0); ttl > 0 {
		janitor := session.NewJanitor(sessions, ttl, logger)
		if err := janitor.Start(cfg.SessionSweep); err != nil {
			return fmt.Errorf("start session janitor: %w", err)
		}
		defer janitor.Stop()
	}

	if mcpMode {
		intentSrv := mcp.NewIntentServer(mcp.IntentServerDeps{
			Registry:   registry,
			Resolver:   res,
			Dispatcher: disp,
			Sessions:   sessions,
			Logger:     logger,
		})
		logger.Info("serving MCP over stdio")
		return intentSrv.Serve(ctx)
	}

	api := server.New(server.Deps{
		Registry:   registry,
		Resolver:   res,
		Dispatcher: disp,
		Sessions:   sessions,
		Index:      ix,
		Snippets:   snippet.NewGenerator(cfg.BaseURL),
		Store:      st,
		Logger:     logger,
	})

	httpSrv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", slog.String("addr", cfg.ListenAddr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("shut down cleanly")
	return nil
}

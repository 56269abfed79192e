package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/sagarc03/userweb"
	"github.com/sagarc03/userweb/autoindex"
	"github.com/sagarc03/userweb/config"
	"github.com/sagarc03/userweb/executor"
	userwebhttp "github.com/sagarc03/userweb/http"
	"github.com/sagarc03/userweb/site"
	"github.com/sagarc03/userweb/transclude"
)

const shutdownTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve [port]",
	Short: "Start the HTTP server",
	Long: `Start the userweb HTTP server. The port may be given as an argument,
with --port, or through configuration (default: 8080).`,
	Args: cobra.MaximumNArgs(1),
	RunE: runServe,
}

func init() {
	serveCmd.Flags().Int("port", 8080, "HTTP server port (env: USERWEB_SERVER_PORT)")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.FromContext(cmd.Context())
	if err != nil {
		return err
	}

	if len(args) == 1 {
		port, err := parsePort(args[0])
		if err != nil {
			return err
		}
		cfg.Server.Port = port
	}

	handler, err := buildHandler(cfg)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  config.Seconds(cfg.Server.ReadTimeout),
		WriteTimeout: config.Seconds(cfg.Server.WriteTimeout),
		IdleTimeout:  config.Seconds(cfg.Server.IdleTimeout),
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("starting server", "addr", addr, "home_base", cfg.Sites.HomeBase, "site_dir", cfg.Sites.Dir)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		slog.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}

// buildHandler wires the resolver, executor, transclusion engine and
// listing generator into an HTTP handler.
func buildHandler(cfg *config.Config) (http.Handler, error) {
	resolver := site.NewResolver(cfg.Sites)

	invoker := executor.NewInvoker(executor.Config{
		Timeout:   config.Seconds(cfg.Executor.Timeout),
		MaxOutput: cfg.Executor.MaxOutput,
	})

	engine := transclude.NewEngine(transclude.Config{
		MaxDepth:  cfg.Transclusion.MaxDepth,
		MaxOutput: cfg.Transclusion.MaxOutput,
	})

	generator := autoindex.NewGenerator(engine, autoindex.Config{
		PeopleTitle: cfg.Index.PeopleTitle,
	})

	service, err := userweb.NewService(resolver, invoker, generator, engine, userweb.ServiceConfig{
		TranscludeOutput: cfg.Executor.TranscludeOutput,
	})
	if err != nil {
		return nil, fmt.Errorf("create service: %w", err)
	}

	handlerConfig := userwebhttp.HandlerConfig{
		MaxBodySize: cfg.Server.MaxBodySize,
		TrustProxy:  cfg.Server.TrustProxy,
		CORS:        cfg.CORS,
	}

	return userwebhttp.NewHandler(&handlerConfig, service).Router(), nil
}

func parsePort(s string) (int, error) {
	port, err := strconv.Atoi(s)
	if err != nil || port < 1 || port > 65535 {
		return 0, fmt.Errorf("invalid port %q: must be a number between 1 and 65535", s)
	}
	return port, nil
}

package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lukman83/dealscout/internal/api"
	"github.com/lukman83/dealscout/internal/logging"
	mcpserver "github.com/lukman83/dealscout/mcp"
	"github.com/spf13/cobra"
)

var serveHTTPCmd = &cobra.Command{
	Use:   "serve-http",
	Short: "Start REST API and MCP HTTP server",
	Long:  "Serve /api/shop, /api/save, /api/budget and the MCP streamable HTTP transport at /mcp.",
	RunE:  runServeHTTP,
}

func init() {
	serveHTTPCmd.Flags().String("port", "", "HTTP port (default from $PORT or 8080)")
	rootCmd.AddCommand(serveHTTPCmd)
}

func runServeHTTP(cmd *cobra.Command, args []string) error {
	const op = "cmd.serve-http"

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine, closeStore, err := buildEngine(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	port := cfg.HTTP.Port
	if p, _ := cmd.Flags().GetString("port"); p != "" {
		port = p
	}

	mcpHandler := mcpserver.HTTPHandler(mcpserver.NewServer(&mcpserver.Tools{
		Runner:     engine,
		Store:      engine.Store(),
		DefaultCap: defaultCap(),
		Log:        log,
	}))
	router := api.NewRouter(log, engine, engine.Store(), api.Options{
		APIKey:      cfg.HTTP.APIKey,
		CORSOrigins: cfg.HTTP.CORSOrigins,
		ShopPerMin:  cfg.HTTP.ShopPerMin,
		RunTimeout:  cfg.HTTP.Timeout,
		DefaultCap:  defaultCap(),
		MCP:         mcpHandler,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.HTTP.Timeout + time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", slog.String("op", op), slog.String("addr", srv.Addr), slog.Bool("auth", cfg.HTTP.APIKey != ""))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down", slog.String("op", op))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown", slog.String("op", op), logging.Err(err))
		return err
	}
	return nil
}

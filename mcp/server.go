// Package mcp exposes the deal engine as Model Context Protocol tools.
package mcp

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/lukman83/dealscout/internal/logging"
	"github.com/lukman83/dealscout/internal/models"
	"github.com/lukman83/dealscout/internal/store"
	"github.com/mark3labs/mcp-go/server"
)

const (
	serverName    = "dealscout"
	serverVersion = "1.0.0"
)

// Runner executes one shop request.
type Runner interface {
	Run(ctx context.Context, req models.ScrapeRequest, save bool) (*models.RunResult, error)
}

// Tools holds what the tool handlers need. Store may be nil.
type Tools struct {
	Runner     Runner
	Store      store.Writer
	DefaultCap models.Cents
	Log        *slog.Logger
}

func (t *Tools) log() *slog.Logger {
	if t.Log == nil {
		return logging.Discard()
	}
	return t.Log
}

// NewServer builds an MCP server with every tool registered.
func NewServer(t *Tools) *server.MCPServer {
	s := server.NewMCPServer(
		serverName,
		serverVersion,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)
	t.register(s)
	return s
}

// Serve runs the server on stdio until stdin closes.
func Serve(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

// HTTPHandler serves the streamable HTTP transport. Auth is left to the
// router it is mounted on.
func HTTPHandler(s *server.MCPServer) http.Handler {
	return server.NewStreamableHTTPServer(s, server.WithStateLess(true))
}

package cmd

import (
	"fmt"

	mcpserver "github.com/lukman83/dealscout/mcp"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start MCP stdio server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	engine, closeStore, err := buildEngine(cmd.Context())
	if err != nil {
		return err
	}
	defer closeStore()

	fmt.Fprintln(cmd.ErrOrStderr(), "Starting DealScout MCP server on stdio...")

	s := mcpserver.NewServer(&mcpserver.Tools{
		Runner:     engine,
		Store:      engine.Store(),
		DefaultCap: defaultCap(),
		Log:        log,
	})
	if err := mcpserver.Serve(s); err != nil {
		return fmt.Errorf("MCP server error: %w", err)
	}
	return nil
}

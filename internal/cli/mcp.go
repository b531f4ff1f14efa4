package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	opmcp "github.com/opgate/opgate/internal/mcp"
)

func init() {
	rootCmd.AddCommand(mcpCmd)
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP tool server for agent integration",
	Long:  "Runs opgate as an MCP (Model Context Protocol) server over stdio.\nExposes tools: opgate_check, opgate_report, opgate_audit_verify,\nopgate_knowledge.",
	RunE:  runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), ackExecutor)
	if err != nil {
		return err
	}
	defer a.Close()

	srv := opmcp.New(a.engine, a.orch, a.ledger, a.learner)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nShutting down MCP server...")
		cancel()
	}()

	fmt.Fprintln(os.Stderr, "opgate MCP server running on stdio")
	return srv.Run(ctx)
}

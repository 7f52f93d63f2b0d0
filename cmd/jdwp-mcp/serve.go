package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/debuggerx/jdwp-mcp/internal/bridge"
	"github.com/debuggerx/jdwp-mcp/internal/config"
	"github.com/debuggerx/jdwp-mcp/internal/tools"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run as MCP server",
	Long: `Run as an MCP (Model Context Protocol) server over stdio.

This is the primary mode for integration with Claude Code, Claude Desktop,
and other MCP clients. One debugger session is shared by all tools.`,
	Run: runMCP,
}

func runMCP(cmd *cobra.Command, args []string) {
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer cancel()

	// Stdout carries the protocol; everything else goes to stderr.
	log.SetOutput(os.Stderr)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}

	session := bridge.NewSession(bridge.WithTimeout(cfg.Timeout))
	defer session.Disconnect()

	server := mcp.NewServer(
		&mcp.Implementation{
			Name:    appName,
			Version: appVersion,
		},
		&mcp.ServerOptions{
			HasTools: true,
			Instructions: `JDWP debugging bridge to a remote JVM.

Typical flow:
1. jdwp_connect to a JVM started with the jdwp agent
2. jdwp_get_threads to find a suspended thread (stopped at a breakpoint)
3. jdwp_get_stack / jdwp_get_locals to inspect its frames
4. jdwp_get_fields on any Object#N from a previous result
5. jdwp_invoke_method or jdwp_evaluate to compute values in the target
6. jdwp_resume when done, then jdwp_disconnect

Threads must already be suspended by a breakpoint or debugger; this
server inspects state but does not set breakpoints.`,
		},
	)

	tools.RegisterJDWPTools(server, session, cfg.Host, cfg.Port)

	go func() {
		<-ctx.Done()
		log.Println("Shutdown signal received...")
	}()

	log.Printf("Starting %s v%s", appName, appVersion)

	if err := server.Run(ctx, &mcp.StdioTransport{}); err != nil {
		if ctx.Err() == nil {
			log.Fatalf("Server error: %v", err)
		}
	}

	log.Println("Shutdown complete")
}

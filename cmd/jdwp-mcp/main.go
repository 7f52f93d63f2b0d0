package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

const (
	appName    = "jdwp-mcp"
	appVersion = "0.3.0"
)

var rootCmd = &cobra.Command{
	Use:   appName,
	Short: "JDWP debugging bridge for AI coding assistants",
	Long: `jdwp-mcp attaches to a remote JVM over the Java Debug Wire Protocol
and exposes its suspended execution state as MCP tools:
  - thread and stack listing
  - local variables and object fields with decoded collection views
  - method invocation and expression evaluation inside a suspended thread

Start the target JVM with:
  -agentlib:jdwp=transport=dt_socket,server=y,suspend=n,address=*:55005`,
	Version: appVersion,
	// Default behavior: if stdin is not a terminal, run as MCP server
	Run: func(cmd *cobra.Command, args []string) {
		if !isTerminal(os.Stdin) {
			runMCP(cmd, args)
		} else {
			cmd.Help()
		}
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
	rootCmd.SetVersionTemplate(fmt.Sprintf("%s v%s\n", appName, appVersion))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"codenav/internal/nav"
)

var (
	callgraphLine   int
	callgraphOrder  int
	callgraphFormat string
)

var callgraphCmd = &cobra.Command{
	Use:   "callgraph <file> <symbol>",
	Short: "Show callers and callees of a symbol",
	Long: `Build the one-level call graph around a function or method: who
calls it (incoming) and what it calls (outgoing).

Examples:
  codenav callgraph internal/server/server.go handleConn --line 88`,
	Args: cobra.ExactArgs(2),
	Run:  runCallgraph,
}

func init() {
	callgraphCmd.Flags().IntVar(&callgraphLine, "line", 1, "Approximate 1-indexed line of the symbol")
	callgraphCmd.Flags().IntVar(&callgraphOrder, "order", 0, "0-indexed occurrence on the line")
	callgraphCmd.Flags().StringVar(&callgraphFormat, "format", "json", "Output format (json, human)")
	rootCmd.AddCommand(callgraphCmd)
}

func runCallgraph(cmd *cobra.Command, args []string) {
	start := time.Now()
	cfg := mustLoadConfig()
	logger := newLogger(cfg)

	ops := newOperations(cfg, logger)
	defer ops.Shutdown()

	ctx, cancel := newContext()
	defer cancel()

	result := ops.CallHierarchy(ctx, nav.SymbolLocator{
		Path:      args[0],
		Symbol:    args[1],
		LineHint:  callgraphLine,
		OrderHint: callgraphOrder,
	})

	output, err := FormatResponse(result, OutputFormat(callgraphFormat))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error formatting output: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(output)

	logger.Debug("Call hierarchy query completed", map[string]interface{}{
		"traceId":  result.TraceID,
		"status":   string(result.Status),
		"incoming": len(result.Incoming),
		"outgoing": len(result.Outgoing),
		"duration": time.Since(start).Milliseconds(),
	})
	if result.Status == nav.StatusError {
		os.Exit(1)
	}
}

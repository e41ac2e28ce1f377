package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"codenav/internal/nav"
)

var (
	defLine   int
	defOrder  int
	defFormat string
)

var defCmd = &cobra.Command{
	Use:     "definition <file> <symbol>",
	Aliases: []string{"def"},
	Short:   "Resolve a symbol's definition",
	Long: `Resolve the definition site of a symbol near a line in a file.

Examples:
  codenav def internal/server/server.go NewServer --line 42
  codenav def src/app.ts handleRequest --line 120 --order 1`,
	Args: cobra.ExactArgs(2),
	Run:  runDefinition,
}

func init() {
	defCmd.Flags().IntVar(&defLine, "line", 1, "Approximate 1-indexed line of the symbol")
	defCmd.Flags().IntVar(&defOrder, "order", 0, "0-indexed occurrence on the line")
	defCmd.Flags().StringVar(&defFormat, "format", "json", "Output format (json, human)")
	rootCmd.AddCommand(defCmd)
}

func runDefinition(cmd *cobra.Command, args []string) {
	start := time.Now()
	cfg := mustLoadConfig()
	logger := newLogger(cfg)

	ops := newOperations(cfg, logger)
	defer ops.Shutdown()

	ctx, cancel := newContext()
	defer cancel()

	result := ops.Definition(ctx, nav.SymbolLocator{
		Path:      args[0],
		Symbol:    args[1],
		LineHint:  defLine,
		OrderHint: defOrder,
	})

	output, err := FormatResponse(result, OutputFormat(defFormat))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error formatting output: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(output)

	logger.Debug("Definition query completed", map[string]interface{}{
		"traceId":  result.TraceID,
		"status":   string(result.Status),
		"duration": time.Since(start).Milliseconds(),
	})
	if result.Status == nav.StatusError {
		os.Exit(1)
	}
}

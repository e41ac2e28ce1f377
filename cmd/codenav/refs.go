package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"codenav/internal/nav"
)

var (
	refsLine        int
	refsOrder       int
	refsIncludeDecl bool
	refsInclude     []string
	refsExclude     []string
	refsPage        int
	refsPageSize    int
	refsFormat      string
)

var refsCmd = &cobra.Command{
	Use:   "refs <file> <symbol>",
	Short: "Find all references to a symbol",
	Long: `Find every use site of a symbol across the workspace.

Examples:
  codenav refs internal/server/server.go NewServer --line 42
  codenav refs src/app.ts handleRequest --line 120 --include 'src/**'
  codenav refs src/app.ts handleRequest --line 120 --exclude '**/*_test.go' --page 2`,
	Args: cobra.ExactArgs(2),
	Run:  runRefs,
}

func init() {
	refsCmd.Flags().IntVar(&refsLine, "line", 1, "Approximate 1-indexed line of the symbol")
	refsCmd.Flags().IntVar(&refsOrder, "order", 0, "0-indexed occurrence on the line")
	refsCmd.Flags().BoolVar(&refsIncludeDecl, "include-decl", false, "Include the declaration site")
	refsCmd.Flags().StringArrayVar(&refsInclude, "include", nil, "Glob of paths to include (repeatable)")
	refsCmd.Flags().StringArrayVar(&refsExclude, "exclude", nil, "Glob of paths to exclude (repeatable)")
	refsCmd.Flags().IntVar(&refsPage, "page", 1, "1-indexed result page")
	refsCmd.Flags().IntVar(&refsPageSize, "page-size", 0, "Results per page (default from config)")
	refsCmd.Flags().StringVar(&refsFormat, "format", "json", "Output format (json, human)")
	rootCmd.AddCommand(refsCmd)
}

func runRefs(cmd *cobra.Command, args []string) {
	start := time.Now()
	cfg := mustLoadConfig()
	logger := newLogger(cfg)

	ops := newOperations(cfg, logger)
	defer ops.Shutdown()

	ctx, cancel := newContext()
	defer cancel()

	result := ops.References(ctx, nav.SymbolLocator{
		Path:      args[0],
		Symbol:    args[1],
		LineHint:  refsLine,
		OrderHint: refsOrder,
	}, nav.ReferenceOptions{
		IncludeDeclaration: refsIncludeDecl,
		Include:            refsInclude,
		Exclude:            refsExclude,
		Page:               refsPage,
		PageSize:           refsPageSize,
	})

	output, err := FormatResponse(result, OutputFormat(refsFormat))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error formatting output: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(output)

	logger.Debug("References query completed", map[string]interface{}{
		"traceId":  result.TraceID,
		"status":   string(result.Status),
		"matched":  result.Filter.MatchedCount,
		"duration": time.Since(start).Milliseconds(),
	})
	if result.Status == nav.StatusError {
		os.Exit(1)
	}
}

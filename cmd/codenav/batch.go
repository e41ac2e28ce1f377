package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"codenav/internal/nav"
)

var (
	batchOp     string
	batchFormat string
)

var batchCmd = &cobra.Command{
	Use:   "batch <locators.json>",
	Short: "Run one operation for several symbols at once",
	Long: `Run the same navigation operation for up to 5 symbol locators,
read as a JSON array of {path, symbol, lineHint, orderHint} objects.

Examples:
  codenav batch locators.json --op def
  codenav batch locators.json --op refs
  codenav batch locators.json --op callgraph`,
	Args: cobra.ExactArgs(1),
	Run:  runBatch,
}

func init() {
	batchCmd.Flags().StringVar(&batchOp, "op", "def", "Operation: def, refs, callgraph")
	batchCmd.Flags().StringVar(&batchFormat, "format", "json", "Output format (json, human)")
	rootCmd.AddCommand(batchCmd)
}

func runBatch(cmd *cobra.Command, args []string) {
	cfg := mustLoadConfig()
	logger := newLogger(cfg)

	data, err := os.ReadFile(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading locator file: %v\n", err)
		os.Exit(1)
	}
	var locs []nav.SymbolLocator
	if err := json.Unmarshal(data, &locs); err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing locator file: %v\n", err)
		os.Exit(1)
	}

	ops := newOperations(cfg, logger)
	defer ops.Shutdown()

	ctx, cancel := newContext()
	defer cancel()

	var results interface{}
	switch batchOp {
	case "def":
		results, err = ops.DefinitionBatch(ctx, locs)
	case "refs":
		results, err = ops.ReferencesBatch(ctx, locs, nav.ReferenceOptions{})
	case "callgraph":
		results, err = ops.CallHierarchyBatch(ctx, locs)
	default:
		fmt.Fprintf(os.Stderr, "Unknown operation: %s\n", batchOp)
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error running batch: %v\n", err)
		os.Exit(1)
	}

	output, err := FormatResponse(results, OutputFormat(batchFormat))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error formatting output: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(output)
}

package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"codenav/internal/errors"
	"codenav/internal/nav"
)

// OutputFormat represents the output format type
type OutputFormat string

const (
	FormatJSON  OutputFormat = "json"
	FormatHuman OutputFormat = "human"
)

// FormatResponse formats a response according to the specified format
func FormatResponse(resp interface{}, format OutputFormat) (string, error) {
	switch format {
	case FormatJSON:
		return formatJSON(resp)
	case FormatHuman:
		return formatHuman(resp)
	default:
		return "", fmt.Errorf("unsupported format: %s", format)
	}
}

func formatJSON(resp interface{}) (string, error) {
	data, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return string(data), nil
}

func formatHuman(resp interface{}) (string, error) {
	switch v := resp.(type) {
	case nav.DefinitionResult:
		return formatDefinitionHuman(v), nil
	case nav.ReferencesResult:
		return formatReferencesHuman(v), nil
	case nav.CallHierarchyResult:
		return formatHierarchyHuman(v), nil
	case *ServersResponseCLI:
		return formatServersHuman(v), nil
	default:
		return formatJSON(resp)
	}
}

func formatDefinitionHuman(res nav.DefinitionResult) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("Definition of: %s\n", res.Symbol))
	b.WriteString(strings.Repeat("=", 60) + "\n\n")

	switch res.Status {
	case nav.StatusError:
		b.WriteString(fmt.Sprintf("Error: %s\n", res.Err.Error()))
	case nav.StatusEmpty:
		b.WriteString("No definition found\n")
		writeHumanHints(&b, res.Hints)
	default:
		b.WriteString(fmt.Sprintf("%s:%d", res.Location.Path, res.Location.Line))
		if res.Location.Column > 0 {
			b.WriteString(fmt.Sprintf(":%d", res.Location.Column))
		}
		b.WriteString(fmt.Sprintf(" (%s)\n", res.Source))
		if res.Context != "" {
			b.WriteString("\n" + res.Context + "\n")
		}
	}
	return b.String()
}

func formatReferencesHuman(res nav.ReferencesResult) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("References to: %s\n", res.Symbol))
	b.WriteString(strings.Repeat("=", 60) + "\n\n")

	if res.Status == nav.StatusError {
		b.WriteString(fmt.Sprintf("Error: %s\n", res.Err.Error()))
		return b.String()
	}

	b.WriteString(fmt.Sprintf("Matched %d of %d references (%s)\n",
		res.Filter.MatchedCount, res.Filter.TotalCount, res.Source))
	b.WriteString(fmt.Sprintf("Page %d/%d (size %d)\n\n",
		res.Page.Page, res.Page.TotalPages, res.Page.PageSize))

	for i, ref := range res.References {
		b.WriteString(fmt.Sprintf("  %d. %s:%d\n", i+1, ref.Location.Path, ref.Location.Line))
	}
	if len(res.References) == 0 {
		b.WriteString("No references on this page\n")
		writeHumanHints(&b, res.Hints)
	}
	return b.String()
}

func formatHierarchyHuman(res nav.CallHierarchyResult) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("Call hierarchy of: %s\n", res.Symbol))
	b.WriteString(strings.Repeat("=", 60) + "\n\n")

	if res.Status == nav.StatusError {
		b.WriteString(fmt.Sprintf("Error: %s\n", res.Err.Error()))
		return b.String()
	}
	if res.Root != nil {
		b.WriteString(fmt.Sprintf("Root: %s:%d (%s)\n\n", res.Root.Path, res.Root.Line, res.Source))
	}

	b.WriteString(fmt.Sprintf("Incoming (%d):\n", len(res.Incoming)))
	for _, edge := range res.Incoming {
		b.WriteString(fmt.Sprintf("  <- %s at %s:%d\n", edge.Symbol, edge.Site.Path, edge.Site.Line))
	}
	b.WriteString(fmt.Sprintf("\nOutgoing (%d):\n", len(res.Outgoing)))
	for _, edge := range res.Outgoing {
		b.WriteString(fmt.Sprintf("  -> %s at %s:%d\n", edge.Symbol, edge.Site.Path, edge.Site.Line))
	}
	if res.Status == nav.StatusEmpty {
		b.WriteString("\nNo call edges found\n")
		writeHumanHints(&b, res.Hints)
	}
	return b.String()
}

func formatServersHuman(resp *ServersResponseCLI) string {
	var b strings.Builder

	b.WriteString("Configured analysis servers\n")
	b.WriteString(strings.Repeat("=", 60) + "\n\n")

	for _, server := range resp.Servers {
		status := "✓"
		if !server.Available {
			status = "✗"
		}
		b.WriteString(fmt.Sprintf("  %s %-8s %s", status, server.Extension, server.Command))
		if len(server.Args) > 0 {
			b.WriteString(" " + strings.Join(server.Args, " "))
		}
		if server.Override {
			b.WriteString(" [override]")
		}
		b.WriteString("\n")
	}
	return b.String()
}

func writeHumanHints(b *strings.Builder, hints []errors.Hint) {
	for _, h := range hints {
		b.WriteString(fmt.Sprintf("  hint: %s (%s)\n", h.Action, h.Description))
	}
}

package cli

// This file contains the list command for displaying archived test
// cases.

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/lazyqa/lazyqa/history"
)

func (a *App) list(ctx *cli.Context) error {
	outputRoot := ctx.String("output")
	limit := ctx.Int("limit")

	entries, err := history.LoadEntries(a.logger, outputRoot)
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to load case records: %v", err), exitSetupFailed)
	}

	if len(entries) == 0 {
		fmt.Println("No test cases found")
		return nil
	}

	display := entries
	if limit > 0 && limit < len(display) {
		display = display[:limit]
	}

	fmt.Printf("\n=== Test cases (%d total) ===\n\n", len(entries))
	fmt.Printf("%-12s %-10s %-6s %-10s %s\n", "AGE", "STATUS", "EXIT", "DURATION", "NAME")
	for _, entry := range display {
		age := formatAge(time.Since(entry.Record.Timestamp))
		fmt.Printf("%-12s %-10s %-6d %-10s %s\n",
			age,
			entry.Record.Status,
			entry.Record.ExitCode,
			entry.Record.Duration.Round(time.Second),
			entry.Record.Name)
	}
	fmt.Println()
	return nil
}

func formatAge(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds ago", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}

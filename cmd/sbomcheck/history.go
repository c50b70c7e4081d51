package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

func newHistoryCmd() *cobra.Command {
	var (
		productName string
		limit       int
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded verification runs",
		Long: `List verification runs recorded in the history database, newest first.
Runs are recorded when history.enabled is set in the config file.`,
		Example: `  sbomcheck history
  sbomcheck history --product ide --limit 5
  sbomcheck history show 42`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if globalStore == nil {
				return fmt.Errorf("store not initialized")
			}

			runs, err := globalStore.ListRuns(productName, limit)
			if err != nil {
				return fmt.Errorf("failed to list runs: %w", err)
			}

			fmt.Println("Verification History")
			fmt.Println("====================")
			if len(runs) == 0 {
				fmt.Println("No runs recorded")
				return nil
			}

			fmt.Printf("%-6s %-20s %-20s %-8s %8s %8s %10s %12s\n",
				"ID", "PRODUCT", "STARTED", "STATUS", "CHECKED", "MISSING", "MISMATCHED", "UNREFERENCED")
			fmt.Println(strings.Repeat("-", 99))
			for _, r := range runs {
				fmt.Printf("%-6d %-20s %-20s %-8s %8d %8d %10d %12d\n",
					r.ID, truncate(r.Product, 20), r.StartTime.Local().Format(time.DateTime), r.Status,
					r.FilesChecked, r.FilesMissing, r.FilesMismatched, r.FilesUnreferenced)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&productName, "product", "", "only show runs of this product")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of runs to show (0 for all)")

	cmd.AddCommand(newHistoryShowCmd())

	return cmd
}

func newHistoryShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show RUN_ID",
		Short: "Show one run and its findings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if globalStore == nil {
				return fmt.Errorf("store not initialized")
			}

			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid run id %q: %w", args[0], err)
			}

			run, err := globalStore.GetRun(id)
			if err != nil {
				return err
			}
			findings, err := globalStore.ListFindings(id)
			if err != nil {
				return fmt.Errorf("failed to list findings: %w", err)
			}

			fmt.Printf("Run %d\n", run.ID)
			fmt.Println("======")
			fmt.Printf("%-16s %s\n", "Product:", run.Product)
			fmt.Printf("%-16s %s\n", "Install path:", run.InstallPath)
			fmt.Printf("%-16s %s\n", "Manifest:", run.ManifestPath)
			if run.ManifestDigest != "" {
				fmt.Printf("%-16s %s\n", "Manifest digest:", run.ManifestDigest)
			}
			if run.RootPackages != "" {
				fmt.Printf("%-16s %s\n", "Root packages:", run.RootPackages)
			}
			fmt.Printf("%-16s %s\n", "Started:", run.StartTime.Local().Format(time.DateTime))
			fmt.Printf("%-16s %s\n", "Duration:", run.EndTime.Sub(run.StartTime).Round(time.Millisecond))
			fmt.Printf("%-16s %s\n", "Status:", run.Status)
			if run.ErrorMessage != "" {
				fmt.Printf("%-16s %s\n", "Error:", run.ErrorMessage)
			}
			fmt.Printf("%-16s %d checked, %d passed, %d ignored\n", "Files:",
				run.FilesChecked, run.FilesPassed, run.FilesIgnored)

			if len(findings) == 0 {
				return nil
			}
			fmt.Println()
			fmt.Printf("%-15s %-40s %s\n", "KIND", "PATH", "DETAIL")
			fmt.Println(strings.Repeat("-", 80))
			for _, f := range findings {
				detail := f.Detail
				if f.Package != "" {
					detail = strings.TrimSpace(f.Package + " " + f.Detail)
				}
				fmt.Printf("%-15s %-40s %s\n", f.Kind, f.Path, detail)
			}
			return nil
		},
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/victor/stormcatalog/internal/catalog"
	"github.com/victor/stormcatalog/internal/output"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog [root]...",
	Short: "Catalog the images below the configured roots",
	Long: `Walk every root folder, add new images to the catalog, refresh modified
ones and drop records of files that no longer exist. Roots given as arguments
replace the configured catalog.roots for this run.

The run stops cleanly on Ctrl+C; changes gathered so far are saved.`,
	Run: func(cmd *cobra.Command, args []string) {
		opts := cfg.CatalogOptions()
		if len(args) > 0 {
			opts.Roots = args
		}
		if len(opts.Roots) == 0 {
			fmt.Fprintf(os.Stderr, "Error: no roots to catalog. Pass folders as arguments or set catalog.roots.\n")
			os.Exit(1)
		}
		if batchSize, _ := cmd.Flags().GetInt("batch-size"); batchSize > 0 {
			opts.BatchSize = batchSize
		}
		if workers, _ := cmd.Flags().GetInt("workers"); workers > 0 {
			opts.Workers = workers
		}
		if skip, _ := cmd.Flags().GetBool("skip-modified"); skip {
			opts.DetectModified = false
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		service := newCatalogService(opts)
		bar := newProgressBar(-1, "Cataloging images")
		result, err := service.Run(ctx, func(ev catalog.Event) {
			if bar == nil {
				return
			}
			switch ev.Type {
			case catalog.AssetCreated:
				_ = bar.Add(1)
			case catalog.FolderCompleted:
				bar.Describe(fmt.Sprintf("Cataloging %s", output.Truncate(ev.Folder.Path, 40)))
			}
		})
		if bar != nil {
			_ = bar.Finish()
		}
		printCatalogResult(result)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error cataloging: %v\n", err)
			os.Exit(1)
		}
		if !opts.SaveAfterRun {
			saveCatalog()
		}
	},
}

func printCatalogResult(result *catalog.Result) {
	if result.Skipped {
		fmt.Printf("Catalog run skipped: last run completed less than %d minutes ago.\n", cfg.Catalog.CooldownMinutes)
		return
	}
	fmt.Printf("✓ Catalog completed in %s\n", output.FormatDuration(result.Duration))
	fmt.Printf("  Folders visited: %d (%d new)\n", result.FoldersVisited, result.FoldersCreated)
	fmt.Printf("  Assets added:    %d\n", result.Created)
	fmt.Printf("  Assets removed:  %d\n", result.Deleted)
	if result.Corrupted > 0 {
		fmt.Printf("  Corrupted:       %d\n", result.Corrupted)
	}
	if len(result.Errors) > 0 {
		fmt.Fprintf(os.Stderr, "\n%d errors:\n", len(result.Errors))
		for _, err := range result.Errors {
			fmt.Fprintf(os.Stderr, "  %v\n", err)
		}
	}
}

func init() {
	catalogCmd.Flags().Int("batch-size", 0, "Assets per batch (default from config)")
	catalogCmd.Flags().Int("workers", 0, "Parallel asset builders (default from config)")
	catalogCmd.Flags().Bool("skip-modified", false, "Keep existing records of files whose size or modification time changed")
	rootCmd.AddCommand(catalogCmd)
}

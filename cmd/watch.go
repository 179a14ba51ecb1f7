package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/victor/stormcatalog/internal/catalog"
	"github.com/victor/stormcatalog/internal/output"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Keep the catalog up to date while images change",
	Long: `Catalog the configured roots once, then watch them and run the catalog
again after every burst of image changes. Runs honour catalog.cooldown_minutes.
Stop with Ctrl+C.`,
	Run: func(cmd *cobra.Command, args []string) {
		debounce, _ := cmd.Flags().GetDuration("debounce")

		opts := cfg.CatalogOptions()
		if len(opts.Roots) == 0 {
			fmt.Fprintf(os.Stderr, "Error: catalog.roots is empty\n")
			os.Exit(1)
		}
		// each run saves on its own
		opts.SaveAfterRun = true

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		service := newCatalogService(opts)
		report := func(result *catalog.Result, err error) {
			if err != nil && ctx.Err() == nil {
				fmt.Fprintf(os.Stderr, "Error cataloging: %v\n", err)
			}
			if result == nil || result.Skipped {
				return
			}
			fmt.Printf("[%s] ✓ catalog run: %d added, %d removed, %d folders in %s\n",
				time.Now().Format("15:04:05"), result.Created, result.Deleted,
				result.FoldersVisited, output.FormatDuration(result.Duration))
		}

		report(service.Run(ctx, nil))
		if ctx.Err() != nil {
			return
		}

		fmt.Printf("Watching %d roots. Press Ctrl+C to stop.\n", len(opts.Roots))
		watcher := catalog.NewWatcher(service, debounce, report)
		if err := watcher.Watch(ctx, nil); err != nil {
			fmt.Fprintf(os.Stderr, "Error watching: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	watchCmd.Flags().Duration("debounce", 2*time.Second, "Quiet period before a run is triggered")
	rootCmd.AddCommand(watchCmd)
}

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/victor/stormcatalog/internal/models"
	"github.com/victor/stormcatalog/internal/sync"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Mirror image folders using stored sync definitions",
	Long: `Copy the images of every source folder that are missing from its
destination folder, cataloguing the copies. Definitions are stored in the
catalog and managed with the add, list and remove subcommands.

Run 'stormcatalog sync --dry-run' to see what would be copied.`,
	Run: func(cmd *cobra.Command, args []string) {
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		if len(repo.GetSyncDefinitions()) == 0 {
			fmt.Println("No sync definitions. Add one with 'stormcatalog sync add <source> <destination>'.")
			return
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		syncer := sync.NewSyncService(repo, appFs, newMoveService(), logger)
		syncer.DryRun = dryRun

		var synced, deleted int
		results, err := syncer.Execute(ctx, func(r sync.Result) {
			fmt.Println(r.Message)
			if r.DeletedImages > 0 {
				fmt.Printf("  %d images deleted from '%s'.\n", r.DeletedImages, r.Destination)
			}
			synced += r.SyncedImages
			deleted += r.DeletedImages
		})
		if !dryRun {
			saveCatalog()
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error syncing: %v\n", err)
			os.Exit(1)
		}

		if dryRun {
			fmt.Printf("\nDry run: %d folders checked, %d images would be copied, %d deleted.\n", len(results), synced, deleted)
			return
		}
		fmt.Printf("\n✓ Sync completed: %d folders, %d images copied, %d deleted\n", len(results), synced, deleted)
	},
}

var syncAddCmd = &cobra.Command{
	Use:   "add <source> <destination>",
	Short: "Add a sync definition",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		subFolders, _ := cmd.Flags().GetBool("subfolders")
		deleteMissing, _ := cmd.Flags().GetBool("delete-missing")

		source, err := filepath.Abs(args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error resolving source: %v\n", err)
			os.Exit(1)
		}
		destination, err := filepath.Abs(args[1])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error resolving destination: %v\n", err)
			os.Exit(1)
		}
		if models.IsUnder(destination, source) && subFolders {
			fmt.Fprintf(os.Stderr, "Error: destination %s lies inside source %s\n", destination, source)
			os.Exit(1)
		}

		definitions := repo.GetSyncDefinitions()
		for _, def := range definitions {
			if def.SourceDirectory == source && def.DestinationDirectory == destination {
				fmt.Fprintf(os.Stderr, "Error: a definition from %s to %s already exists\n", source, destination)
				os.Exit(1)
			}
		}
		definitions = append(definitions, models.SyncDefinition{
			SourceDirectory:         source,
			DestinationDirectory:    destination,
			IncludeSubFolders:       subFolders,
			DeleteAssetsNotInSource: deleteMissing,
		})
		if err := repo.SetSyncDefinitions(definitions); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		saveCatalog()

		fmt.Printf("✓ Sync definition added: %s -> %s\n", source, destination)
	},
}

var syncListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sync definitions",
	Run: func(cmd *cobra.Command, args []string) {
		definitions := repo.GetSyncDefinitions()
		if len(definitions) == 0 {
			fmt.Println("No sync definitions.")
			return
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "#\tSOURCE\tDESTINATION\tSUBFOLDERS\tDELETE MISSING")
		fmt.Fprintln(w, "-\t------\t-----------\t----------\t--------------")
		for i, def := range definitions {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
				i+1,
				def.SourceDirectory,
				def.DestinationDirectory,
				yesNo(def.IncludeSubFolders),
				yesNo(def.DeleteAssetsNotInSource),
			)
		}
		w.Flush()
	},
}

var syncRemoveCmd = &cobra.Command{
	Use:   "remove <number>",
	Short: "Remove a sync definition by its number in 'sync list'",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		definitions := repo.GetSyncDefinitions()
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 || n > len(definitions) {
			fmt.Fprintf(os.Stderr, "Error: invalid definition number %s\n", args[0])
			fmt.Fprintf(os.Stderr, "Use 'stormcatalog sync list' to see the definitions.\n")
			os.Exit(1)
		}

		removed := definitions[n-1]
		definitions = append(definitions[:n-1], definitions[n:]...)
		if err := repo.SetSyncDefinitions(definitions); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		saveCatalog()

		fmt.Printf("✓ Sync definition removed: %s -> %s\n", removed.SourceDirectory, removed.DestinationDirectory)
	},
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

func init() {
	syncCmd.Flags().Bool("dry-run", false, "Show what would be synced without copying")

	syncAddCmd.Flags().BoolP("subfolders", "r", false, "Include sub-folders of the source")
	syncAddCmd.Flags().Bool("delete-missing", false, "Delete destination images that are not in the source")

	syncCmd.AddCommand(syncAddCmd, syncListCmd, syncRemoveCmd)
	rootCmd.AddCommand(syncCmd)
}

package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/victor/stormcatalog/internal/models"
)

var removeCmd = &cobra.Command{
	Use:   "remove <folder>...",
	Short: "Remove one or more folders from the catalog",
	Long: `Remove folders, their sub-folders and all their image records from the
catalog. This does not delete the actual files on disk, only the catalog
entries and stored thumbnails.

A removed folder that still lies below a catalog root is catalogued again by
the next 'stormcatalog catalog' run.

To find folders, use 'stormcatalog list'.`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		force, _ := cmd.Flags().GetBool("force")

		var toRemove []*models.Folder
		var totalAssets int
		for _, arg := range args {
			path, err := filepath.Abs(arg)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error resolving %s: %v\n", arg, err)
				os.Exit(1)
			}
			if _, ok := repo.GetFolderByPath(path); !ok {
				fmt.Fprintf(os.Stderr, "Error: Folder not catalogued: %s\n", path)
				fmt.Fprintf(os.Stderr, "\nUse 'stormcatalog list' to see catalogued folders.\n")
				os.Exit(1)
			}
			for _, folder := range repo.GetFolders() {
				if models.IsUnder(folder.Path, path) {
					toRemove = append(toRemove, folder)
					totalAssets += len(repo.GetAssets(folder.Path))
				}
			}
		}

		fmt.Printf("Folders to remove (%d):\n", len(toRemove))
		for _, folder := range toRemove {
			fmt.Printf("  %s (%d images)\n", folder.Path, len(repo.GetAssets(folder.Path)))
		}
		fmt.Printf("\nThis will remove %d folders and %d image records from the catalog.\n", len(toRemove), totalAssets)
		fmt.Printf("The actual files on disk will NOT be deleted.\n")

		if !force {
			fmt.Printf("\n⚠️  Warning: This action cannot be undone!\n")
			fmt.Printf("Use --force flag to confirm removal: stormcatalog remove --force %s\n", args[0])
			for i := 1; i < len(args); i++ {
				fmt.Printf("  %s\n", args[i])
			}
			os.Exit(0)
		}

		for _, folder := range toRemove {
			repo.DeleteFolder(folder.Path)
		}
		saveCatalog()
		fmt.Printf("✓ Successfully removed %d folders (%d image records)\n", len(toRemove), totalAssets)
	},
}

func init() {
	removeCmd.Flags().BoolP("force", "f", false, "Skip confirmation prompt")
	rootCmd.AddCommand(removeCmd)
}

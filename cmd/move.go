package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/victor/stormcatalog/internal/models"
)

var moveCmd = &cobra.Command{
	Use:   "move <image>... <destination>",
	Short: "Move catalogued images into another folder",
	Long: `Copy catalogued images into a destination folder, catalog the copies and
remove the originals. With --preserve the originals are kept, which makes this
a catalog-aware copy.

Use --recent N instead of a destination to reuse one of the recent target
folders listed by 'stormcatalog move --list-recent'.`,
	Run: func(cmd *cobra.Command, args []string) {
		preserve, _ := cmd.Flags().GetBool("preserve")
		recent, _ := cmd.Flags().GetInt("recent")
		listRecent, _ := cmd.Flags().GetBool("list-recent")

		if listRecent {
			printRecentTargets()
			return
		}

		var destination string
		switch {
		case recent > 0:
			paths := repo.GetRecentTargetPaths()
			if recent > len(paths) {
				fmt.Fprintf(os.Stderr, "Error: only %d recent target folders are known\n", len(paths))
				os.Exit(1)
			}
			destination = paths[recent-1]
		case len(args) >= 2:
			destination = args[len(args)-1]
			args = args[:len(args)-1]
		default:
			fmt.Fprintf(os.Stderr, "Error: expected at least one image and a destination folder\n")
			os.Exit(1)
		}
		destination, err := filepath.Abs(destination)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error resolving destination: %v\n", err)
			os.Exit(1)
		}

		assets := resolveAssets(args)
		ok, err := newMoveService().MoveAssets(assets, destination, preserve)
		if err != nil {
			saveCatalog()
			fmt.Fprintf(os.Stderr, "Error moving images: %v\n", err)
			os.Exit(1)
		}
		saveCatalog()
		if !ok {
			fmt.Fprintf(os.Stderr, "Some source files no longer exist. Run 'stormcatalog catalog' to refresh the catalog.\n")
			os.Exit(1)
		}

		verb := "Moved"
		if preserve {
			verb = "Copied"
		}
		fmt.Printf("✓ %s %d images to %s\n", verb, len(assets), destination)
	},
}

// resolveAssets maps file paths to catalogued assets, exiting on unknown files
func resolveAssets(paths []string) []*models.Asset {
	if len(paths) == 0 {
		fmt.Fprintf(os.Stderr, "Error: no images given\n")
		os.Exit(1)
	}
	assets := make([]*models.Asset, 0, len(paths))
	for _, path := range paths {
		abs, err := filepath.Abs(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error resolving %s: %v\n", path, err)
			os.Exit(1)
		}
		asset, ok := repo.GetAsset(filepath.Dir(abs), filepath.Base(abs))
		if !ok {
			fmt.Fprintf(os.Stderr, "Error: %s is not catalogued\n", abs)
			fmt.Fprintf(os.Stderr, "Run 'stormcatalog catalog' first.\n")
			os.Exit(1)
		}
		assets = append(assets, asset)
	}
	return assets
}

func printRecentTargets() {
	paths := repo.GetRecentTargetPaths()
	if len(paths) == 0 {
		fmt.Println("No recent target folders.")
		return
	}
	fmt.Println("Recent target folders:")
	for i, path := range paths {
		fmt.Printf("  %2d. %s\n", i+1, path)
	}
}

func init() {
	moveCmd.Flags().BoolP("preserve", "p", false, "Keep the original files")
	moveCmd.Flags().Int("recent", 0, "Use the Nth recent target folder as destination")
	moveCmd.Flags().Bool("list-recent", false, "List the recent target folders")
	rootCmd.AddCommand(moveCmd)
}

package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/victor/stormcatalog/internal/models"
	"github.com/victor/stormcatalog/internal/output"
)

var treeCmd = &cobra.Command{
	Use:   "tree [root]",
	Short: "Show catalogued folders as a tree",
	Long: `Draw the catalogued folders below a root with the number of images each
holds. Without an argument every configured catalog root is drawn.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		roots := cfg.Catalog.Roots
		if len(args) == 1 {
			abs, err := filepath.Abs(args[0])
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error resolving %s: %v\n", args[0], err)
				os.Exit(1)
			}
			roots = []string{abs}
		}
		if len(roots) == 0 {
			fmt.Fprintf(os.Stderr, "Error: no root given and catalog.roots is empty\n")
			os.Exit(1)
		}

		folders := repo.GetFolders()
		for i, root := range roots {
			tree := output.NewFolderTree(root)
			var drawn int
			for _, folder := range folders {
				if models.IsUnder(folder.Path, root) {
					tree.AddFolder(folder.Path, len(repo.GetAssets(folder.Path)))
					drawn++
				}
			}
			if drawn == 0 {
				fmt.Printf("%s (not catalogued)\n", root)
			} else {
				fmt.Print(tree.Render())
			}
			if i < len(roots)-1 {
				fmt.Println()
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(treeCmd)
}

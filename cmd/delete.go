package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:   "delete <image>...",
	Short: "Delete catalogued images",
	Long: `Remove images from the catalog. The files on disk are kept unless
--files is given.`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		deleteFiles, _ := cmd.Flags().GetBool("files")
		force, _ := cmd.Flags().GetBool("force")

		assets := resolveAssets(args)
		if deleteFiles && !force {
			fmt.Printf("Images to delete (%d):\n", len(assets))
			for _, asset := range assets {
				fmt.Printf("  %s\n", asset.FullPath())
			}
			fmt.Printf("\n⚠️  Warning: the files will be deleted from disk!\n")
			fmt.Printf("Use --force flag to confirm.\n")
			os.Exit(0)
		}

		if err := newMoveService().DeleteAssets(assets, deleteFiles); err != nil {
			fmt.Fprintf(os.Stderr, "Error deleting images: %v\n", err)
			os.Exit(1)
		}
		saveCatalog()
		fmt.Printf("✓ Deleted %d images\n", len(assets))
	},
}

func init() {
	deleteCmd.Flags().Bool("files", false, "Also delete the files from disk")
	deleteCmd.Flags().BoolP("force", "f", false, "Skip confirmation prompt")
	rootCmd.AddCommand(deleteCmd)
}

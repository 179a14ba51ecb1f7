package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/victor/stormcatalog/internal/models"
)

var copyCmd = &cobra.Command{
	Use:   "copy <image>... <destination>",
	Short: "Copy image files into a folder and catalog the copies",
	Long: `Copy image files into a destination folder. The source files do not have
to be catalogued; every copy is catalogued with its thumbnail and fingerprint.
Existing files in the destination are replaced.`,
	Args: cobra.MinimumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		destination, err := filepath.Abs(args[len(args)-1])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error resolving destination: %v\n", err)
			os.Exit(1)
		}

		mover := newMoveService()
		var copied, missing int
		for _, arg := range args[:len(args)-1] {
			source, err := filepath.Abs(arg)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error resolving %s: %v\n", arg, err)
				os.Exit(1)
			}
			if !models.IsImageFile(source) {
				fmt.Fprintf(os.Stderr, "Skipping %s: not an image file\n", source)
				continue
			}
			target := filepath.Join(destination, filepath.Base(source))
			if target == source {
				fmt.Fprintf(os.Stderr, "Skipping %s: already in %s\n", source, destination)
				continue
			}

			ok, err := mover.CopyAsset(source, target)
			if err != nil {
				saveCatalog()
				fmt.Fprintf(os.Stderr, "Error copying %s: %v\n", source, err)
				os.Exit(1)
			}
			if !ok {
				fmt.Fprintf(os.Stderr, "✗ Source not found: %s\n", source)
				missing++
				continue
			}
			copied++
		}

		if copied > 0 {
			repo.AddRecentTargetPath(destination)
		}
		saveCatalog()
		fmt.Printf("✓ Copied %d images to %s\n", copied, destination)
		if missing > 0 {
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(copyCmd)
}

package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/victor/stormcatalog/internal/duplicates"
	"github.com/victor/stormcatalog/internal/models"
	"github.com/victor/stormcatalog/internal/output"
)

var duplicatesCmd = &cobra.Command{
	Use:   "duplicates",
	Short: "List sets of duplicated images",
	Long: `Group catalogued images by fingerprint and list every set with at least
two images whose files still exist. With a perceptual hash the --threshold
flag bounds the distance between two fingerprints of the same set.

Selection flags mark images for removal:
  --keep-first   keep the first image of every set
  --exempted     keep only the copies inside catalog.exempted_folder_path

Selected images are only listed unless --delete is given. --delete removes the
catalog records; add --delete-files to remove the files as well.`,
	Run: func(cmd *cobra.Command, args []string) {
		threshold, _ := cmd.Flags().GetInt("threshold")
		if !cmd.Flags().Changed("threshold") {
			threshold = cfg.Hashing.PHashThreshold
		}
		keepFirst, _ := cmd.Flags().GetBool("keep-first")
		exempted, _ := cmd.Flags().GetBool("exempted")
		doDelete, _ := cmd.Flags().GetBool("delete")
		deleteFiles, _ := cmd.Flags().GetBool("delete-files")

		if keepFirst && exempted {
			fmt.Fprintf(os.Stderr, "Error: --keep-first and --exempted cannot be combined\n")
			os.Exit(1)
		}
		if exempted && cfg.Catalog.ExemptedFolderPath == "" {
			fmt.Fprintf(os.Stderr, "Error: --exempted requires catalog.exempted_folder_path to be set\n")
			os.Exit(1)
		}

		finder := duplicates.NewFinder(repo, appFs, cfg.Selection().Primary(), threshold, logger)
		sets, err := finder.FindDuplicatedAssets()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding duplicates: %v\n", err)
			os.Exit(1)
		}
		if len(sets) == 0 {
			fmt.Println("No duplicated images found.")
			return
		}

		var selected []*models.Asset
		switch {
		case keepFirst:
			for _, set := range sets {
				selected = append(selected, duplicates.SelectAllExcept(set, set[0])...)
			}
		case exempted:
			selected = duplicates.SelectNotInExemptedFolder(sets, cfg.Catalog.ExemptedFolderPath)
		}
		marked := make(map[string]bool, len(selected))
		for _, asset := range selected {
			marked[asset.FullPath()] = true
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		var wasted int64
		for i, set := range sets {
			fmt.Fprintf(w, "\nSet %d (%d images, hash %s)\n", i+1, len(set), output.Truncate(set[0].Hash, 16))
			fmt.Fprintln(w, "  \tPATH\tSIZE\tPIXELS\tMODIFIED")
			for j, asset := range set {
				mark := " "
				if marked[asset.FullPath()] {
					mark = "x"
				}
				if j > 0 {
					wasted += asset.FileProperties.Size
				}
				fmt.Fprintf(w, "  %s\t%s\t%s\t%dx%d\t%s\n",
					mark,
					asset.FullPath(),
					output.FormatBytes(asset.FileProperties.Size),
					asset.Pixel.Asset.Width, asset.Pixel.Asset.Height,
					asset.FileProperties.Modification.Format("2006-01-02 15:04"),
				)
			}
		}
		w.Flush()

		fmt.Printf("\nFound %d duplicate sets (%s reclaimable).\n", len(sets), output.FormatBytes(wasted))
		if len(selected) == 0 {
			return
		}
		if !doDelete {
			fmt.Printf("%d images selected. Use --delete to remove them.\n", len(selected))
			return
		}

		if err := newMoveService().DeleteAssets(selected, deleteFiles); err != nil {
			fmt.Fprintf(os.Stderr, "Error deleting duplicates: %v\n", err)
			os.Exit(1)
		}
		saveCatalog()
		if deleteFiles {
			fmt.Printf("✓ Deleted %d images and their files\n", len(selected))
		} else {
			fmt.Printf("✓ Removed %d images from the catalog\n", len(selected))
		}
	},
}

func init() {
	duplicatesCmd.Flags().Int("threshold", 0, "Maximum pHash distance within a set (default from config)")
	duplicatesCmd.Flags().Bool("keep-first", false, "Select every image of a set but the first")
	duplicatesCmd.Flags().Bool("exempted", false, "Select copies living outside the exempted folder")
	duplicatesCmd.Flags().Bool("delete", false, "Delete the selected images")
	duplicatesCmd.Flags().Bool("delete-files", false, "Also delete the selected files from disk")
	rootCmd.AddCommand(duplicatesCmd)
}

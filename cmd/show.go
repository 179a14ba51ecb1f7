package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/victor/stormcatalog/internal/output"
)

var showCmd = &cobra.Command{
	Use:   "show <folder|image>",
	Short: "Show the images of a folder or the details of one image",
	Long: `Given a catalogued folder, list its images. Given a catalogued image,
display its properties, fingerprint and flags. Use --thumbnail to export the
stored thumbnail of an image as a JPEG file.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		path, err := filepath.Abs(args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error resolving %s: %v\n", args[0], err)
			os.Exit(1)
		}

		if folder, ok := repo.GetFolderByPath(path); ok {
			assets := repo.GetAssets(folder.Path)
			fmt.Printf("Folder: %s\n", folder.Path)
			fmt.Printf("Total images: %d\n\n", len(assets))

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "NAME\tSIZE\tPIXELS\tMODIFIED\tHASH")
			fmt.Fprintln(w, "----\t----\t------\t--------\t----")
			for _, asset := range assets {
				fmt.Fprintf(w, "%s\t%s\t%dx%d\t%s\t%s\n",
					asset.FileName,
					output.FormatBytes(asset.FileProperties.Size),
					asset.Pixel.Asset.Width, asset.Pixel.Asset.Height,
					asset.FileProperties.Modification.Format(time.RFC3339),
					output.Truncate(asset.Hash, 16),
				)
			}
			w.Flush()
			return
		}

		asset, ok := repo.GetAsset(filepath.Dir(path), filepath.Base(path))
		if !ok {
			fmt.Fprintf(os.Stderr, "Error: %s is neither a catalogued folder nor a catalogued image\n", path)
			fmt.Fprintf(os.Stderr, "Use 'stormcatalog list' to see catalogued folders.\n")
			os.Exit(1)
		}

		fmt.Printf("Image Details\n")
		fmt.Printf("=============\n\n")
		fmt.Printf("Path:        %s\n", asset.FullPath())
		fmt.Printf("Folder ID:   %s\n", asset.FolderID)
		fmt.Printf("Size:        %s\n", output.FormatBytes(asset.FileProperties.Size))
		fmt.Printf("Created:     %s\n", asset.FileProperties.Creation.Format(time.RFC3339))
		fmt.Printf("Modified:    %s\n", asset.FileProperties.Modification.Format(time.RFC3339))
		fmt.Printf("Pixels:      %dx%d\n", asset.Pixel.Asset.Width, asset.Pixel.Asset.Height)
		fmt.Printf("Thumbnail:   %dx%d (%s)\n", asset.Pixel.Thumbnail.Width, asset.Pixel.Thumbnail.Height,
			asset.ThumbnailCreationDateTime.Format(time.RFC3339))
		fmt.Printf("Rotation:    %d°\n", asset.ImageRotation)
		fmt.Printf("Hash:        %s\n", asset.Hash)
		if asset.Metadata.Corrupted.IsTrue {
			fmt.Printf("\n⚠️  %s\n", asset.Metadata.Corrupted.Message)
		}
		if asset.Metadata.Rotated.IsTrue {
			fmt.Printf("\n%s\n", asset.Metadata.Rotated.Message)
		}

		target, _ := cmd.Flags().GetString("thumbnail")
		if target == "" {
			return
		}
		data, found, err := repo.LoadThumbnail(filepath.Dir(path), filepath.Base(path))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading thumbnail: %v\n", err)
			os.Exit(1)
		}
		if !found {
			fmt.Fprintf(os.Stderr, "Error: no thumbnail stored for %s\n", path)
			os.Exit(1)
		}
		if err := afero.WriteFile(appFs, target, data, 0644); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing thumbnail: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("\n✓ Thumbnail written to %s\n", target)
	},
}

func init() {
	showCmd.Flags().String("thumbnail", "", "Write the stored thumbnail of an image to this file")
	rootCmd.AddCommand(showCmd)
}

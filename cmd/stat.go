package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/victor/stormcatalog/internal/output"
)

var statCmd = &cobra.Command{
	Use:   "stat",
	Short: "Show catalog statistics and information",
	Long:  `Display the storage location, its size on disk, backups and statistics about catalogued images.`,
	Run: func(cmd *cobra.Command, args []string) {
		paths := db.Paths()

		storageSize, err := dirSize(paths.Root)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: Could not access storage: %v\n", err)
			os.Exit(1)
		}
		snaps, err := db.Backups()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: Could not list backups: %v\n", err)
			os.Exit(1)
		}

		folders := repo.GetFolders()
		assets := repo.GetCataloguedAssets()
		var totalSize int64
		var corrupted, rotated int
		for _, asset := range assets {
			totalSize += asset.FileProperties.Size
			if asset.Metadata.Corrupted.IsTrue {
				corrupted++
			}
			if asset.Metadata.Rotated.IsTrue {
				rotated++
			}
		}

		fmt.Println("Catalog Statistics")
		fmt.Println("==================")
		fmt.Println()

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "Storage Path:\t%s\n", paths.Root)
		fmt.Fprintf(w, "Storage Size:\t%s\n", output.FormatBytes(storageSize))
		fmt.Fprintf(w, "Backups:\t%d (keeping %d)\n", len(snaps), cfg.Storage.BackupsToKeep)
		if len(snaps) > 0 {
			fmt.Fprintf(w, "Last Backup:\t%s\n", snaps[len(snaps)-1].CreatedAt.Format("2006-01-02 15:04:05"))
		}
		fmt.Fprintf(w, "Fingerprint:\t%s\n", cfg.Selection().Primary())
		fmt.Fprintf(w, "\n")
		fmt.Fprintf(w, "Total Folders:\t%d\n", len(folders))
		fmt.Fprintf(w, "Total Images:\t%d\n", len(assets))
		fmt.Fprintf(w, "Total Size:\t%s\n", output.FormatBytes(totalSize))
		fmt.Fprintf(w, "Corrupted:\t%d\n", corrupted)
		fmt.Fprintf(w, "Rotated:\t%d\n", rotated)
		fmt.Fprintf(w, "Sync Definitions:\t%d\n", len(repo.GetSyncDefinitions()))
		w.Flush()
	},
}

func dirSize(root string) (int64, error) {
	var size int64
	err := afero.Walk(appFs, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to walk %s: %w", filepath.Clean(root), err)
	}
	return size, nil
}

func init() {
	rootCmd.AddCommand(statCmd)
}

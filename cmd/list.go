package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/victor/stormcatalog/internal/output"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List catalogued folders",
	Long:  `List every catalogued folder with its number of images and their total size.`,
	Run: func(cmd *cobra.Command, args []string) {
		folders := repo.GetFolders()
		if len(folders) == 0 {
			fmt.Println("No folders catalogued.")
			return
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "ID\tPATH\tIMAGES\tSIZE")
		fmt.Fprintln(w, "---\t----\t------\t----")

		for _, folder := range folders {
			assets := repo.GetAssets(folder.Path)
			var size int64
			for _, asset := range assets {
				size += asset.FileProperties.Size
			}

			fmt.Fprintf(w, "%s\t%s\t%d\t%s\n",
				output.Truncate(folder.ID, 12),
				folder.Path,
				len(assets),
				output.FormatBytes(size),
			)
		}

		w.Flush()
	},
}

var listRecentCmd = &cobra.Command{
	Use:   "recent",
	Short: "List the recent move and copy target folders",
	Run: func(cmd *cobra.Command, args []string) {
		printRecentTargets()
	},
}

func init() {
	listCmd.AddCommand(listRecentCmd)
	rootCmd.AddCommand(listCmd)
}

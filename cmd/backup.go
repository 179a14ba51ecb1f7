package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Manage catalog backups",
	Long: `Every catalog save snapshots the tables and thumbnail blobs into a
versioned backup. Only the newest storage.backups_to_keep snapshots are kept.`,
}

var backupCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Save pending changes and create a backup",
	Run: func(cmd *cobra.Command, args []string) {
		if repo.HasChanges() {
			saveCatalog()
			fmt.Println("✓ Catalog saved and backed up")
			return
		}
		snap, err := db.Backup()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating backup: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("✓ Backup created: %s\n", snap.Name)
	},
}

var backupListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the available backups",
	Run: func(cmd *cobra.Command, args []string) {
		snaps, err := db.Backups()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error listing backups: %v\n", err)
			os.Exit(1)
		}
		if len(snaps) == 0 {
			fmt.Println("No backups found.")
			return
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "VERSION\tNAME\tCREATED")
		fmt.Fprintln(w, "-------\t----\t-------")
		for i := len(snaps) - 1; i >= 0; i-- {
			snap := snaps[i]
			fmt.Fprintf(w, "%d\t%s\t%s\n", snap.Version, snap.Name, snap.CreatedAt.Format("2006-01-02 15:04:05"))
		}
		w.Flush()
	},
}

var backupRestoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Replace the catalog with the newest backup",
	Run: func(cmd *cobra.Command, args []string) {
		force, _ := cmd.Flags().GetBool("force")
		if !force {
			fmt.Printf("⚠️  Warning: the current catalog will be replaced by the newest backup!\n")
			fmt.Printf("Use --force flag to confirm: stormcatalog backup restore --force\n")
			os.Exit(0)
		}

		snap, err := db.RestoreLatestBackup()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error restoring backup: %v\n", err)
			os.Exit(1)
		}
		if err := repo.Initialize(); err != nil {
			fmt.Fprintf(os.Stderr, "Error loading restored catalog: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("✓ Catalog restored from %s (%d folders, %d images)\n",
			snap.Name, len(repo.GetFolders()), len(repo.GetCataloguedAssets()))
	},
}

func init() {
	backupRestoreCmd.Flags().BoolP("force", "f", false, "Skip confirmation prompt")
	backupCmd.AddCommand(backupCreateCmd, backupListCmd, backupRestoreCmd)
	rootCmd.AddCommand(backupCmd)
}

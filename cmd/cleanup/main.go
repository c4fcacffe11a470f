package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"editorimages/internal/cleanup"
	"editorimages/internal/models"
	"editorimages/internal/storage"
)

var (
	cfgFile string
	dryRun  bool
)

var rootCmd = &cobra.Command{
	Use:   "cleanup-images",
	Short: "Delete uploaded editor images that no content references",
	Long: `cleanup-images scans every registered content table for
data-image-id markers and deletes the uploaded images nothing points at,
both the database record and the stored file.

The scan is a snapshot: content written while the command runs may not be
seen, so run it while editing is quiet. Individual unreadable rows or
missing files are reported as warnings and never abort the run.

Examples:
  # Show what would be deleted
  cleanup-images --dry-run

  # Delete unreferenced images
  cleanup-images --config /etc/editorimages/config.yaml`,
	SilenceUsage: true,
	RunE:         runCleanup,
}

func runCleanup(cmd *cobra.Command, args []string) error {
	cfg, err := models.LoadConfig(cfgFile)
	if err != nil {
		return err
	}

	db, err := storage.NewStorage(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	scanner := &cleanup.Scanner{
		Images:  db,
		Catalog: storage.NewCatalog(db.Pool(), cfg.ContentTables),
		Out:     cmd.OutOrStdout(),
	}

	_, err = scanner.Scan(context.Background(), dryRun)
	return err
}

func init() {
	rootCmd.Flags().StringVar(&cfgFile, "config", "config.yaml", "path to config file")
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "show what would be deleted without actually deleting")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

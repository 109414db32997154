package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"go-photosync/internal/store"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show what the tracking database knows about the local store",
	Run:   runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	db, err := store.Open(globalConfig.DatabasePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	stats, err := db.GetStats()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading stats: %v\n", err)
		os.Exit(1)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintf(w, "Save path:\t%s\n", globalConfig.SavePath)
	fmt.Fprintf(w, "Database:\t%s\n", globalConfig.DatabasePath)
	fmt.Fprintf(w, "Assets tracked:\t%d\n", stats.Assets)
	fmt.Fprintf(w, "Versions on disk:\t%d\n", stats.CommittedVersions)
	fmt.Fprintf(w, "Versions in flight:\t%d\n", stats.PendingVersions)
	w.Flush()
}

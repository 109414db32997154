package cmd

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"go-photosync/internal/prober"
	"go-photosync/internal/store"
)

var verifyPruneFlag bool

// verifyCmd represents the verify command
var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify tracked files against the filesystem",
	Long: `Checks every version the database believes is on disk: the file must
exist at its recorded path with its recorded size. Drifted or corrupted
entries are reported; with --prune they are dropped from the database so the
next sync downloads them again.`,
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)

	verifyCmd.Flags().BoolVar(&verifyPruneFlag, "prune", false, "Drop drifted or corrupted entries from the database")
}

func runVerify(cmd *cobra.Command, args []string) error {
	db, err := store.Open(globalConfig.DatabasePath)
	if err != nil {
		return err
	}
	defer db.Close()

	p := prober.New(globalConfig.SavePath)

	type drifted struct {
		record store.VersionRecord
		result prober.Result
	}

	var checked, missing, mismatched int
	var bad []drifted
	err = db.EachCommitted(func(v store.VersionRecord) error {
		checked++
		result, probeErr := p.Verify(v.StoredFilename, v.ByteSize)
		if probeErr != nil {
			return fmt.Errorf("probing %s: %w", v.StoredFilename, probeErr)
		}
		switch result {
		case prober.Missing:
			missing++
			log.Warnf("Missing: %s (%s/%s)", v.StoredFilename, v.AssetID, v.Kind)
			bad = append(bad, drifted{v, result})
		case prober.Mismatch:
			mismatched++
			log.Warnf("Size mismatch: %s (%s/%s), expected %d bytes", v.StoredFilename, v.AssetID, v.Kind, v.ByteSize)
			bad = append(bad, drifted{v, result})
		}
		return nil
	})
	if err != nil {
		return err
	}

	var pruned int
	if verifyPruneFlag {
		for _, d := range bad {
			if d.result == prober.Mismatch {
				if err := p.RemoveStale(d.record.StoredFilename); err != nil {
					return fmt.Errorf("removing stale %s: %w", d.record.StoredFilename, err)
				}
			}
			if err := db.DropVersion(d.record.AssetID, d.record.Kind); err != nil {
				return err
			}
			pruned++
		}
	}

	fmt.Printf("Verified %d version(s): %d missing, %d mismatched", checked, missing, mismatched)
	if verifyPruneFlag {
		fmt.Printf(", %d pruned", pruned)
	}
	fmt.Println()

	if !verifyPruneFlag && missing+mismatched > 0 {
		return fmt.Errorf("%d tracked version(s) have drifted (re-run with --prune, then sync)", missing+mismatched)
	}
	return nil
}

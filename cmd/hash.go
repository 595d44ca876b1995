package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/photo-match/internal/fingerprint"
)

var hashCmd = &cobra.Command{
	Use:   "hash <image>...",
	Short: "Print the average hash of one or more images",
	Long: `Compute the 64-bit average hash of each image and print it in binary
(row-major, 64 symbols) and hex form.

Examples:
  photo-match hash cat.jpg
  photo-match hash --json ~/Pictures/*.png`,
	Args: cobra.MinimumNArgs(1),
	RunE: runHash,
}

func init() {
	rootCmd.AddCommand(hashCmd)

	hashCmd.Flags().Bool("json", false, "Output as JSON")
}

func runHash(cmd *cobra.Command, args []string) error {
	_, log, err := loadConfig()
	if err != nil {
		return err
	}

	engine := fingerprint.New()
	fsys := afero.NewOsFs()

	hashes := make([]fingerprint.FileHash, 0, len(args))
	failed := 0
	for _, path := range args {
		fp, err := engine.ComputeFile(fsys, path)
		if err != nil {
			failed++
			log.WithField("path", path).WithError(err).Debug("Hashing failed")
		}
		hashes = append(hashes, fingerprint.NewFileHash(path, fp, err))
	}

	if mustGetBool(cmd, "json") {
		if err := outputJSON(cmd.OutOrStdout(), fingerprint.FileHashBatch{Files: hashes, Count: len(hashes)}); err != nil {
			return err
		}
	} else {
		printHashes(cmd.OutOrStdout(), hashes)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d files could not be hashed", failed, len(args))
	}
	return nil
}

func printHashes(out io.Writer, hashes []fingerprint.FileHash) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PATH\tHEX\tFINGERPRINT")
	fmt.Fprintln(w, "----\t---\t-----------")
	for _, h := range hashes {
		if h.Error != "" {
			fmt.Fprintf(w, "%s\t-\terror: %s\n", h.Path, h.Error)
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", h.Path, h.Hex, h.Fingerprint)
	}
	w.Flush()
}

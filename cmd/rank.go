package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/photo-match/internal/fingerprint"
	"github.com/kozaktomas/photo-match/internal/ranker"
	"github.com/kozaktomas/photo-match/internal/scan"
	"github.com/kozaktomas/photo-match/internal/search"
)

var rankCmd = &cobra.Command{
	Use:   "rank",
	Short: "Rank images in a folder by similarity to a reference image",
	Long: `Fingerprint a reference image and every image under a folder, then list
the closest matches by descending similarity.

Images are searched recursively; hidden directories are skipped. Files that
cannot be decoded are left out of the results.

Examples:
  # Top 20 matches for a photo
  photo-match rank --reference ~/Pictures/cat.jpg --folder ~/Pictures

  # Top 5 matches as JSON, including skipped files
  photo-match rank -r cat.jpg -f ~/Pictures --top 5 --json --show-skipped`,
	RunE: runRank,
}

func init() {
	rootCmd.AddCommand(rankCmd)

	rankCmd.Flags().StringP("reference", "r", "", "Reference image")
	rankCmd.Flags().StringP("folder", "f", "", "Folder to search")
	rankCmd.Flags().Int("top", 0, "Number of matches to show (default from config, 20)")
	rankCmd.Flags().Int("workers", 0, "Images fingerprinted in parallel (default from config, one per CPU)")
	rankCmd.Flags().StringSlice("ext", nil, "Image extensions to include (default .jpg,.jpeg,.png,.webp)")
	rankCmd.Flags().Bool("json", false, "Output as JSON")
	rankCmd.Flags().Bool("show-skipped", false, "List files that could not be decoded")
}

func runRank(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}

	jsonOutput := mustGetBool(cmd, "json")
	showSkipped := mustGetBool(cmd, "show-skipped")
	exts := rankExtensions(mustGetStringSlice(cmd, "ext"), cfg.Search.Extensions)

	req := search.Request{
		Reference: mustGetString(cmd, "reference"),
		Folder:    mustGetString(cmd, "folder"),
		TopK:      mustGetInt(cmd, "top"),
		Workers:   mustGetInt(cmd, "workers"),
	}

	searcher := search.New(afero.NewOsFs(), fingerprint.New(),
		search.WithExtensions(exts),
		search.WithWorkers(cfg.Search.Workers),
		search.WithTopK(cfg.Search.TopK),
		search.WithLogger(log),
	)

	candidates, err := searcher.Candidates(req)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bar := newScanProgressBar(len(candidates), jsonOutput)
	result, err := searcher.RankCandidates(ctx, req, candidates, func(ranker.Progress) {
		if bar != nil {
			_ = bar.Add(1)
		}
	})
	if bar != nil {
		_ = bar.Finish()
		fmt.Fprintln(os.Stderr)
	}
	if err != nil {
		return fmt.Errorf("ranking failed: %w", err)
	}

	if jsonOutput {
		if !showSkipped {
			result.Skipped = nil
		}
		return outputJSON(cmd.OutOrStdout(), result)
	}

	printMatches(cmd.OutOrStdout(), result, showSkipped)
	return nil
}

// rankExtensions picks the extensions from the flag, then the config, then the
// built-in image list.
func rankExtensions(flagExts, configExts []string) []string {
	var exts []string
	switch {
	case len(flagExts) > 0:
		exts = flagExts
	case len(configExts) > 0:
		exts = configExts
	default:
		return scan.DefaultExtensions
	}
	normalized := make([]string, 0, len(exts))
	for _, ext := range exts {
		if ext = scan.NormalizeExtension(ext); ext != "" {
			normalized = append(normalized, ext)
		}
	}
	if len(normalized) == 0 {
		return scan.DefaultExtensions
	}
	return normalized
}

func newScanProgressBar(count int, jsonOutput bool) *progressbar.ProgressBar {
	if jsonOutput || count == 0 {
		return nil
	}
	return progressbar.NewOptions(count,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription("Fingerprinting"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("images"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)
}

// printMatches prints the ranked matches as a table.
func printMatches(out io.Writer, result *ranker.Result, showSkipped bool) {
	fmt.Fprintf(out, "Reference fingerprint: %s\n", result.Reference.Hex())
	fmt.Fprintf(out, "Scanned %d images, %d matches shown\n\n", result.Scanned, len(result.Matches))

	if len(result.Matches) == 0 {
		fmt.Fprintln(out, "No matches found.")
	} else {
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "RANK\tSIMILARITY\tDISTANCE\tPATH")
		fmt.Fprintln(w, "----\t----------\t--------\t----")
		for i, m := range result.Matches {
			fmt.Fprintf(w, "%d\t%.1f%%\t%d\t%s\n", i+1, m.Similarity*100, m.Distance, m.Path)
		}
		w.Flush()
	}

	if !showSkipped {
		if n := len(result.Skipped); n > 0 {
			fmt.Fprintf(out, "\n%d files could not be decoded (use --show-skipped to list them)\n", n)
		}
		return
	}
	if len(result.Skipped) > 0 {
		fmt.Fprintf(out, "\nSkipped (%d):\n", len(result.Skipped))
		for _, s := range result.Skipped {
			fmt.Fprintf(out, "  %s: %s\n", s.Path, s.Reason)
		}
	}
}

func outputJSON(out io.Writer, data any) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("encoding JSON output: %w", err)
	}
	return nil
}

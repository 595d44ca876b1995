package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/photo-match/internal/constants"
	"github.com/kozaktomas/photo-match/internal/fingerprint"
)

var compareCmd = &cobra.Command{
	Use:   "compare <a> <b>",
	Short: "Compare two images or fingerprints",
	Long: `Print the Hamming distance and similarity between two images.

Each argument is either an image file or a fingerprint: a binary string of
'0'/'1' symbols, or 16 hex digits prefixed with 0x or a: (the a: form is
what goimagehash prints for average hashes).

Examples:
  photo-match compare cat.jpg cat-resized.png
  photo-match compare cat.jpg 0xf0f0f0f0f0f0f0f0
  photo-match compare a:f0f0f0f0f0f0f0f0 0xf0f0f0f0f0f0f0f1
  photo-match compare --threshold 5 a.jpg b.jpg`,
	Args: cobra.ExactArgs(2),
	RunE: runCompare,
}

func init() {
	rootCmd.AddCommand(compareCmd)

	compareCmd.Flags().Int("threshold", -1, "Also report whether the distance is within this many bits")
	compareCmd.Flags().Bool("json", false, "Output as JSON")
}

// CompareResult is the outcome of comparing two fingerprints.
type CompareResult struct {
	A          fingerprint.FileHash `json:"a"`
	B          fingerprint.FileHash `json:"b"`
	Distance   int                  `json:"distance"`
	Similarity float64              `json:"similarity"`
	Comparable bool                 `json:"comparable"`
	Similar    *bool                `json:"similar,omitempty"`
}

func runCompare(cmd *cobra.Command, args []string) error {
	engine := fingerprint.New()
	fsys := afero.NewOsFs()

	a, err := resolveFingerprint(engine, fsys, args[0])
	if err != nil {
		return err
	}
	b, err := resolveFingerprint(engine, fsys, args[1])
	if err != nil {
		return err
	}

	d := fingerprint.HammingDistance(a, b)
	result := CompareResult{
		A:          fingerprint.NewFileHash(args[0], a, nil),
		B:          fingerprint.NewFileHash(args[1], b, nil),
		Distance:   d,
		Similarity: fingerprint.Similarity(d),
		Comparable: d != constants.MismatchDistance,
	}
	if threshold := mustGetInt(cmd, "threshold"); threshold >= 0 {
		similar := fingerprint.Similar(a, b, threshold)
		result.Similar = &similar
	}

	out := cmd.OutOrStdout()
	if mustGetBool(cmd, "json") {
		return outputJSON(out, result)
	}

	fmt.Fprintf(out, "A: %s\n   %s\n", args[0], a)
	fmt.Fprintf(out, "B: %s\n   %s\n", args[1], b)
	if !result.Comparable {
		fmt.Fprintf(out, "\nFingerprints differ in length (%d vs %d) and cannot be compared.\n", a.Len(), b.Len())
		return nil
	}
	fmt.Fprintf(out, "\nDistance:   %d of %d bits\n", d, constants.HashBits)
	fmt.Fprintf(out, "Similarity: %.1f%%\n", result.Similarity*100)
	if result.Similar != nil {
		fmt.Fprintf(out, "Similar:    %t\n", *result.Similar)
	}
	return nil
}

// resolveFingerprint hashes arg if it names a file, otherwise parses it as a fingerprint.
func resolveFingerprint(engine *fingerprint.Engine, fsys afero.Fs, arg string) (fingerprint.Fingerprint, error) {
	if _, err := fsys.Stat(arg); err == nil {
		fp, err := engine.ComputeFile(fsys, arg)
		if err != nil {
			return fingerprint.Fingerprint{}, err
		}
		return fp, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return fingerprint.Fingerprint{}, fmt.Errorf("opening %s: %w", arg, err)
	}

	fp, err := fingerprint.Parse(arg)
	if err != nil {
		return fingerprint.Fingerprint{}, fmt.Errorf("%s is neither a file nor a fingerprint: %w", arg, err)
	}
	return fp, nil
}

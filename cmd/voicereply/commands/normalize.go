package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"voicereply/internal/audio"
)

var normalizeCmd = &cobra.Command{
	Use:   "normalize <input>",
	Short: "Convert a recording to the upload format",
	Long: `Convert a WAV, MP3, Ogg Vorbis or FLAC recording to 16 kHz mono 16-bit WAV.

Example:
  voicereply normalize question.mp3 -o question.wav --resampler sinc`,
	Args: cobra.ExactArgs(1),
	RunE: runNormalize,
}

func init() {
	normalizeCmd.Flags().StringP("output", "o", "", "output file (default: <input>.16k.wav)")
	normalizeCmd.Flags().String("resampler", "", "resampler: lagrange or sinc (overrides normalizer.resampler)")
}

func runNormalize(cmd *cobra.Command, args []string) error {
	input := args[0]
	output, _ := cmd.Flags().GetString("output")
	if output == "" {
		output = strings.TrimSuffix(input, filepath.Ext(input)) + ".16k.wav"
	}
	opts := cfg.Normalizer
	if r, _ := cmd.Flags().GetString("resampler"); r != "" {
		opts.Resampler = r
	}

	data, err := os.ReadFile(input)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", input, err)
	}
	n, err := audio.NewNormalizer(opts)
	if err != nil {
		return err
	}
	clip, err := n.Normalize(data)
	if err != nil {
		return err
	}
	if err := saveToFile(output, clip); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %s, %s, %d bytes\n",
		output, audio.CanonicalFormat, formatDuration(clip.Duration()), len(clip))
	return nil
}

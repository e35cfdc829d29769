package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"voicereply/internal/audio"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <audio>",
	Short: "Detect pauses in a reply clip",
	Long: `Print the silence profile of an audio clip: total duration, pause
boundaries usable as subtitle cut points, and the onset of speech.`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().Bool("json", false, "print the profile as JSON")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	buf, err := loadAudio(args[0])
	if err != nil {
		return err
	}
	profile := audio.NewAnalyzer(cfg.Silence).Analyze(buf)

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		return printJSON(cmd.OutOrStdout(), profile)
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "duration:   %.3fs\n", profile.Duration)
	fmt.Fprintf(out, "onset:      %.3fs\n", profile.Onset)
	fmt.Fprintf(out, "threshold:  %.4f\n", profile.Threshold)
	fmt.Fprintf(out, "boundaries: %d\n", len(profile.Boundaries))
	for i, b := range profile.Boundaries {
		fmt.Fprintf(out, "  [%d] %.3fs\n", i, b)
	}
	return nil
}

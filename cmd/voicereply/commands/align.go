package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"voicereply/internal/audio"
	"voicereply/internal/subtitle"
)

var alignCmd = &cobra.Command{
	Use:   "align <audio>",
	Short: "Time subtitles against a reply clip",
	Long: `Split the reply text into subtitle chunks and assign each a time range,
cutting at the pauses detected in the audio.

Example:
  voicereply align reply.wav --text "嘉庚：你好，欢迎光临。"`,
	Args: cobra.ExactArgs(1),
	RunE: runAlign,
}

func init() {
	alignCmd.Flags().StringP("text", "t", "", "reply text (required)")
	alignCmd.Flags().Bool("json", false, "print cues as JSON")
	alignCmd.MarkFlagRequired("text")
}

func runAlign(cmd *cobra.Command, args []string) error {
	text, _ := cmd.Flags().GetString("text")
	buf, err := loadAudio(args[0])
	if err != nil {
		return err
	}

	aligner := subtitle.NewAligner(cfg.Subtitle)
	profile := audio.NewAnalyzer(cfg.Silence).Analyze(buf)
	al := aligner.Align(aligner.Segment(text), &profile, buf.Duration())

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		return printJSON(cmd.OutOrStdout(), map[string]any{
			"method":    al.Method.String(),
			"subtitles": al.Cues,
		})
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "METHOD\t%s\n", al.Method)
	fmt.Fprintln(w, "START\tEND\tTEXT")
	for _, c := range al.Cues {
		fmt.Fprintf(w, "%.3f\t%.3f\t%s\n", c.Start, c.End, c.Text)
	}
	return w.Flush()
}

package commands

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"voicereply/internal/config"
)

var (
	configPath string
	logLevel   string

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "voicereply",
	Short: "Streaming voice reply client",
	Long: `voicereply - submit a spoken question and play back the synthesized reply.

Replies may arrive as several independently generated audio segments; they
are played back in order with subtitles timed to the pauses in the audio.

Configuration is read from the YAML file given with --config. Every field
is optional and falls back to its default.

Examples:
  # Convert a recording to the upload format
  voicereply normalize question.mp3 -o question.wav

  # Inspect subtitle timing for a reply
  voicereply align reply.wav --text "你好，欢迎光临。"

  # Talk to the service
  voicereply talk question.wav -c voicereply.yaml`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (YAML)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level, overrides log.level from the config")

	rootCmd.AddCommand(normalizeCmd, analyzeCmd, alignCmd, talkCmd)
}

func loadConfig(cmd *cobra.Command, args []string) error {
	if configPath == "" {
		cfg = config.Default()
	} else {
		c, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = c
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", cfg.Log.Level, err)
	}
	logrus.SetLevel(level)
	return nil
}

package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"voicereply/internal/audio"
	"voicereply/internal/pipeline"
	"voicereply/internal/playback"
	"voicereply/internal/upstream"
)

var talkCmd = &cobra.Command{
	Use:   "talk <recording>",
	Short: "Submit a recording and play the spoken reply",
	Long: `Send a recorded question to the dialogue service, then play the reply
segments on the default audio device while printing the current subtitle.

Example:
  voicereply talk question.wav --voice jiageng -c voicereply.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runTalk,
}

func init() {
	talkCmd.Flags().String("url", "", "dialogue service websocket url (overrides upstream.url)")
	talkCmd.Flags().String("voice", "", "reply voice (overrides upstream.voice)")
	talkCmd.Flags().String("language", "", "reply language (overrides upstream.output_language)")
}

func runTalk(cmd *cobra.Command, args []string) error {
	opts := cfg.Upstream
	if v, _ := cmd.Flags().GetString("url"); v != "" {
		opts.URL = v
	}
	if v, _ := cmd.Flags().GetString("voice"); v != "" {
		opts.Voice = v
	}
	if v, _ := cmd.Flags().GetString("language"); v != "" {
		opts.OutputLanguage = v
	}

	recording, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", args[0], err)
	}

	normalizer, err := audio.NewNormalizer(cfg.Normalizer)
	if err != nil {
		return err
	}
	fetcher, err := upstream.NewHTTPFetcher(opts)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	idle := make(chan struct{}, 1)
	failed := make(chan *playback.PlaybackError, 1)
	player := playback.NewSpeakerPlayer(cfg.Playback.SampleRate, cfg.Playback.PositionInterval)
	queue := playback.NewQueue(player, playback.Listener{
		OnStateChanged: func(s playback.State) {
			logrus.Debugf("talk: %s", s)
			if s == playback.Idle {
				notify(idle, struct{}{})
			}
		},
		OnCueChanged: func(text string) {
			if text != "" {
				fmt.Fprintln(out, text)
			}
		},
		OnPlaybackError: func(err *playback.PlaybackError) {
			notify(failed, err)
		},
	})

	p := pipeline.New(normalizer, upstream.NewClient(opts), fetcher, queue, pipeline.Options{
		Concurrency: cfg.Pipeline.Concurrency,
		Silence:     cfg.Silence,
		Subtitle:    cfg.Subtitle,
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := p.SubmitCapturedAudio(ctx, recording); err != nil {
		return userError(err)
	}

	// 所有片段都已入队，之后的 Idle 即播放结束
	drain(idle)
	if queue.State() != playback.Idle {
		select {
		case <-idle:
		case <-ctx.Done():
			p.Reset()
			return ctx.Err()
		}
	}
	select {
	case err := <-failed:
		return err
	default:
	}
	return nil
}

// userError 把流水线错误转换为面向用户的提示，细节留在日志里
func userError(err error) error {
	var ue *upstream.UpstreamError
	switch {
	case errors.Is(err, pipeline.ErrCouldNotProcess):
		return pipeline.ErrCouldNotProcess
	case errors.As(err, &ue):
		return errors.New(ue.UserMessage())
	case errors.Is(err, context.Canceled):
		return nil
	}
	return err
}

func notify[T any](ch chan T, v T) {
	select {
	case ch <- v:
	default:
	}
}

func drain[T any](ch chan T) {
	for {
		select {
		case <-ch:
		default:
			return
		}
	}
}


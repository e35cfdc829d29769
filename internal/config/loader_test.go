package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"voicereply/internal/config"
)

func TestDefaultIsValid(t *testing.T) {
	if err := config.Validate(config.Default()); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestLoadFromReader(t *testing.T) {
	yaml := `
log:
  level: debug
upstream:
  url: wss://example.com/api/voice/stream
  voice: jiageng
  dial_timeout: 2s
normalizer:
  resampler: sinc
subtitle:
  fallback: weighted
playback:
  position_interval: 20ms
`
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Log.Level != "debug" || cfg.Upstream.Voice != "jiageng" {
		t.Fatalf("fields not decoded: %+v", cfg)
	}
	if cfg.Upstream.DialTimeout != 2*time.Second || cfg.Playback.PositionInterval != 20*time.Millisecond {
		t.Fatalf("durations not decoded: %v %v", cfg.Upstream.DialTimeout, cfg.Playback.PositionInterval)
	}
	if cfg.Normalizer.Resampler != "sinc" || cfg.Subtitle.Fallback != "weighted" {
		t.Fatalf("enums not decoded: %+v %+v", cfg.Normalizer, cfg.Subtitle)
	}
	// 未配置的字段保留默认值
	def := config.Default()
	if cfg.Playback.SampleRate != def.Playback.SampleRate || cfg.Silence != def.Silence {
		t.Fatalf("defaults lost: %+v", cfg)
	}
	if cfg.Upstream.OutputLanguage != "minnan" {
		t.Fatalf("output language default lost: %q", cfg.Upstream.OutputLanguage)
	}
}

func TestLoadEmpty(t *testing.T) {
	cfg, err := config.LoadFromReader(strings.NewReader(""))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Pipeline.Concurrency != config.Default().Pipeline.Concurrency {
		t.Fatalf("empty document should yield defaults")
	}
}

func TestLoadUnknownField(t *testing.T) {
	_, err := config.LoadFromReader(strings.NewReader("playback:\n  volume: 3\n"))
	if err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want []string
	}{
		{
			name: "bad enums",
			yaml: "normalizer:\n  resampler: cubic\nsubtitle:\n  fallback: random\n",
			want: []string{"normalizer.resampler", "subtitle.fallback"},
		},
		{
			name: "bad upstream",
			yaml: "upstream:\n  url: http://example.com\n  audio_base_url: uploads\n",
			want: []string{"upstream.url", "upstream.audio_base_url"},
		},
		{
			name: "bad silence",
			yaml: "silence:\n  min_threshold: 0.5\n  max_threshold: 0.1\n  percentile: 2\n",
			want: []string{"silence.min_threshold", "silence.percentile"},
		},
		{
			name: "bad playback",
			yaml: "log:\n  level: loud\nplayback:\n  sample_rate: 100\npipeline:\n  concurrency: 0\n",
			want: []string{"log.level", "playback.sample_rate", "pipeline.concurrency"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.LoadFromReader(strings.NewReader(tt.yaml))
			if err == nil {
				t.Fatal("expected validation error")
			}
			for _, w := range tt.want {
				if !strings.Contains(err.Error(), w) {
					t.Errorf("error should mention %s, got: %v", w, err)
				}
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "voicereply.yaml")
	if err := os.WriteFile(path, []byte("upstream:\n  voice: a\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.Load(path)
	if err != nil || cfg.Upstream.Voice != "a" {
		t.Fatalf("load got=%+v err=%v", cfg, err)
	}
	if _, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

package config

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"voicereply/internal/audio"
	"voicereply/internal/subtitle"
)

// Load 读取 path 处的 YAML 配置，未出现的字段保留默认值
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader 解码并校验 YAML 配置，未知字段视为错误
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 检查配置一致性，返回合并后的全部错误
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Log.Level != "" {
		if _, err := logrus.ParseLevel(cfg.Log.Level); err != nil {
			errs = append(errs, fmt.Errorf("log.level %q is invalid", cfg.Log.Level))
		}
	}

	// Upstream
	if cfg.Upstream.URL == "" {
		errs = append(errs, errors.New("upstream.url is required"))
	} else if u, err := url.Parse(cfg.Upstream.URL); err != nil || (u.Scheme != "ws" && u.Scheme != "wss") {
		errs = append(errs, fmt.Errorf("upstream.url %q must be a ws:// or wss:// url", cfg.Upstream.URL))
	}
	if cfg.Upstream.AudioBaseURL != "" {
		if u, err := url.Parse(cfg.Upstream.AudioBaseURL); err != nil || !u.IsAbs() {
			errs = append(errs, fmt.Errorf("upstream.audio_base_url %q must be an absolute url", cfg.Upstream.AudioBaseURL))
		}
	}
	if cfg.Upstream.DialTimeout < 0 {
		errs = append(errs, errors.New("upstream.dial_timeout must not be negative"))
	}
	if cfg.Upstream.FetchTimeout < 0 {
		errs = append(errs, errors.New("upstream.fetch_timeout must not be negative"))
	}
	if cfg.Upstream.MaxAudioBytes < 0 {
		errs = append(errs, errors.New("upstream.max_audio_bytes must not be negative"))
	}

	// Normalizer
	switch cfg.Normalizer.Resampler {
	case "", audio.ResamplerLagrange, audio.ResamplerSinc:
	default:
		errs = append(errs, fmt.Errorf("normalizer.resampler %q is invalid; valid values: lagrange, sinc", cfg.Normalizer.Resampler))
	}
	if cfg.Normalizer.Quality < 0 || cfg.Normalizer.Quality > 64 {
		errs = append(errs, fmt.Errorf("normalizer.quality %d is out of range [1, 64]", cfg.Normalizer.Quality))
	}

	// Silence
	s := cfg.Silence
	if s.FrameLength <= 0 || s.FrameHop <= 0 {
		errs = append(errs, errors.New("silence.frame_length and silence.frame_hop must be positive"))
	}
	if s.Percentile < 0 || s.Percentile > 1 {
		errs = append(errs, fmt.Errorf("silence.percentile %.2f is out of range [0, 1]", s.Percentile))
	}
	if s.MinThreshold > s.MaxThreshold {
		errs = append(errs, fmt.Errorf("silence.min_threshold %.3f exceeds silence.max_threshold %.3f", s.MinThreshold, s.MaxThreshold))
	}
	if s.SilenceMinRun < 0 || s.EdgeMargin < 0 || s.OnsetMinRun < 0 {
		errs = append(errs, errors.New("silence run lengths and edge margin must not be negative"))
	}

	// Subtitle
	switch cfg.Subtitle.Fallback {
	case "", subtitle.FallbackEqual, subtitle.FallbackWeighted:
	default:
		errs = append(errs, fmt.Errorf("subtitle.fallback %q is invalid; valid values: equal, weighted", cfg.Subtitle.Fallback))
	}
	if cfg.Subtitle.WindowRunes < 0 {
		errs = append(errs, fmt.Errorf("subtitle.window_runes %d must not be negative", cfg.Subtitle.WindowRunes))
	}

	// Playback
	if cfg.Playback.SampleRate < 8000 || cfg.Playback.SampleRate > 192000 {
		errs = append(errs, fmt.Errorf("playback.sample_rate %d is out of range [8000, 192000]", cfg.Playback.SampleRate))
	}
	if cfg.Playback.PositionInterval <= 0 {
		errs = append(errs, errors.New("playback.position_interval must be positive"))
	}

	if cfg.Pipeline.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("pipeline.concurrency %d must be at least 1", cfg.Pipeline.Concurrency))
	}

	return errors.Join(errs...)
}

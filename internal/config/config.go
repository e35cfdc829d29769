package config

import (
	"time"

	"voicereply/internal/audio"
	"voicereply/internal/subtitle"
	"voicereply/internal/upstream"
)

// Config 语音回复客户端的完整配置，对应 YAML 顶层结构
type Config struct {
	Log        LogConfig               `yaml:"log"`
	Upstream   upstream.Options        `yaml:"upstream"`
	Normalizer audio.NormalizerOptions `yaml:"normalizer"`
	Silence    audio.AnalyzerOptions   `yaml:"silence"`
	Subtitle   subtitle.Options        `yaml:"subtitle"`
	Playback   PlaybackConfig          `yaml:"playback"`
	Pipeline   PipelineConfig          `yaml:"pipeline"`
}

type LogConfig struct {
	// Level logrus 日志级别：trace, debug, info, warn, error
	Level string `yaml:"level"`
}

// PlaybackConfig 扬声器输出
type PlaybackConfig struct {
	SampleRate       int           `yaml:"sample_rate"`
	PositionInterval time.Duration `yaml:"position_interval"`
}

// PipelineConfig 回复片段处理
type PipelineConfig struct {
	// Concurrency 同时下载、解码的片段数
	Concurrency int `yaml:"concurrency"`
}

// Default 返回全部默认值，加载 YAML 时以此为底
func Default() *Config {
	return &Config{
		Log:        LogConfig{Level: "info"},
		Upstream:   upstream.DefaultOptions(),
		Normalizer: audio.DefaultNormalizerOptions(),
		Silence:    audio.DefaultAnalyzerOptions(),
		Subtitle:   subtitle.DefaultOptions(),
		Playback: PlaybackConfig{
			SampleRate:       24000,
			PositionInterval: 50 * time.Millisecond,
		},
		Pipeline: PipelineConfig{Concurrency: 4},
	}
}

package audio

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// NormalizerOptions 规范化参数
type NormalizerOptions struct {
	Resampler string `yaml:"resampler"` // lagrange | sinc
	Quality   int    `yaml:"quality"`   // lagrange 插值阶数
}

// DefaultNormalizerOptions 默认参数
func DefaultNormalizerOptions() NormalizerOptions {
	return NormalizerOptions{Resampler: ResamplerLagrange, Quality: DefaultResampleQuality}
}

// Normalizer 把任意录音转换为规范上传格式：16kHz 单声道 16bit WAV
// 无内部状态，可并发使用
type Normalizer struct {
	opts NormalizerOptions
}

func NewNormalizer(opts NormalizerOptions) (*Normalizer, error) {
	switch opts.Resampler {
	case "":
		opts.Resampler = ResamplerLagrange
	case ResamplerLagrange, ResamplerSinc:
	default:
		return nil, fmt.Errorf("audio: unknown resampler %q", opts.Resampler)
	}
	if opts.Quality <= 0 {
		opts.Quality = DefaultResampleQuality
	}
	if opts.Quality > 64 {
		return nil, fmt.Errorf("audio: resample quality %d out of range [1, 64]", opts.Quality)
	}
	return &Normalizer{opts: opts}, nil
}

// Normalize 解码、混音、重采样、量化并封装
// 解码失败返回 *DecodeError，封装失败返回 *EncodeError
func (n *Normalizer) Normalize(input []byte) (Canonical, error) {
	buf, err := Decode(input)
	if err != nil {
		return nil, err
	}
	return n.NormalizeBuffer(buf)
}

// NormalizeBuffer 对已解码的 Buffer 执行混音、重采样和封装
func (n *Normalizer) NormalizeBuffer(buf *Buffer) (Canonical, error) {
	if buf == nil || buf.Len() == 0 {
		return nil, &EncodeError{Err: ErrEmptyAudio}
	}
	mono := buf.Mono()
	out, err := Resample(mono, CanonicalFormat.SampleRate, n.opts.Resampler, n.opts.Quality)
	if err != nil {
		return nil, &EncodeError{Err: err}
	}

	logrus.WithFields(logrus.Fields{
		"in_rate":     buf.SampleRate(),
		"in_channels": buf.NumChannels(),
		"in_samples":  buf.Len(),
		"out_samples": out.Len(),
		"resampler":   n.opts.Resampler,
	}).Debug("normalizer: converted")

	return EncodeCanonical(out)
}

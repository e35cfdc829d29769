package audio

import (
	"fmt"

	"github.com/gopxl/beep"
	resampling "github.com/tphakala/go-audio-resampling"
)

// 重采样算法
const (
	ResamplerLagrange = "lagrange"
	ResamplerSinc     = "sinc"
)

// DefaultResampleQuality beep.Resample 的插值阶数
const DefaultResampleQuality = 4

// OutputLen 重采样后的采样数：ceil(n × to / from)
func OutputLen(n, from, to int) int {
	if n <= 0 || from <= 0 || to <= 0 {
		return 0
	}
	return int((int64(n)*int64(to) + int64(from) - 1) / int64(from))
}

// Resample 将单声道 Buffer 转换到目标采样率，输出长度严格为 OutputLen
func Resample(buf *Buffer, to int, method string, quality int) (*Buffer, error) {
	if to <= 0 {
		return nil, ErrInvalidSampleRate
	}
	if buf.NumChannels() != 1 {
		return nil, fmt.Errorf("audio: resample needs mono input, got %d channels", buf.NumChannels())
	}
	if buf.SampleRate() == to {
		return buf, nil
	}

	want := OutputLen(buf.Len(), buf.SampleRate(), to)
	var (
		out []float64
		err error
	)
	switch method {
	case "", ResamplerLagrange:
		out = resampleLagrange(buf.Channel(0), buf.SampleRate(), to, quality)
	case ResamplerSinc:
		out, err = resampleSinc(buf.Channel(0), buf.SampleRate(), to)
	default:
		return nil, fmt.Errorf("audio: unknown resampler %q", method)
	}
	if err != nil {
		return nil, err
	}
	return newBufferNoCopy(to, fitLen(out, want)), nil
}

// fitLen 尾部补零或截断到 n
func fitLen(s []float64, n int) []float64 {
	if len(s) >= n {
		return s[:n]
	}
	return append(s, make([]float64, n-len(s))...)
}

func resampleLagrange(samples []float64, from, to, quality int) []float64 {
	if quality <= 0 {
		quality = DefaultResampleQuality
	}
	src := &monoStreamer{samples: samples}
	r := beep.Resample(quality, beep.SampleRate(from), beep.SampleRate(to), src)

	out := make([]float64, 0, OutputLen(len(samples), from, to)+quality)
	frames := make([][2]float64, streamChunk)
	for {
		n, ok := r.Stream(frames)
		for _, fr := range frames[:n] {
			out = append(out, fr[0])
		}
		if !ok {
			break
		}
	}
	return out
}

func resampleSinc(samples []float64, from, to int) ([]float64, error) {
	r, err := resampling.New(&resampling.Config{
		InputRate:  float64(from),
		OutputRate: float64(to),
		Channels:   1,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return nil, fmt.Errorf("audio: create sinc resampler: %w", err)
	}
	out, err := r.Process(samples)
	if err != nil {
		return nil, fmt.Errorf("audio: sinc resample: %w", err)
	}
	return out, nil
}

// monoStreamer 把单声道采样包装成 beep.Streamer，左右声道相同
type monoStreamer struct {
	samples []float64
	pos     int
}

func (m *monoStreamer) Stream(frames [][2]float64) (int, bool) {
	if m.pos >= len(m.samples) {
		return 0, false
	}
	n := copy2(frames, m.samples[m.pos:])
	m.pos += n
	return n, true
}

func (m *monoStreamer) Err() error { return nil }

func copy2(dst [][2]float64, src []float64) int {
	n := min(len(dst), len(src))
	for i := range n {
		dst[i][0] = src[i]
		dst[i][1] = src[i]
	}
	return n
}

package audio

import (
	"math"
	"slices"
)

// AnalyzerOptions 静音分析参数，时间单位均为秒
type AnalyzerOptions struct {
	FrameLength   float64 `yaml:"frame_length"`
	FrameHop      float64 `yaml:"frame_hop"`
	Percentile    float64 `yaml:"percentile"`
	MinThreshold  float64 `yaml:"min_threshold"`
	MaxThreshold  float64 `yaml:"max_threshold"`
	OnsetFactor   float64 `yaml:"onset_factor"`
	OnsetCeiling  float64 `yaml:"onset_ceiling"`
	OnsetMinRun   float64 `yaml:"onset_min_run"`
	OnsetCap      float64 `yaml:"onset_cap"`
	SilenceMinRun float64 `yaml:"silence_min_run"`
	EdgeMargin    float64 `yaml:"edge_margin"`
}

func DefaultAnalyzerOptions() AnalyzerOptions {
	return AnalyzerOptions{
		FrameLength:   0.020,
		FrameHop:      0.010,
		Percentile:    0.35,
		MinThreshold:  0.005,
		MaxThreshold:  0.03,
		OnsetFactor:   1.6,
		OnsetCeiling:  0.08,
		OnsetMinRun:   0.120,
		OnsetCap:      0.6,
		SilenceMinRun: 0.180,
		EdgeMargin:    0.15,
	}
}

// SilenceProfile 一段合成语音的静音分析结果
type SilenceProfile struct {
	Duration   float64   `json:"duration"`   // 时长（秒）
	Boundaries []float64 `json:"boundaries"` // 静音段中点，严格递增，距两端均大于 EdgeMargin
	Onset      float64   `json:"onset"`      // 起始静音长度，不超过 OnsetCap
	Threshold  float64   `json:"threshold"`  // 实际使用的静音阈值
}

// Analyzer 能量法静音检测，无状态
type Analyzer struct {
	opts AnalyzerOptions
}

func NewAnalyzer(opts AnalyzerOptions) *Analyzer {
	return &Analyzer{opts: opts}
}

// Analyze 只使用第一个声道
func (a *Analyzer) Analyze(buf *Buffer) SilenceProfile {
	profile := SilenceProfile{Boundaries: []float64{}}
	if buf == nil || buf.Len() == 0 {
		return profile
	}
	profile.Duration = buf.Duration()

	sr := float64(buf.SampleRate())
	frameLen := int(math.Round(a.opts.FrameLength * sr))
	hopLen := int(math.Round(a.opts.FrameHop * sr))
	if frameLen <= 0 || hopLen <= 0 {
		return profile
	}
	rms := frameRMS(buf.Channel(0), frameLen, hopLen)
	if len(rms) == 0 {
		return profile
	}

	hop := float64(hopLen) / sr
	frameDur := float64(frameLen) / sr

	profile.Threshold = a.threshold(rms)

	onsetLevel := min(a.opts.OnsetCeiling, a.opts.OnsetFactor*profile.Threshold)
	if start, ok := firstRun(rms, framesFor(a.opts.OnsetMinRun, hop), func(v float64) bool { return v > onsetLevel }); ok {
		profile.Onset = min(float64(start)*hop, a.opts.OnsetCap)
	}

	minSilent := framesFor(a.opts.SilenceMinRun, hop)
	lo, hi := a.opts.EdgeMargin, profile.Duration-a.opts.EdgeMargin
	for _, r := range runs(rms, func(v float64) bool { return v < profile.Threshold }) {
		if r.end-r.start+1 < minSilent {
			continue
		}
		mid := (float64(r.start)*hop + float64(r.end)*hop + frameDur) / 2
		if mid > lo && mid < hi {
			profile.Boundaries = append(profile.Boundaries, mid)
		}
	}
	return profile
}

// threshold 帧能量的百分位数，截断到 [MinThreshold, MaxThreshold]
func (a *Analyzer) threshold(rms []float64) float64 {
	sorted := slices.Clone(rms)
	slices.Sort(sorted)
	idx := int(math.Floor(a.opts.Percentile * float64(len(sorted)-1)))
	idx = max(0, min(idx, len(sorted)-1))
	return max(a.opts.MinThreshold, min(sorted[idx], a.opts.MaxThreshold))
}

func framesFor(seconds, hop float64) int {
	return max(1, int(math.Round(seconds/hop)))
}

// frameRMS 计算每帧均方根，不足一帧的尾部丢弃
func frameRMS(samples []float64, frameLen, hopLen int) []float64 {
	if len(samples) < frameLen {
		return nil
	}
	n := 1 + (len(samples)-frameLen)/hopLen
	out := make([]float64, n)
	for i := range n {
		var sum float64
		for _, s := range samples[i*hopLen : i*hopLen+frameLen] {
			sum += s * s
		}
		out[i] = math.Sqrt(sum / float64(frameLen))
	}
	return out
}

type frameRun struct{ start, end int } // 闭区间

func runs(values []float64, pred func(float64) bool) []frameRun {
	var out []frameRun
	start := -1
	for i, v := range values {
		switch {
		case pred(v) && start < 0:
			start = i
		case !pred(v) && start >= 0:
			out = append(out, frameRun{start, i - 1})
			start = -1
		}
	}
	if start >= 0 {
		out = append(out, frameRun{start, len(values) - 1})
	}
	return out
}

func firstRun(values []float64, minLen int, pred func(float64) bool) (int, bool) {
	for _, r := range runs(values, pred) {
		if r.end-r.start+1 >= minLen {
			return r.start, true
		}
	}
	return 0, false
}

package subtitle

import (
	"math"
	"slices"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"voicereply/internal/audio"
)

// Method 字幕时间的来源
type Method int

const (
	MethodEqualDivision Method = iota
	MethodFitted
	MethodWeighted
	MethodServer
)

func (m Method) String() string {
	switch m {
	case MethodFitted:
		return "fitted"
	case MethodWeighted:
		return "weighted"
	case MethodServer:
		return "server"
	default:
		return "equal_division"
	}
}

// Alignment 对齐结果
type Alignment struct {
	Cues   []Cue
	Method Method
}

// Align 为已分句的文本分配时间
// profile 为 nil 或边界数不足 n-1 时直接等分，不会尝试按静音对齐
// duration <= 0 时取 profile 的时长，再不行按字数估算
func (a *Aligner) Align(chunks []string, profile *audio.SilenceProfile, duration float64) Alignment {
	chunks = nonEmpty(chunks)
	if len(chunks) == 0 {
		return Alignment{Cues: []Cue{}, Method: MethodEqualDivision}
	}
	if duration <= 0 {
		if profile != nil && profile.Duration > 0 {
			duration = profile.Duration
		} else {
			duration = EstimateDuration(joinChunks(chunks))
		}
	}
	chunks = mergeChunks(chunks, duration)
	n := len(chunks)

	if profile != nil && len(profile.Boundaries) >= n-1 {
		onsetShift := min(profile.Onset, MaxOnsetShift)
		boundaries := slices.Sorted(slices.Values(profile.Boundaries))
		cues := fitted(chunks, boundaries[:n-1], duration, onsetShift)
		if Valid(cues) == nil {
			return Alignment{Cues: enforce(cues), Method: MethodFitted}
		}
		logrus.WithFields(logrus.Fields{
			"chunks":     n,
			"boundaries": len(profile.Boundaries),
		}).Debug("subtitle: fitted cues rejected, dividing equally")

		cues, method := a.divide(chunks, duration)
		if n >= 2 {
			cues = shift(cues, onsetShift)
		}
		return Alignment{Cues: enforce(cues), Method: method}
	}

	cues, method := a.divide(chunks, duration)
	return Alignment{Cues: enforce(cues), Method: method}
}

// fitted 用前 n-1 个静音边界切分 [0, duration]
func fitted(chunks []string, cuts []float64, duration, onsetShift float64) []Cue {
	cues := make([]Cue, len(chunks))
	start := 0.0
	for i, text := range chunks {
		end := duration
		if i < len(cuts) {
			end = cuts[i]
		}
		s := max(0, start-onsetShift)
		e := max(end-onsetShift, s+MinFittedSpan)
		cues[i] = Cue{Text: text, Start: s, End: e}
		start = end
	}
	return cues
}

func (a *Aligner) divide(chunks []string, duration float64) ([]Cue, Method) {
	if a.opts.Fallback == FallbackWeighted {
		return weightedDivision(chunks, duration), MethodWeighted
	}
	return equalDivision(chunks, duration), MethodEqualDivision
}

// equalDivision 按片段顺序等分 [0, duration]
func equalDivision(chunks []string, duration float64) []Cue {
	n := float64(len(chunks))
	cues := make([]Cue, len(chunks))
	for i, text := range chunks {
		cues[i] = Cue{
			Text:  text,
			Start: duration * float64(i) / n,
			End:   duration * float64(i+1) / n,
		}
	}
	return cues
}

// weightedDivision 按字数比例分配时长
func weightedDivision(chunks []string, duration float64) []Cue {
	total := 0
	for _, c := range chunks {
		total += max(1, utf8.RuneCountInString(c))
	}
	cues := make([]Cue, len(chunks))
	acc := 0
	for i, text := range chunks {
		start := duration * float64(acc) / float64(total)
		acc += max(1, utf8.RuneCountInString(text))
		cues[i] = Cue{Text: text, Start: start, End: duration * float64(acc) / float64(total)}
	}
	return cues
}

// mergeChunks 片段过多时相邻合并，使每段平均时长不少于 MinCueDuration
func mergeChunks(chunks []string, duration float64) []string {
	n := len(chunks)
	if n <= 1 || duration/float64(n) >= MinCueDuration {
		return chunks
	}
	m := max(1, int(math.Floor(duration/MinCueDuration)))
	out := make([]string, 0, m)
	for g := range m {
		lo, hi := g*n/m, (g+1)*n/m
		out = append(out, joinChunks(chunks[lo:hi]))
	}
	return out
}

func nonEmpty(chunks []string) []string {
	out := make([]string, 0, len(chunks))
	for _, c := range chunks {
		if c != "" {
			out = append(out, c)
		}
	}
	return out
}

package subtitle

import (
	"fmt"
	"math"
	"sort"
	"unicode/utf8"
)

const (
	// MinCueDuration 每条字幕的最短显示时长（秒）
	MinCueDuration = 0.25
	// MinFittedSpan 对齐后单元格的最小跨度
	MinFittedSpan = 0.2
	// MaxOnsetShift 起始静音补偿的上限
	MaxOnsetShift = 0.15
	// SecondsPerRune 没有音频时长时按字数估算
	SecondsPerRune = 0.08
)

// Cue 一条字幕，JSON 字段与服务端一致
type Cue struct {
	Text  string  `json:"text"`
	Start float64 `json:"start_time"`
	End   float64 `json:"end_time"`
}

func (c Cue) Duration() float64 { return c.End - c.Start }

func (c Cue) String() string {
	return fmt.Sprintf("[%.3f-%.3f] %s", c.Start, c.End, c.Text)
}

// EstimateDuration 按字数估算朗读时长
func EstimateDuration(text string) float64 {
	return float64(utf8.RuneCountInString(text)) * SecondsPerRune
}

// Valid 检查字幕列表是否满足：开始时间不递减、每条不短于 MinCueDuration、相邻不重叠
func Valid(cues []Cue) error {
	for i, c := range cues {
		if c.Start < 0 || math.IsNaN(c.Start) || math.IsNaN(c.End) {
			return fmt.Errorf("subtitle: cue %d has invalid start %v", i, c.Start)
		}
		if c.Duration() < MinCueDuration-epsilon {
			return fmt.Errorf("subtitle: cue %d lasts %.3fs", i, c.Duration())
		}
		if i > 0 && c.Start < cues[i-1].End-epsilon {
			return fmt.Errorf("subtitle: cue %d overlaps previous", i)
		}
	}
	return nil
}

// epsilon 浮点比较容差
const epsilon = 1e-9

// enforce 保证不重叠且满足最短时长，原地修改
func enforce(cues []Cue) []Cue {
	for i := range cues {
		if cues[i].Start < 0 {
			cues[i].Start = 0
		}
		if i > 0 && cues[i].Start < cues[i-1].End {
			cues[i].Start = cues[i-1].End
		}
		if cues[i].End < cues[i].Start+MinCueDuration {
			cues[i].End = cues[i].Start + MinCueDuration
		}
	}
	return cues
}

// shift 所有字幕整体提前 d 秒，开始时间不小于 0
func shift(cues []Cue, d float64) []Cue {
	if d <= 0 {
		return cues
	}
	for i := range cues {
		cues[i].Start = max(0, cues[i].Start-d)
		cues[i].End = max(0, cues[i].End-d)
	}
	return cues
}

func sortByStart(cues []Cue) {
	sort.SliceStable(cues, func(i, j int) bool { return cues[i].Start < cues[j].Start })
}

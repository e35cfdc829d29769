package subtitle

import (
	"math"
	"strings"
)

// Finalize 整理服务端下发的字幕：清理文本、丢弃空条目、按开始时间排序，
// 再修正重叠和过短的条目。缺失或倒置的结束时间用下一条的开始或 duration 补齐
func (a *Aligner) Finalize(cues []Cue, duration float64) []Cue {
	out := make([]Cue, 0, len(cues))
	for _, c := range cues {
		c.Text = a.Sanitize(c.Text)
		if c.Text == "" || math.IsNaN(c.Start) || math.IsInf(c.Start, 0) {
			continue
		}
		if math.IsNaN(c.End) || math.IsInf(c.End, 0) {
			c.End = c.Start
		}
		out = append(out, c)
	}
	sortByStart(out)
	for i := range out {
		if out[i].End > out[i].Start {
			continue
		}
		switch {
		case i+1 < len(out) && out[i+1].Start > out[i].Start:
			out[i].End = out[i+1].Start
		case duration > out[i].Start:
			out[i].End = duration
		}
	}
	return enforce(out)
}

// Weighted 按字符数比例分配整段文本的时长，标点也占用时长但不显示
func (a *Aligner) Weighted(text string, duration float64) []Cue {
	text = strings.TrimSpace(a.plain(text))
	if text == "" {
		return []Cue{}
	}

	type piece struct {
		display string
		units   int
	}
	var (
		pieces []piece
		buf    strings.Builder
		units  int
	)
	flush := func() {
		pieces = append(pieces, piece{display: strings.TrimSpace(buf.String()), units: max(1, units)})
		buf.Reset()
		units = 0
	}
	for _, r := range text {
		units++
		if isBreak(r) {
			flush()
			continue
		}
		buf.WriteRune(r)
	}
	if units > 0 {
		flush()
	}

	total := 0
	for _, p := range pieces {
		total += p.units
	}
	cues := make([]Cue, 0, len(pieces))
	t := 0.0
	for _, p := range pieces {
		end := t + duration*float64(p.units)/float64(total)
		if p.display != "" {
			cues = append(cues, Cue{Text: p.display, Start: round3(t), End: round3(end)})
		}
		t = end
	}
	return enforce(cues)
}

func isBreak(r rune) bool {
	return r == ' ' || r == '　' || strings.ContainsRune(displayPunct, r)
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

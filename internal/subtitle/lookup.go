package subtitle

// PositionEpsilon 播放位置匹配字幕时的容差（秒）
const PositionEpsilon = 0.05

// CueAt 返回 [Start-eps, End+eps] 包含 t 的最后一条字幕
// 相邻字幕在边界附近同时匹配时取后一条，保证播放推进时字幕不回退
func CueAt(cues []Cue, t, eps float64) (Cue, bool) {
	for i := len(cues) - 1; i >= 0; i-- {
		c := cues[i]
		if t >= c.Start-eps && t <= c.End+eps {
			return c, true
		}
	}
	return Cue{}, false
}

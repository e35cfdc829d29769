package subtitle

import (
	"math"
	"reflect"
	"testing"

	"voicereply/internal/audio"
)

func near(a, b float64) bool { return math.Abs(a-b) < 1e-6 }

func cuesEqual(t *testing.T, got, want []Cue) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("cue count got=%d want=%d (%v)", len(got), len(want), got)
	}
	for i := range got {
		if got[i].Text != want[i].Text || !near(got[i].Start, want[i].Start) || !near(got[i].End, want[i].End) {
			t.Fatalf("cue %d got=%v want=%v", i, got[i], want[i])
		}
	}
}

func TestSegment(t *testing.T) {
	a := NewAligner(DefaultOptions())

	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{name: "comma", raw: "你好，欢迎使用数字嘉庚", want: []string{"你好", "欢迎使用数字嘉庚"}},
		{name: "role label", raw: "数字嘉庚：你好，欢迎", want: []string{"你好", "欢迎"}},
		{name: "ascii role label", raw: "Assistant: 好的。明白了", want: []string{"好的", "明白了"}},
		{name: "whitespace tokens", raw: "Hello there my friend.", want: []string{"Hello", "there", "my", "friend"}},
		{name: "escapes", raw: `AI: line one\nline two`, want: []string{"line", "one", "line", "two"}},
		{name: "windows", raw: "今天天气很好我们一起去公园散步吧好不好", want: []string{"今天天气很好我们一起去公", "园散步吧好不好"}},
		{name: "single sentence", raw: "你好。", want: []string{"你好"}},
		{name: "trailing remainder", raw: "第一句。第二句！还有", want: []string{"第一句", "第二句", "还有"}},
		{name: "empty", raw: "  ", want: nil},
		{name: "punctuation only", raw: "，。！", want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := a.Segment(tt.raw)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("got=%q want=%q", got, tt.want)
			}
		})
	}
}

func TestSanitize(t *testing.T) {
	a := NewAligner(DefaultOptions())
	tests := map[string]string{
		"陈嘉庚：诚毅！":       "诚毅",
		`Bot: \"quoted\"`: "quoted",
		"嘉庚 : 你好。":       "你好",
		"AIR：未匹配":        "AIR未匹配",
		"【教育】兴国":         "教育兴国",
	}
	for in, want := range tests {
		if got := a.Sanitize(in); got != want {
			t.Fatalf("Sanitize(%q) got=%q want=%q", in, got, want)
		}
	}
}

func TestAlignScenarios(t *testing.T) {
	a := NewAligner(DefaultOptions())
	chunks := a.Segment("你好，欢迎使用数字嘉庚")

	tests := []struct {
		name    string
		profile *audio.SilenceProfile
		method  Method
		want    []Cue
	}{
		{
			name:    "fitted to silence boundaries",
			profile: &audio.SilenceProfile{Duration: 3.2, Boundaries: []float64{1.05, 2.10}},
			method:  MethodFitted,
			want:    []Cue{{"你好", 0, 1.05}, {"欢迎使用数字嘉庚", 1.05, 3.2}},
		},
		{
			name:    "fitted with onset shift",
			profile: &audio.SilenceProfile{Duration: 3.2, Boundaries: []float64{1.05, 2.10}, Onset: 0.4},
			method:  MethodFitted,
			want:    []Cue{{"你好", 0, 0.90}, {"欢迎使用数字嘉庚", 0.90, 3.05}},
		},
		{
			name:    "no boundaries",
			profile: &audio.SilenceProfile{Duration: 3.2, Boundaries: []float64{}, Onset: 0.1},
			method:  MethodEqualDivision,
			want:    []Cue{{"你好", 0, 1.6}, {"欢迎使用数字嘉庚", 1.6, 3.2}},
		},
		{
			name:    "no profile",
			profile: nil,
			method:  MethodEqualDivision,
			want:    []Cue{{"你好", 0, 1.6}, {"欢迎使用数字嘉庚", 1.6, 3.2}},
		},
		{
			name:    "sanity check fails",
			profile: &audio.SilenceProfile{Duration: 3.2, Boundaries: []float64{0.1}, Onset: 0.3},
			method:  MethodEqualDivision,
			want:    []Cue{{"你好", 0, 1.45}, {"欢迎使用数字嘉庚", 1.45, 3.05}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := a.Align(chunks, tt.profile, 3.2)
			if got.Method != tt.method {
				t.Fatalf("method got=%v want=%v", got.Method, tt.method)
			}
			cuesEqual(t, got.Cues, tt.want)
			if err := Valid(got.Cues); err != nil {
				t.Fatal(err)
			}
		})
	}
}

func TestAlignUnorderedBoundaries(t *testing.T) {
	a := NewAligner(DefaultOptions())
	profile := &audio.SilenceProfile{Duration: 3.2, Boundaries: []float64{2.10, 1.05}}

	got := a.Align([]string{"你好", "欢迎使用", "数字嘉庚"}, profile, 3.2)
	if got.Method != MethodFitted {
		t.Fatalf("method got=%v want=%v", got.Method, MethodFitted)
	}
	cuesEqual(t, got.Cues, []Cue{{"你好", 0, 1.05}, {"欢迎使用", 1.05, 2.10}, {"数字嘉庚", 2.10, 3.2}})
	if profile.Boundaries[0] != 2.10 {
		t.Fatalf("caller boundaries modified: %v", profile.Boundaries)
	}
}

// 静音分析与对齐串联：合成一段 3.2 秒、在 1.05s 和 2.10s 附近有停顿的音频
func TestAlignWithAnalyzedClip(t *testing.T) {
	const rate = 16000
	samples := make([]float64, int(3.2*rate))
	for i := range samples {
		sec := float64(i) / rate
		if (sec >= 0.95 && sec < 1.15) || (sec >= 2.0 && sec < 2.2) {
			continue
		}
		samples[i] = 0.5 * math.Sin(2*math.Pi*220*sec)
	}
	buf, err := audio.NewBuffer(rate, samples)
	if err != nil {
		t.Fatal(err)
	}
	profile := audio.NewAnalyzer(audio.DefaultAnalyzerOptions()).Analyze(buf)
	if len(profile.Boundaries) != 2 {
		t.Fatalf("boundaries got=%v", profile.Boundaries)
	}

	a := NewAligner(DefaultOptions())
	got := a.Align(a.Segment("你好，欢迎使用数字嘉庚"), &profile, buf.Duration())
	if got.Method != MethodFitted {
		t.Fatalf("method got=%v", got.Method)
	}
	if !near(got.Cues[0].Start, 0) || math.Abs(got.Cues[0].End-1.05) > 0.02 || !near(got.Cues[1].End, 3.2) {
		t.Fatalf("unexpected cues %v", got.Cues)
	}
}

func TestAlignFallbackSafety(t *testing.T) {
	a := NewAligner(DefaultOptions())
	chunks := []string{"一", "二", "三", "四"}
	// 4 个片段需要至少 3 个边界，只给 2 个，且这 2 个边界本身看起来合理
	profile := &audio.SilenceProfile{Duration: 4, Boundaries: []float64{1, 2}, Onset: 0.1}
	got := a.Align(chunks, profile, 4)
	if got.Method != MethodEqualDivision {
		t.Fatalf("method got=%v", got.Method)
	}
	cuesEqual(t, got.Cues, []Cue{{"一", 0, 1}, {"二", 1, 2}, {"三", 2, 3}, {"四", 3, 4}})
}

func TestAlignInvariant(t *testing.T) {
	tests := []struct {
		name     string
		opts     Options
		chunks   []string
		profile  *audio.SilenceProfile
		duration float64
	}{
		{name: "too many chunks", chunks: []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"}, duration: 1},
		{name: "tiny clip", chunks: []string{"一", "二"}, duration: 0.1},
		{name: "unknown duration", chunks: []string{"你好", "世界"}},
		{name: "weighted", opts: Options{Fallback: FallbackWeighted}, chunks: []string{"你", "欢迎使用数字嘉庚"}, duration: 2},
		{
			name:     "boundaries past the end",
			chunks:   []string{"一", "二", "三"},
			profile:  &audio.SilenceProfile{Duration: 2, Boundaries: []float64{1.9, 2.5}},
			duration: 2,
		},
		{
			name:     "crowded boundaries",
			chunks:   []string{"一", "二", "三"},
			profile:  &audio.SilenceProfile{Duration: 2, Boundaries: []float64{0.3, 0.4}, Onset: 0.6},
			duration: 2,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewAligner(tt.opts).Align(tt.chunks, tt.profile, tt.duration)
			if len(got.Cues) == 0 {
				t.Fatalf("no cues")
			}
			if err := Valid(got.Cues); err != nil {
				t.Fatalf("%v: %v", err, got.Cues)
			}
		})
	}

	merged := NewAligner(DefaultOptions()).Align([]string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"}, nil, 1)
	if len(merged.Cues) != 4 || merged.Cues[0].Text != "a b" {
		t.Fatalf("unexpected merge %v", merged.Cues)
	}

	unknown := NewAligner(DefaultOptions()).Align([]string{"你好", "世界"}, nil, 0)
	if len(unknown.Cues) != 1 || !near(unknown.Cues[0].End, 4*SecondsPerRune) {
		t.Fatalf("estimated duration not used: %v", unknown.Cues)
	}
}

func TestFinalize(t *testing.T) {
	a := NewAligner(DefaultOptions())
	in := []Cue{
		{Text: "欢迎使用。", Start: 1.0, End: 1.1},
		{Text: "数字嘉庚：你好，", Start: 0, End: 1.2},
		{Text: "。", Start: 1.5, End: 2},
		{Text: "再见", Start: 2.0, End: 0},
	}
	got := a.Finalize(in, 3)
	cuesEqual(t, got, []Cue{{"你好", 0, 1.2}, {"欢迎使用", 1.2, 1.45}, {"再见", 2.0, 3}})
	if err := Valid(got); err != nil {
		t.Fatal(err)
	}
	if in[1].Text != "数字嘉庚：你好，" {
		t.Fatalf("input mutated")
	}
}

func TestWeighted(t *testing.T) {
	a := NewAligner(DefaultOptions())
	got := a.Weighted("你好，欢迎使用数字嘉庚", 3.3)
	cuesEqual(t, got, []Cue{{"你好", 0, 0.9}, {"欢迎使用数字嘉庚", 0.9, 3.3}})

	if got := a.Weighted("", 1); len(got) != 0 {
		t.Fatalf("expected no cues, got %v", got)
	}
}

func TestCueAt(t *testing.T) {
	cues := []Cue{{"一", 0, 1}, {"二", 1, 2}, {"三", 2.5, 3}}
	tests := []struct {
		t    float64
		want string
		ok   bool
	}{
		{0, "一", true},
		{0.5, "一", true},
		{1.0, "二", true},
		{0.97, "二", true},
		{2.04, "二", true},
		{2.2, "", false},
		{2.46, "三", true},
		{3.04, "三", true},
		{3.2, "", false},
		{-0.04, "一", true},
	}
	for _, tt := range tests {
		c, ok := CueAt(cues, tt.t, PositionEpsilon)
		if ok != tt.ok || c.Text != tt.want {
			t.Fatalf("CueAt(%v) got=(%q,%v) want=(%q,%v)", tt.t, c.Text, ok, tt.want, tt.ok)
		}
	}
}

func TestEstimateDuration(t *testing.T) {
	if got := EstimateDuration("你好世界"); !near(got, 0.32) {
		t.Fatalf("got=%v", got)
	}
}

package subtitle

import (
	"reflect"
	"testing"
)

func TestMarkupStrip(t *testing.T) {
	tests := []struct {
		name string
		keep []string
		in   string
		want string
	}{
		{name: "plain", keep: DefaultMarkupKeep, in: "你好，世界", want: "你好，世界"},
		{name: "kept wrapper", keep: DefaultMarkupKeep, in: `<speak>你好，<break time="500ms"/>欢迎</speak>`, want: "你好，欢迎"},
		{name: "attributes", keep: DefaultMarkupKeep, in: `<emotion type="happy" level="2">太好了</emotion>！`, want: "太好了！"},
		{name: "dropped content", keep: DefaultMarkupKeep, in: "<think>用户在问候</think>你好", want: "你好"},
		{name: "case insensitive", keep: DefaultMarkupKeep, in: "<THINK>x</think>好<Speak>的</SPEAK>", want: "好的"},
		{name: "nested drop", keep: DefaultMarkupKeep, in: `<tool name="time"><arg>now</arg></tool>现在三点`, want: "现在三点"},
		{name: "unterminated", keep: DefaultMarkupKeep, in: `<tool name="time">现在三点`, want: "现在三点"},
		{name: "stray end tag", keep: DefaultMarkupKeep, in: "</p>好", want: "好"},
		{name: "not a tag", keep: DefaultMarkupKeep, in: "1 < 2 且 3 > 2", want: "1 < 2 且 3 > 2"},
		{name: "nothing kept", keep: nil, in: "<speak>你好</speak>再见", want: "再见"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := newMarkup(tt.keep).strip(tt.in); got != tt.want {
				t.Fatalf("got=%q want=%q", got, tt.want)
			}
		})
	}
}

func TestSegmentWithMarkup(t *testing.T) {
	a := NewAligner(DefaultOptions())
	got := a.Segment("<speak>嘉庚：你好，<break/>欢迎</speak>")
	if want := []string{"你好", "欢迎"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("got=%q want=%q", got, want)
	}
	if got := a.Sanitize("<think>…</think>陈嘉庚：诚毅！"); got != "诚毅" {
		t.Fatalf("Sanitize got=%q", got)
	}
}

package subtitle

import (
	"regexp"
	"strings"
)

// DefaultMarkupKeep 语音合成常用的包裹标签，正文需要显示
var DefaultMarkupKeep = []string{"speak", "say", "emotion", "prosody", "emphasis"}

var (
	startTagRe = regexp.MustCompile(`^<([a-zA-Z][a-zA-Z0-9_-]*)([^<>]*?)(/?)>`)
	endTagRe   = regexp.MustCompile(`^</([a-zA-Z][a-zA-Z0-9_-]*)\s*>`)
)

// markup 去掉回复文本中的标签
// keep 中的标签只去掉标签本身；其他成对标签（如 <think>、工具调用）连同正文一起去掉；
// 自闭合标签和落单的结束标签直接去掉；不构成标签的 '<' 原样保留
type markup struct {
	keep map[string]bool
}

func newMarkup(keep []string) markup {
	m := markup{keep: make(map[string]bool, len(keep))}
	for _, name := range keep {
		m.keep[strings.ToLower(name)] = true
	}
	return m
}

func (m markup) strip(s string) string {
	if !strings.Contains(s, "<") {
		return s
	}
	var b strings.Builder
	for {
		i := strings.Index(s, "<")
		if i == -1 {
			b.WriteString(s)
			return b.String()
		}
		b.WriteString(s[:i])
		s = s[i:]

		if e := endTagRe.FindString(s); e != "" {
			s = s[len(e):]
			continue
		}
		t := startTagRe.FindStringSubmatch(s)
		if t == nil {
			b.WriteByte('<')
			s = s[1:]
			continue
		}
		s = s[len(t[0]):]
		name := strings.ToLower(t[1])
		if t[3] == "/" || m.keep[name] {
			continue
		}
		// 未保留的标签：跳过到对应的结束标签，找不到时只去掉开始标签
		if j, n := indexEndTag(s, name); j != -1 {
			s = s[j+n:]
		}
	}
}

// indexEndTag 查找 </name>，返回位置和长度，忽略大小写
func indexEndTag(s, name string) (int, int) {
	for off := 0; ; {
		i := strings.Index(s[off:], "</")
		if i == -1 {
			return -1, 0
		}
		off += i
		if t := endTagRe.FindStringSubmatch(s[off:]); t != nil && strings.EqualFold(t[1], name) {
			return off, len(t[0])
		}
		off += 2
	}
}

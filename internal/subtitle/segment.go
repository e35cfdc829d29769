package subtitle

import (
	"strings"
	"unicode"
)

// 分句用的标点
const splitPunct = "，,。.!！?？；;、：:…"

// 显示时去掉的标点
const displayPunct = splitPunct + "（）()【】[]\"'“”‘’《》<>—-~～·"

// DefaultRolePrefixes 回复开头常见的角色标签
var DefaultRolePrefixes = []string{"数字嘉庚", "陈嘉庚", "嘉庚", "Assistant", "AI", "助手", "Bot"}

// Options 分句和对齐参数
type Options struct {
	WindowRunes  int      `yaml:"window_runes"`
	RolePrefixes []string `yaml:"role_prefixes"`
	Fallback     string   `yaml:"fallback"` // equal | weighted
	// MarkupKeep 保留正文的标签，其他成对标签连同正文一起去掉
	MarkupKeep []string `yaml:"markup_keep"`
}

const (
	FallbackEqual    = "equal"
	FallbackWeighted = "weighted"
)

func DefaultOptions() Options {
	return Options{
		WindowRunes:  12,
		RolePrefixes: append([]string(nil), DefaultRolePrefixes...),
		Fallback:     FallbackEqual,
		MarkupKeep:   append([]string(nil), DefaultMarkupKeep...),
	}
}

// Aligner 文本分句与字幕时间对齐，无状态，可并发使用
type Aligner struct {
	opts   Options
	markup markup
}

func NewAligner(opts Options) *Aligner {
	if opts.WindowRunes <= 0 {
		opts.WindowRunes = 12
	}
	if opts.Fallback == "" {
		opts.Fallback = FallbackEqual
	}
	return &Aligner{opts: opts, markup: newMarkup(opts.MarkupKeep)}
}

// Segment 把回复文本切成字幕片段
// 依次尝试：空白分词（至少 3 个词）、标点分句、定长窗口；得到 2 段以上即采用
func (a *Aligner) Segment(raw string) []string {
	text := a.plain(raw)
	if strings.TrimSpace(text) == "" {
		return nil
	}

	if tokens := strings.Fields(text); len(tokens) >= 3 {
		if chunks := a.clean(tokens); len(chunks) >= 2 {
			return chunks
		}
	}
	if chunks := a.clean(splitOnPunct(text)); len(chunks) >= 2 {
		return chunks
	}
	return windows(removePunct(text), a.opts.WindowRunes)
}

// Sanitize 显示前清理：角色标签、转义序列、标点
func (a *Aligner) Sanitize(text string) string {
	return strings.TrimSpace(removePunct(a.plain(text)))
}

// plain 去掉转义、标签和角色名，保留标点
func (a *Aligner) plain(text string) string {
	return a.stripRole(a.markup.strip(stripEscapes(text)))
}

func (a *Aligner) clean(parts []string) []string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(removePunct(p)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// stripRole 去掉开头的 "角色名:" 或 "角色名："
func (a *Aligner) stripRole(text string) string {
	t := strings.TrimSpace(text)
	for _, p := range a.opts.RolePrefixes {
		rest, ok := strings.CutPrefix(t, p)
		if !ok {
			continue
		}
		rest = strings.TrimLeft(rest, " ")
		if r, ok := strings.CutPrefix(rest, ":"); ok {
			return strings.TrimSpace(r)
		}
		if r, ok := strings.CutPrefix(rest, "："); ok {
			return strings.TrimSpace(r)
		}
	}
	return t
}

var escapeReplacer = strings.NewReplacer(
	`\n`, " ", `\t`, " ", `\r`, " ", `\"`, "", `\`, "",
	"\n", " ", "\t", " ", "\r", " ",
)

func stripEscapes(s string) string {
	return escapeReplacer.Replace(s)
}

func removePunct(s string) string {
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune(displayPunct, r) {
			return -1
		}
		return r
	}, s)
}

// splitOnPunct 在分句标点处切分，保留末尾没有标点的部分
func splitOnPunct(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return strings.ContainsRune(splitPunct, r)
	})
}

// windows 按固定字数切分
func windows(s string, size int) []string {
	runes := []rune(strings.TrimSpace(s))
	var out []string
	for i := 0; i < len(runes); i += size {
		w := strings.TrimSpace(string(runes[i:min(i+size, len(runes))]))
		if w != "" {
			out = append(out, w)
		}
	}
	return out
}

// joinChunks 合并片段，两侧都是字母或数字时用空格分隔
func joinChunks(parts []string) string {
	var b strings.Builder
	for i, p := range parts {
		if i > 0 && needsSpace(parts[i-1], p) {
			b.WriteByte(' ')
		}
		b.WriteString(p)
	}
	return b.String()
}

func needsSpace(left, right string) bool {
	l := []rune(left)
	r := []rune(right)
	if len(l) == 0 || len(r) == 0 {
		return false
	}
	isWord := func(c rune) bool {
		return c < unicode.MaxASCII && (unicode.IsLetter(c) || unicode.IsDigit(c))
	}
	return isWord(l[len(l)-1]) && isWord(r[0])
}

package audio

import "errors"

var (
	ErrInvalidSampleRate = errors.New("audio: invalid sample rate")
	ErrChannelMismatch   = errors.New("audio: channels have different lengths")
)

// Buffer 解码后的音频：采样率 + 每个声道的浮点采样（[-1, 1]）
// Buffer 不可变，所有变换都返回新的 Buffer
type Buffer struct {
	sampleRate int
	channels   [][]float64
}

// NewBuffer 拷贝传入的声道数据创建 Buffer
func NewBuffer(sampleRate int, channels ...[]float64) (*Buffer, error) {
	if sampleRate <= 0 {
		return nil, ErrInvalidSampleRate
	}
	if len(channels) == 0 {
		return nil, errors.New("audio: no channels")
	}
	n := len(channels[0])
	copied := make([][]float64, len(channels))
	for i, ch := range channels {
		if len(ch) != n {
			return nil, ErrChannelMismatch
		}
		copied[i] = append([]float64(nil), ch...)
	}
	return &Buffer{sampleRate: sampleRate, channels: copied}, nil
}

// newBufferNoCopy 包内使用，调用方保证之后不再修改 channels
func newBufferNoCopy(sampleRate int, channels ...[]float64) *Buffer {
	return &Buffer{sampleRate: sampleRate, channels: channels}
}

func (b *Buffer) SampleRate() int { return b.sampleRate }

func (b *Buffer) NumChannels() int { return len(b.channels) }

// Len 每个声道的采样数
func (b *Buffer) Len() int {
	if len(b.channels) == 0 {
		return 0
	}
	return len(b.channels[0])
}

// Duration 时长（秒）
func (b *Buffer) Duration() float64 {
	return float64(b.Len()) / float64(b.sampleRate)
}

// Channel 返回第 i 个声道的只读视图，调用方不得修改
func (b *Buffer) Channel(i int) []float64 {
	return b.channels[i]
}

// Mono 按采样点对所有声道取平均，单声道直接返回自身
func (b *Buffer) Mono() *Buffer {
	if len(b.channels) <= 1 {
		return b
	}
	n := b.Len()
	out := make([]float64, n)
	inv := 1 / float64(len(b.channels))
	for i := range n {
		var sum float64
		for _, ch := range b.channels {
			sum += ch[i]
		}
		out[i] = sum * inv
	}
	return newBufferNoCopy(b.sampleRate, out)
}

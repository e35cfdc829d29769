package playback

import (
	"context"
	"errors"
	"sync"

	"github.com/gopxl/beep"

	"voicereply/internal/audio"
)

var ErrStreamStopped = errors.New("stream stopped")

// Streamer 把解码后的片段音频作为 beep.Streamer 输出，支持取消和进度查询
type Streamer struct {
	format beep.Format
	buf    *audio.Buffer

	mu  sync.RWMutex
	pos int // 已输出的采样数

	// Context 用于取消（Stop 时取消）
	ctx    context.Context
	cancel context.CancelFunc
	err    error
}

func NewStreamer(buf *audio.Buffer) *Streamer {
	ctx, cancel := context.WithCancel(context.Background())
	return &Streamer{
		format: beep.Format{
			SampleRate:  beep.SampleRate(buf.SampleRate()),
			NumChannels: min(buf.NumChannels(), 2),
			Precision:   2,
		},
		buf:    buf,
		ctx:    ctx,
		cancel: cancel,
	}
}

func (s *Streamer) Format() beep.Format { return s.format }

func (s *Streamer) Stream(samples [][2]float64) (int, bool) {
	// 检查是否已取消（非阻塞检查）
	select {
	case <-s.ctx.Done():
		return 0, false
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	remain := s.buf.Len() - s.pos
	if remain <= 0 {
		return 0, false
	}
	n := min(len(samples), remain)
	left := s.buf.Channel(0)[s.pos : s.pos+n]
	right := left
	if s.buf.NumChannels() > 1 {
		right = s.buf.Channel(1)[s.pos : s.pos+n]
	}
	for i := range n {
		samples[i][0] = left[i]
		samples[i][1] = right[i]
	}
	s.pos += n
	return n, true
}

func (s *Streamer) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// Cancel 停止输出，之后 Stream 返回 (0, false)
func (s *Streamer) Cancel() {
	s.cancel()
	s.mu.Lock()
	if s.err == nil {
		s.err = ErrStreamStopped
	}
	s.mu.Unlock()
}

func (s *Streamer) Cancelled() bool {
	return s.ctx.Err() != nil
}

// Done 取消时关闭
func (s *Streamer) Done() <-chan struct{} {
	return s.ctx.Done()
}

// Position 当前播放位置（秒），按已输出的源采样数计算
func (s *Streamer) Position() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return float64(s.pos) / float64(s.format.SampleRate)
}

// Started 是否已经输出过采样
func (s *Streamer) Started() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pos > 0
}

// Remaining 尚未输出的时长（秒）
func (s *Streamer) Remaining() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return float64(s.buf.Len()-s.pos) / float64(s.format.SampleRate)
}

// Duration 总时长（秒）
func (s *Streamer) Duration() float64 {
	return s.buf.Duration()
}

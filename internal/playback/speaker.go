package playback

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/speaker"
	"github.com/sirupsen/logrus"
)

var ErrNoAudio = errors.New("speaker: segment has no audio")

const (
	// deviceBuffer 声卡缓冲时长
	deviceBuffer = time.Second / 10
	// defaultTick 没有配置进度间隔时的检查周期
	defaultTick = 50 * time.Millisecond
)

// SpeakerPlayer 通过 beep speaker 输出到本机声卡
type SpeakerPlayer struct {
	sampleRate beep.SampleRate
	interval   time.Duration
	quality    int

	streamQueue *StreamQueue

	once    sync.Once
	initErr error
}

// NewSpeakerPlayer 设备在第一次 Play 时初始化
func NewSpeakerPlayer(sampleRate int, positionInterval time.Duration) *SpeakerPlayer {
	return &SpeakerPlayer{
		sampleRate:  beep.SampleRate(sampleRate),
		interval:    positionInterval,
		quality:     4,
		streamQueue: NewStreamQueue(),
	}
}

func (p *SpeakerPlayer) init() error {
	p.once.Do(func() {
		if err := speaker.Init(p.sampleRate, p.sampleRate.N(deviceBuffer)); err != nil {
			p.initErr = fmt.Errorf("speaker: init at %dHz: %w", p.sampleRate, err)
			return
		}
		speaker.Play(p.streamQueue)
		logrus.Infof("speaker: initialized at %dHz", p.sampleRate)
	})
	return p.initErr
}

// handoffLead 片段剩余不足该时长时提前报告结束，下一段在设备取到本段结尾之前入队
func handoffLead(tick time.Duration) time.Duration {
	return deviceBuffer + 2*tick
}

// Play 把片段接到设备队列末尾。回调都在独立的 goroutine 中调用，
// 不会持有 speaker 的锁
// OnEnd 在片段即将播完时触发，此时队列接着 Play 的下一段排在本段尾部之后
func (p *SpeakerPlayer) Play(seg *Segment, cb Callbacks) (Handle, error) {
	if seg.Audio == nil || seg.Audio.Len() == 0 {
		return nil, ErrNoAudio
	}
	if err := p.init(); err != nil {
		return nil, err
	}

	src := NewStreamer(seg.Audio)
	var out beep.Streamer = src
	if sr := src.Format().SampleRate; sr != p.sampleRate {
		out = beep.Resample(p.quality, sr, p.sampleRate, src)
	}

	h := newSpeakerHandle(src, p.streamQueue, cb)
	out = beep.Seq(out, beep.Callback(func() {
		// 运行在 speaker 的锁内
		if src.Cancelled() {
			return
		}
		go h.complete()
	}))

	p.streamQueue.Push(out)
	tick := p.interval
	if tick <= 0 {
		tick = defaultTick
	}
	go h.watch(tick, handoffLead(tick))
	return h, nil
}

type speakerHandle struct {
	src   *Streamer
	queue *StreamQueue
	cb    Callbacks

	done     chan struct{}
	once     sync.Once
	doneOnce sync.Once
}

func newSpeakerHandle(src *Streamer, queue *StreamQueue, cb Callbacks) *speakerHandle {
	return &speakerHandle{src: src, queue: queue, cb: cb, done: make(chan struct{})}
}

// Stop 停止播放，不会触发 OnEnd。已提前交接、仍在输出尾部的上一段一并丢弃
func (h *speakerHandle) Stop() {
	speaker.Lock()
	h.src.Cancel()
	speaker.Unlock()
	if h.queue != nil {
		h.queue.Clear()
	}
	h.finish()
}

func (h *speakerHandle) finish() {
	h.doneOnce.Do(func() { close(h.done) })
}

// complete 报告结束，提前交接和 beep.Callback 两条路径只有第一次生效
func (h *speakerHandle) complete() {
	h.once.Do(func() {
		h.finish()
		if err := h.src.Err(); err != nil {
			if h.cb.OnError != nil {
				h.cb.OnError(err)
			}
			return
		}
		if h.cb.OnEnd != nil {
			h.cb.OnEnd()
		}
	})
}

// watch 片段开始输出后周期报告进度，剩余不足 lead 时提前交接
func (h *speakerHandle) watch(tick, lead time.Duration) {
	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	for {
		select {
		case <-h.done:
			return
		case <-ticker.C:
			if h.src.Cancelled() || !h.src.Started() {
				continue
			}
			if h.cb.OnPosition != nil {
				h.cb.OnPosition(h.src.Position())
			}
			if h.src.Remaining() <= lead.Seconds() {
				h.complete()
				return
			}
		}
	}
}

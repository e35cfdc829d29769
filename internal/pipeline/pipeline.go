package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"voicereply/internal/audio"
	"voicereply/internal/playback"
	"voicereply/internal/subtitle"
	"voicereply/internal/upstream"
)

// ErrCouldNotProcess 录音无法解码或转换，展示给用户的提示
var ErrCouldNotProcess = errors.New("could not process your recording")

// Normalizer 把录音转换为上传格式
type Normalizer interface {
	Normalize(input []byte) (audio.Canonical, error)
}

// Upstream 远端对话服务
type Upstream interface {
	Converse(ctx context.Context, req upstream.Request, clip audio.Canonical) (*upstream.EventStream, error)
}

// Fetcher 下载回复音频
type Fetcher interface {
	Fetch(ctx context.Context, locator string) ([]byte, error)
}

// Queue 回复片段播放队列
type Queue interface {
	BeginTurn() playback.SessionID
	Reset()
	Abort(id playback.SessionID) bool
	Enqueue(id playback.SessionID, segs ...*playback.Segment) error
}

type Options struct {
	// Concurrency 同时下载、解码的片段数
	Concurrency int
	Silence     audio.AnalyzerOptions
	Subtitle    subtitle.Options
}

func DefaultOptions() Options {
	return Options{
		Concurrency: 4,
		Silence:     audio.DefaultAnalyzerOptions(),
		Subtitle:    subtitle.DefaultOptions(),
	}
}

// Pipeline 一次对话轮次：录音 → 规范化 → 上传 → 片段下载解码对齐字幕 → 入队播放
// 新的轮次会取消仍在进行的上一轮
type Pipeline struct {
	normalizer Normalizer
	upstream   Upstream
	fetcher    Fetcher
	queue      Queue
	analyzer   *audio.Analyzer
	aligner    *subtitle.Aligner
	limit      int

	// 客户端会话，随 start 消息上送
	clientID string

	mu     sync.Mutex
	turn   uint64
	cancel context.CancelFunc
}

func New(n Normalizer, up Upstream, f Fetcher, q Queue, opts Options) *Pipeline {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	return &Pipeline{
		normalizer: n,
		upstream:   up,
		fetcher:    f,
		queue:      q,
		analyzer:   audio.NewAnalyzer(opts.Silence),
		aligner:    subtitle.NewAligner(opts.Subtitle),
		limit:      opts.Concurrency,
		clientID:   uuid.NewString(),
	}
}

// SubmitCapturedAudio 提交一段录音并处理服务端回复，所有片段入队后返回，播放在队列中继续
// 录音无法处理时返回包装了 ErrCouldNotProcess 的错误，队列保持 Idle
// 服务端没有任何回复时返回 *upstream.UpstreamError，队列回到 Idle
func (p *Pipeline) SubmitCapturedAudio(ctx context.Context, recording []byte) error {
	ctx, done := p.beginTurn(ctx)
	defer done()

	p.queue.Reset()

	clip, err := p.normalizer.Normalize(recording)
	if err != nil {
		logrus.Warnf("pipeline: normalize recording: %v", err)
		return fmt.Errorf("%w: %w", ErrCouldNotProcess, err)
	}

	t := &turn{
		Pipeline: p,
		session:  p.queue.BeginTurn(),
		id:       uuid.NewString(),
	}
	t.log = logrus.WithFields(logrus.Fields{"session": t.session, "turn": t.id})
	return t.run(ctx, clip)
}

// Reset 取消进行中的轮次并清空播放队列
func (p *Pipeline) Reset() {
	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.turn++
	p.mu.Unlock()
	p.queue.Reset()
}

func (p *Pipeline) beginTurn(parent context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancel(parent)
	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
	}
	p.turn++
	id := p.turn
	p.cancel = cancel
	p.mu.Unlock()

	return ctx, func() {
		p.mu.Lock()
		if p.turn == id {
			p.cancel = nil
		}
		p.mu.Unlock()
		cancel()
	}
}

// turn 一次轮次的执行状态
type turn struct {
	*Pipeline
	session playback.SessionID
	id      string
	log     *logrus.Entry
}

func (t *turn) run(ctx context.Context, clip audio.Canonical) error {
	stream, err := t.upstream.Converse(ctx, upstream.Request{
		SessionID: t.clientID,
		TurnID:    t.id,
	}, clip)
	if err != nil {
		return t.fail(ctx, err)
	}
	defer stream.Close()

	seq := newSequencer(t)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.limit)

	received := 0
	var streamErr error
loop:
	for {
		ev, err := stream.Read(ctx)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				streamErr = err
			}
			break
		}
		switch {
		case ev.HasAudio():
			received++
			slot := seq.reserve()
			g.Go(func() error {
				slot <- t.prepare(gctx, ev)
				return nil
			})
		case ev.Type == upstream.EventComplete:
			t.log.WithField("segments", ev.AllSegments).Debug("pipeline: reply complete")
		case ev.Type == upstream.EventError:
			streamErr = &upstream.UpstreamError{Op: "remote", Err: &upstream.RemoteError{Message: ev.Error}}
			break loop
		}
	}

	g.Wait()
	seq.close()
	<-seq.done

	if ctx.Err() != nil {
		// 被新的轮次或调用方取消，队列已不属于本轮
		return ctx.Err()
	}
	var remote *upstream.RemoteError
	switch {
	case errors.As(streamErr, &remote):
		return t.fail(ctx, streamErr)
	case received == 0 && streamErr != nil:
		return t.fail(ctx, streamErr)
	case received == 0:
		return t.fail(ctx, &upstream.UpstreamError{Op: "stream", Err: upstream.ErrNoSegments})
	case streamErr != nil:
		t.log.Warnf("pipeline: reply stream ended early after %d segments: %v", received, streamErr)
	}
	t.log.WithField("segments", received).Info("pipeline: turn complete")
	return nil
}

// fail 本轮没有可播放的回复，队列回到 Idle
func (t *turn) fail(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	t.queue.Abort(t.session)
	t.log.Errorf("pipeline: %v", err)
	var ue *upstream.UpstreamError
	if !errors.As(err, &ue) {
		err = &upstream.UpstreamError{Op: "stream", Err: err}
	}
	return err
}

// prepare 下载、解码并对齐字幕。音频不可用时仍返回片段，由队列按播放失败跳过
func (t *turn) prepare(ctx context.Context, ev upstream.Event) *playback.Segment {
	log := t.log.WithField("segment", ev.SegmentIndex)
	seg := &playback.Segment{
		Index:    ev.SegmentIndex,
		Locator:  ev.AudioURL,
		Text:     t.aligner.Sanitize(ev.Text),
		Duration: ev.Duration,
	}

	buf, err := t.load(ctx, ev.AudioURL)
	if ctx.Err() != nil {
		// 本轮已被取代，迟到的下载结果不入队
		return nil
	}
	if err != nil {
		log.Warnf("pipeline: segment audio unavailable: %v", err)
	} else {
		seg.Audio = buf
		seg.Duration = buf.Duration()
	}

	switch {
	case len(ev.Subtitles) > 0:
		seg.Cues = t.aligner.Finalize(ev.Subtitles, seg.Duration)
		log.WithFields(logrus.Fields{
			"cues":   len(seg.Cues),
			"method": subtitle.MethodServer,
		}).Debug("pipeline: subtitles finalized")
	case buf != nil:
		profile := t.analyzer.Analyze(buf)
		al := t.aligner.Align(t.aligner.Segment(ev.Text), &profile, buf.Duration())
		seg.Cues = al.Cues
		log.WithFields(logrus.Fields{
			"cues":       len(al.Cues),
			"boundaries": len(profile.Boundaries),
			"method":     al.Method,
		}).Debug("pipeline: subtitles aligned")
	default:
		seg.Cues = t.aligner.Align(t.aligner.Segment(ev.Text), nil, seg.Duration).Cues
	}
	return seg
}

func (t *turn) load(ctx context.Context, locator string) (*audio.Buffer, error) {
	data, err := t.fetcher.Fetch(ctx, locator)
	if err != nil {
		return nil, err
	}
	return audio.Decode(data)
}

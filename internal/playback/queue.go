package playback

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"voicereply/internal/audio"
	"voicereply/internal/subtitle"
)

var ErrStaleSession = errors.New("playback: stale session")

// State 播放队列状态
type State int

const (
	Idle State = iota
	Awaiting
	Playing
)

func (s State) String() string {
	switch s {
	case Awaiting:
		return "awaiting"
	case Playing:
		return "playing"
	default:
		return "idle"
	}
}

// SessionID 一次对话轮次的播放会话，Reset 后旧 ID 作废
type SessionID string

// Segment 一段回复音频及其字幕，入队后不再修改
type Segment struct {
	Index    int
	Locator  string
	Text     string
	Cues     []subtitle.Cue
	Duration float64
	Audio    *audio.Buffer
}

// Callbacks 播放器回调，可以在任意 goroutine 调用
type Callbacks struct {
	OnPosition func(seconds float64)
	OnEnd      func()
	OnError    func(err error)
}

// Handle 一段正在播放的音频
type Handle interface {
	Stop()
}

// Player 音频输出
type Player interface {
	Play(seg *Segment, cb Callbacks) (Handle, error)
}

// Listener 状态通知，所有回调都在队列的执行器上串行调用
type Listener struct {
	OnStateChanged         func(State)
	OnCueChanged           func(text string)
	OnFirstSegmentEnqueued func(SessionID)
	OnPlaybackError        func(*PlaybackError)
}

// PlaybackError 一个会话中所有尝试播放的片段都失败了
type PlaybackError struct {
	Session   SessionID
	Attempted int
	Err       error // 最后一次失败的原因
}

func (e *PlaybackError) Error() string {
	return fmt.Sprintf("playback: all %d segments failed in session %s: %v", e.Attempted, e.Session, e.Err)
}

func (e *PlaybackError) Unwrap() error { return e.Err }

type activeSegment struct {
	seg    *Segment
	handle Handle
	gen    uint64
}

// session 一个会话的全部可变状态，只在执行器上访问
type session struct {
	id        SessionID
	buffer    []*Segment // 按 Index 升序
	cursor    int        // 小于 cursor 的片段已播放或已跳过
	state     State
	active    *activeSegment
	lastCue   string
	signaled  bool
	attempted int
	failed    int
	lastErr   error
	escalated bool
}

// Queue 按序号顺序无缝播放陆续到达的回复片段
type Queue struct {
	player   Player
	listener Listener
	exec     serial

	s   session
	gen uint64

	// 对外快照
	mu   sync.RWMutex
	snap snapshot
}

type snapshot struct {
	session SessionID
	state   State
	cue     string
}

func NewQueue(player Player, listener Listener) *Queue {
	q := &Queue{player: player, listener: listener}
	q.exec.settle = q.settle
	id := newSessionID()
	q.s.id = id
	q.snap.session = id
	return q
}

func newSessionID() SessionID {
	return SessionID(uuid.NewString())
}

func (q *Queue) State() State {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.snap.state
}

func (q *Queue) CueText() string {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.snap.cue
}

func (q *Queue) SessionID() SessionID {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.snap.session
}

// BeginTurn 停止当前播放，开启新会话并进入 Awaiting
func (q *Queue) BeginTurn() SessionID {
	var id SessionID
	q.exec.postIf(func() bool {
		id = q.rotate()
		return true
	}, func() {
		q.resetTo(id)
		q.setState(Awaiting)
	})
	return id
}

// Reset 停止当前播放，丢弃缓冲，回到 Idle。之前会话的片段不再被接受
func (q *Queue) Reset() {
	var id SessionID
	q.exec.postIf(func() bool {
		id = q.rotate()
		return true
	}, func() {
		q.resetTo(id)
		q.setState(Idle)
	})
}

// Abort 仅当 id 仍是当前会话时等同 Reset，返回是否生效
func (q *Queue) Abort(id SessionID) bool {
	next := newSessionID()
	return q.exec.postIf(func() bool {
		q.mu.Lock()
		defer q.mu.Unlock()
		if q.snap.session != id {
			return false
		}
		q.snap.session = next
		return true
	}, func() {
		q.resetTo(next)
		q.setState(Idle)
	})
}

// rotate 只在邮箱锁内调用，快照中的会话与执行器收到的 resetTo 顺序一致
func (q *Queue) rotate() SessionID {
	id := newSessionID()
	q.mu.Lock()
	q.snap.session = id
	q.mu.Unlock()
	return id
}

// Enqueue 把片段放入缓冲。同一次调用中的片段（以及执行器排空期间到达的片段）
// 都插入之后才决定从哪个片段开始播放
func (q *Queue) Enqueue(id SessionID, segs ...*Segment) error {
	ok := q.exec.postIf(func() bool {
		return id == q.SessionID()
	}, func() {
		for _, seg := range segs {
			q.insert(id, seg)
		}
	})
	if !ok {
		return ErrStaleSession
	}
	return nil
}

func (q *Queue) insert(id SessionID, seg *Segment) {
	log := logrus.WithFields(logrus.Fields{"session": id, "segment": seg.Index})
	if id != q.s.id {
		log.Debug("queue: dropping segment of stale session")
		return
	}
	if seg.Index < q.s.cursor {
		log.Warn("queue: dropping segment below cursor")
		return
	}
	if q.s.active != nil && q.s.active.seg.Index == seg.Index {
		log.Warn("queue: dropping duplicate segment")
		return
	}
	i := sort.Search(len(q.s.buffer), func(i int) bool { return q.s.buffer[i].Index >= seg.Index })
	if i < len(q.s.buffer) && q.s.buffer[i].Index == seg.Index {
		log.Warn("queue: dropping duplicate segment")
		return
	}
	q.s.buffer = append(q.s.buffer, nil)
	copy(q.s.buffer[i+1:], q.s.buffer[i:])
	q.s.buffer[i] = seg
	log.Debug("queue: segment buffered")

	if !q.s.signaled {
		q.s.signaled = true
		if q.listener.OnFirstSegmentEnqueued != nil {
			q.listener.OnFirstSegmentEnqueued(id)
		}
	}
}

// settle 执行器排空后调用：没有在播放时从最小序号开始播放
func (q *Queue) settle() {
	if q.s.active == nil && len(q.s.buffer) > 0 {
		q.startNext()
	}
}

// startNext 播放缓冲中序号最小的片段，播放失败则继续下一个，缓冲耗尽回到 Idle
func (q *Queue) startNext() {
	for len(q.s.buffer) > 0 {
		seg := q.s.buffer[0]
		q.s.buffer[0] = nil
		q.s.buffer = q.s.buffer[1:]
		q.s.cursor = seg.Index + 1
		q.s.attempted++

		q.gen++
		gen := q.gen
		handle, err := q.player.Play(seg, q.callbacks(gen))
		if err != nil {
			q.recordFailure(seg, err)
			continue
		}
		q.s.active = &activeSegment{seg: seg, handle: handle, gen: gen}
		logrus.WithFields(logrus.Fields{"session": q.s.id, "segment": seg.Index}).Debug("queue: playing segment")
		q.setState(Playing)
		return
	}
	q.exhaust()
}

func (q *Queue) callbacks(gen uint64) Callbacks {
	return Callbacks{
		OnPosition: func(t float64) {
			q.exec.post(func() { q.onPosition(gen, t) })
		},
		OnEnd: func() {
			q.exec.post(func() { q.onEnd(gen, nil) })
		},
		OnError: func(err error) {
			q.exec.post(func() { q.onEnd(gen, err) })
		},
	}
}

func (q *Queue) current(gen uint64) *activeSegment {
	if q.s.active == nil || q.s.active.gen != gen {
		return nil
	}
	return q.s.active
}

func (q *Queue) onPosition(gen uint64, t float64) {
	a := q.current(gen)
	if a == nil {
		return
	}
	cue, ok := subtitle.CueAt(a.seg.Cues, t, subtitle.PositionEpsilon)
	if !ok {
		return
	}
	q.setCue(cue.Text)
}

func (q *Queue) onEnd(gen uint64, err error) {
	a := q.current(gen)
	if a == nil {
		return
	}
	q.s.active = nil
	if err != nil {
		q.recordFailure(a.seg, err)
	}
	q.advance()
}

// advance 当前片段结束，播放下一个或回到 Idle
func (q *Queue) advance() {
	if len(q.s.buffer) > 0 {
		q.startNext()
		return
	}
	q.exhaust()
}

func (q *Queue) exhaust() {
	q.setCue("")
	q.setState(Idle)

	if q.s.attempted > 0 && q.s.failed == q.s.attempted && !q.s.escalated {
		q.s.escalated = true
		perr := &PlaybackError{Session: q.s.id, Attempted: q.s.attempted, Err: q.s.lastErr}
		logrus.WithField("session", q.s.id).Errorf("queue: %v", perr)
		if q.listener.OnPlaybackError != nil {
			q.listener.OnPlaybackError(perr)
		}
	}
}

func (q *Queue) recordFailure(seg *Segment, err error) {
	q.s.failed++
	q.s.lastErr = err
	logrus.WithFields(logrus.Fields{"session": q.s.id, "segment": seg.Index}).Warnf("queue: segment failed, skipping: %v", err)
}

// resetTo 停止当前片段并切换到新会话
func (q *Queue) resetTo(id SessionID) {
	if q.s.active != nil {
		q.s.active.handle.Stop()
	}
	q.setCue("")
	state := q.s.state
	q.s = session{id: id, state: state}
}

func (q *Queue) setState(st State) {
	if q.s.state == st {
		return
	}
	q.s.state = st
	q.mu.Lock()
	q.snap.state = st
	q.mu.Unlock()
	if q.listener.OnStateChanged != nil {
		q.listener.OnStateChanged(st)
	}
}

func (q *Queue) setCue(text string) {
	if q.s.lastCue == text {
		return
	}
	q.s.lastCue = text
	q.mu.Lock()
	q.snap.cue = text
	q.mu.Unlock()
	if q.listener.OnCueChanged != nil {
		q.listener.OnCueChanged(text)
	}
}

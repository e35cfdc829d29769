package pipeline

import (
	"errors"

	"voicereply/internal/playback"
)

// sequencer 按片段到达的顺序入队，与各片段准备完成的先后无关
type sequencer struct {
	t     *turn
	slots chan chan *playback.Segment
	done  chan struct{}
}

func newSequencer(t *turn) *sequencer {
	s := &sequencer{
		t:     t,
		slots: make(chan chan *playback.Segment, 64),
		done:  make(chan struct{}),
	}
	go s.loop()
	return s
}

// reserve 占一个位置，每个位置必须恰好写入一次，nil 表示放弃
func (s *sequencer) reserve() chan<- *playback.Segment {
	slot := make(chan *playback.Segment, 1)
	s.slots <- slot
	return slot
}

func (s *sequencer) close() { close(s.slots) }

func (s *sequencer) loop() {
	defer close(s.done)
	stale := false
	for slot := range s.slots {
		seg := <-slot
		if seg == nil || stale {
			continue
		}
		err := s.t.queue.Enqueue(s.t.session, seg)
		switch {
		case errors.Is(err, playback.ErrStaleSession):
			stale = true
			s.t.log.Debug("pipeline: session replaced, discarding remaining segments")
		case err != nil:
			s.t.log.WithField("segment", seg.Index).Warnf("pipeline: enqueue: %v", err)
		}
	}
}

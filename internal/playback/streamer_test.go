package playback

import (
	"errors"
	"sync"
	"testing"
	"time"

	"voicereply/internal/audio"
)

func ramp(n int, offset float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = offset + float64(i)/1000
	}
	return out
}

func TestStreamer(t *testing.T) {
	buf, err := audio.NewBuffer(1000, ramp(250, 0))
	if err != nil {
		t.Fatal(err)
	}
	s := NewStreamer(buf)

	frames := make([][2]float64, 100)
	n, ok := s.Stream(frames)
	if n != 100 || !ok {
		t.Fatalf("got n=%d ok=%v", n, ok)
	}
	if frames[10][0] != 0.01 || frames[10][1] != 0.01 {
		t.Fatalf("mono not duplicated: %v", frames[10])
	}
	if s.Position() != 0.1 {
		t.Fatalf("position got=%v want=0.1", s.Position())
	}

	s.Cancel()
	if n, ok := s.Stream(frames); n != 0 || ok {
		t.Fatalf("stream after cancel got n=%d ok=%v", n, ok)
	}
	if !errors.Is(s.Err(), ErrStreamStopped) || !s.Cancelled() {
		t.Fatalf("err got=%v", s.Err())
	}
}

func TestStreamerEnd(t *testing.T) {
	buf, _ := audio.NewBuffer(1000, ramp(150, 0), ramp(150, 0.5))
	s := NewStreamer(buf)
	frames := make([][2]float64, 100)

	total := 0
	for {
		n, ok := s.Stream(frames)
		total += n
		if !ok {
			break
		}
	}
	if total != 150 {
		t.Fatalf("streamed %d samples", total)
	}
	if s.Err() != nil || s.Position() != 0.15 {
		t.Fatalf("err=%v position=%v", s.Err(), s.Position())
	}
}

func TestStreamQueueGapless(t *testing.T) {
	a, _ := audio.NewBuffer(1000, ramp(30, 0.1))
	b, _ := audio.NewBuffer(1000, ramp(30, 0.5))
	q := NewStreamQueue()
	q.Push(NewStreamer(a))
	q.Push(NewStreamer(b))

	frames := make([][2]float64, 50)
	n, ok := q.Stream(frames)
	if n != 50 || !ok {
		t.Fatalf("got n=%d ok=%v", n, ok)
	}
	if frames[29][0] != a.Channel(0)[29] || frames[30][0] != b.Channel(0)[0] {
		t.Fatalf("boundary samples %v %v", frames[29], frames[30])
	}

	n, ok = q.Stream(frames)
	if n != 50 || !ok {
		t.Fatalf("idle queue must keep the device running, got n=%d ok=%v", n, ok)
	}
	if frames[9][0] != b.Channel(0)[29] || frames[10] != [2]float64{} || frames[49] != [2]float64{} {
		t.Fatalf("expected tail then silence, got %v %v", frames[9], frames[10])
	}
	if q.Len() != 0 {
		t.Fatalf("queue not drained: %d", q.Len())
	}
}

func TestStreamQueueClear(t *testing.T) {
	a, _ := audio.NewBuffer(1000, ramp(30, 0.1))
	b, _ := audio.NewBuffer(1000, ramp(30, 0.5))
	q := NewStreamQueue()
	q.Push(NewStreamer(a))
	q.Push(NewStreamer(b))

	frames := make([][2]float64, 10)
	q.Stream(frames)
	q.Clear()
	if q.Len() != 0 {
		t.Fatalf("queue not cleared: %d", q.Len())
	}
	q.Stream(frames)
	for i, f := range frames {
		if f != [2]float64{} {
			t.Fatalf("frame %d after clear: %v", i, f)
		}
	}
}

func TestSpeakerHandleHandoff(t *testing.T) {
	buf, _ := audio.NewBuffer(1000, ramp(300, 0))
	src := NewStreamer(buf)

	var mu sync.Mutex
	var positions []float64
	ended := make(chan struct{}, 2)
	h := newSpeakerHandle(src, nil, Callbacks{
		OnPosition: func(t float64) {
			mu.Lock()
			positions = append(positions, t)
			mu.Unlock()
		},
		OnEnd: func() { ended <- struct{}{} },
	})
	go h.watch(2*time.Millisecond, 100*time.Millisecond)

	// 排在上一段之后、尚未开始输出
	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	early := len(positions)
	mu.Unlock()
	if early != 0 {
		t.Fatalf("%d positions reported before the segment started", early)
	}

	frames := make([][2]float64, 150)
	src.Stream(frames)
	select {
	case <-ended:
		t.Fatal("handed off with 0.15s left")
	case <-time.After(20 * time.Millisecond):
	}

	src.Stream(frames[:60])
	select {
	case <-ended:
	case <-time.After(5 * time.Second):
		t.Fatal("no hand-off near the end of the segment")
	}

	// 设备随后播到结尾
	h.complete()
	select {
	case <-ended:
		t.Fatal("OnEnd reported twice")
	case <-time.After(20 * time.Millisecond):
	}

	mu.Lock()
	defer mu.Unlock()
	if len(positions) == 0 || positions[len(positions)-1] != 0.21 {
		t.Fatalf("positions %v", positions)
	}
	if handoffLead(50*time.Millisecond) != 200*time.Millisecond {
		t.Fatalf("lead got=%v", handoffLead(50*time.Millisecond))
	}
}

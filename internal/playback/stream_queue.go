package playback

import (
	"sync"

	"github.com/gopxl/beep"
)

// StreamQueue 依次播放推入的 Streamer，前一个结束立即接上下一个
// 队列为空时输出静音，设备保持打开
type StreamQueue struct {
	mu      sync.Mutex
	current beep.Streamer
	queue   []beep.Streamer
}

func NewStreamQueue() *StreamQueue {
	return &StreamQueue{}
}

func (q *StreamQueue) Push(s beep.Streamer) {
	q.mu.Lock()
	q.queue = append(q.queue, s)
	q.mu.Unlock()
}

// Clear 丢弃正在输出和排队的 Streamer
func (q *StreamQueue) Clear() {
	q.mu.Lock()
	q.current = nil
	clear(q.queue)
	q.queue = q.queue[:0]
	q.mu.Unlock()
}

// Len 尚未播放完的 Streamer 数量
func (q *StreamQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.queue)
	if q.current != nil {
		n++
	}
	return n
}

func (q *StreamQueue) Stream(samples [][2]float64) (n int, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	filled := 0
	for filled < len(samples) {
		if q.current == nil {
			if len(q.queue) == 0 {
				break
			}
			q.current = q.queue[0]
			q.queue[0] = nil
			q.queue = q.queue[1:]
		}

		sn, sok := q.current.Stream(samples[filled:])
		filled += sn
		if !sok {
			q.current = nil
			continue
		}
		if sn == 0 {
			break // 暂时无数据
		}
	}
	for i := filled; i < len(samples); i++ {
		samples[i] = [2]float64{}
	}
	return len(samples), true
}

func (q *StreamQueue) Err() error { return nil }

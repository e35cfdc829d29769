package upstream

import (
	"context"
	"errors"
	"io"
	"sync"
)

var ErrStreamClosed = errors.New("upstream: stream closed")

// EventStream 服务端事件管道：写端是连接的读循环，读端是流水线
// 关闭后读端仍能读完已缓冲的事件，之后返回 io.EOF 或关闭原因
type EventStream struct {
	queue chan Event
	done  chan struct{}

	mu  sync.Mutex
	err error

	closeOnce sync.Once
}

func NewEventStream(size int) *EventStream {
	return &EventStream{
		queue: make(chan Event, size),
		done:  make(chan struct{}),
	}
}

func (s *EventStream) Write(ev Event) error {
	select {
	case <-s.done:
		return ErrStreamClosed
	default:
	}
	select {
	case <-s.done:
		return ErrStreamClosed
	case s.queue <- ev:
		return nil
	}
}

// Read 阻塞直到有事件、流结束或 ctx 取消
func (s *EventStream) Read(ctx context.Context) (Event, error) {
	select {
	case ev := <-s.queue:
		return ev, nil
	default:
	}
	select {
	case ev := <-s.queue:
		return ev, nil
	case <-s.done:
		// 关闭前写入的事件优先
		select {
		case ev := <-s.queue:
			return ev, nil
		default:
		}
		return Event{}, s.closeErr()
	case <-ctx.Done():
		return Event{}, ctx.Err()
	}
}

func (s *EventStream) closeErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	return io.EOF
}

// Close 正常结束
func (s *EventStream) Close() error {
	return s.CloseWithError(nil)
}

// CloseWithError 以 err 结束，只有第一次关闭生效
func (s *EventStream) CloseWithError(err error) error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
		close(s.done)
	})
	return nil
}

func (s *EventStream) Done() <-chan struct{} {
	return s.done
}

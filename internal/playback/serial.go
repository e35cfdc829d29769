package playback

import "sync"

// serial 单线程执行器：任务按投递顺序执行，同一时刻只有一个调用方在排空邮箱
// 执行中再投递的任务（包括任务内部投递的）追加到邮箱末尾，不会重入
// 邮箱每次排空后调用一次 settle，settle 期间产生的新任务会在下一轮执行
type serial struct {
	mu      sync.Mutex
	mailbox []func()
	running bool
	settle  func()
}

func (s *serial) post(task func()) {
	s.postIf(nil, task)
}

// postIf 持有邮箱锁调用 admit，返回 true 才投递 task
// admit 与投递之间不会插入其他任务，admit 的先后就是任务的执行顺序
func (s *serial) postIf(admit func() bool, task func()) bool {
	s.mu.Lock()
	if admit != nil && !admit() {
		s.mu.Unlock()
		return false
	}
	s.mailbox = append(s.mailbox, task)
	if s.running {
		s.mu.Unlock()
		return true
	}
	s.running = true
	s.mu.Unlock()

	for {
		for task := s.next(); task != nil; task = s.next() {
			task()
		}
		if s.settle != nil {
			s.settle()
		}

		s.mu.Lock()
		if len(s.mailbox) == 0 {
			s.running = false
			s.mu.Unlock()
			return true
		}
		s.mu.Unlock()
	}
}

func (s *serial) next() func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.mailbox) == 0 {
		return nil
	}
	task := s.mailbox[0]
	s.mailbox[0] = nil
	s.mailbox = s.mailbox[1:]
	return task
}

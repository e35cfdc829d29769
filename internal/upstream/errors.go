package upstream

import (
	"errors"
	"fmt"
)

// NoResponseMessage 展示给用户的提示
const NoResponseMessage = "no response received"

var ErrNoSegments = errors.New("upstream: stream ended without any segment")

// UpstreamError 远端服务失败：连接失败、error 事件或没有任何回复
type UpstreamError struct {
	Op  string // dial / send / stream / remote
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream %s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// UserMessage 面向用户的提示，不暴露内部细节
func (e *UpstreamError) UserMessage() string { return NoResponseMessage }

// RemoteError 服务端通过 error 事件报告的错误
type RemoteError struct {
	Message string
}

func (e *RemoteError) Error() string {
	return "remote: " + e.Message
}

package audio

import (
	"errors"
	"fmt"
)

var (
	ErrUnsupportedFormat = errors.New("audio: unsupported format")
	ErrEmptyAudio        = errors.New("audio: empty buffer")
)

// DecodeError 输入音频无法解码
type DecodeError struct {
	Format string // 探测到的容器格式，未识别时为空
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Format == "" {
		return fmt.Sprintf("audio: decode: %v", e.Err)
	}
	return fmt.Sprintf("audio: decode %s: %v", e.Format, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// EncodeError PCM 写入容器失败，正常解码后的输入不应出现
type EncodeError struct {
	Err error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("audio: encode: %v", e.Err)
}

func (e *EncodeError) Unwrap() error { return e.Err }

package audio

import "fmt"

// Format 描述 PCM 容器的编码参数
type Format struct {
	Codec      string `json:"codec" yaml:"codec"`
	SampleRate int    `json:"sample_rate" yaml:"sample_rate"`
	Channels   int    `json:"channels" yaml:"channels"`
	BitDepth   int    `json:"bit_depth" yaml:"bit_depth"`
}

// CanonicalFormat 上传识别服务使用的固定格式：16kHz 单声道 16bit PCM WAV
var CanonicalFormat = Format{
	Codec:      "wav",
	SampleRate: 16000,
	Channels:   1,
	BitDepth:   16,
}

// BytesPerSecond 每秒字节数
func (f Format) BytesPerSecond() int {
	return f.SampleRate * f.Channels * f.BitDepth / 8
}

// BlockAlign 每个采样帧的字节数
func (f Format) BlockAlign() int {
	return f.Channels * f.BitDepth / 8
}

func (f Format) String() string {
	return fmt.Sprintf("%s; rate=%d; channels=%d; bits=%d", f.Codec, f.SampleRate, f.Channels, f.BitDepth)
}

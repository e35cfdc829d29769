package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

const canonicalHeaderSize = 44

var errNotCanonical = errors.New("audio: not a canonical container")

// Canonical 规范化后的上传音频（完整 WAV 文件字节），自描述且可独立解码
type Canonical []byte

// PCM 返回 data 块，不拷贝
func (c Canonical) PCM() []byte {
	if len(c) < canonicalHeaderSize {
		return nil
	}
	return c[canonicalHeaderSize:]
}

// Samples 采样点数
func (c Canonical) Samples() int {
	return len(c.PCM()) / CanonicalFormat.BlockAlign()
}

// Duration 时长（秒）
func (c Canonical) Duration() float64 {
	return float64(c.Samples()) / float64(CanonicalFormat.SampleRate)
}

// EncodeCanonical 将 16kHz 单声道 Buffer 量化为 16bit 并封装为 WAV
func EncodeCanonical(buf *Buffer) (Canonical, error) {
	if buf == nil || buf.Len() == 0 {
		return nil, &EncodeError{Err: ErrEmptyAudio}
	}
	if buf.NumChannels() != 1 || buf.SampleRate() != CanonicalFormat.SampleRate {
		return nil, &EncodeError{Err: fmt.Errorf("want mono %dHz, got %d channels at %dHz",
			CanonicalFormat.SampleRate, buf.NumChannels(), buf.SampleRate())}
	}

	samples := buf.Channel(0)
	dataSize := len(samples) * CanonicalFormat.BlockAlign()
	if uint64(dataSize)+canonicalHeaderSize-8 > math.MaxUint32 {
		return nil, &EncodeError{Err: errors.New("data too large for RIFF container")}
	}

	out := make([]byte, canonicalHeaderSize+dataSize)
	writeCanonicalHeader(out, uint32(dataSize))
	pcm := out[canonicalHeaderSize:]
	for i, s := range samples {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(quantize(s)))
	}
	return Canonical(out), nil
}

func writeCanonicalHeader(b []byte, dataSize uint32) {
	f := CanonicalFormat
	copy(b[0:4], "RIFF")
	binary.LittleEndian.PutUint32(b[4:8], 36+dataSize)
	copy(b[8:12], "WAVE")
	copy(b[12:16], "fmt ")
	binary.LittleEndian.PutUint32(b[16:20], 16)
	binary.LittleEndian.PutUint16(b[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(b[22:24], uint16(f.Channels))
	binary.LittleEndian.PutUint32(b[24:28], uint32(f.SampleRate))
	binary.LittleEndian.PutUint32(b[28:32], uint32(f.BytesPerSecond()))
	binary.LittleEndian.PutUint16(b[32:34], uint16(f.BlockAlign()))
	binary.LittleEndian.PutUint16(b[34:36], uint16(f.BitDepth))
	copy(b[36:40], "data")
	binary.LittleEndian.PutUint32(b[40:44], dataSize)
}

// quantize 对称截断到 [-1, 1]；负数乘 32768，非负数乘 32767，避免溢出
func quantize(s float64) int16 {
	switch {
	case math.IsNaN(s):
		return 0
	case s > 1:
		s = 1
	case s < -1:
		s = -1
	}
	if s < 0 {
		return int16(math.Round(s * 32768))
	}
	return int16(math.Round(s * 32767))
}

// dequantize 是 quantize 的精确逆运算，保证规范音频重复规范化结果不变
func dequantize(v int16) float64 {
	if v < 0 {
		return float64(v) / 32768
	}
	return float64(v) / 32767
}

// isCanonical 判断 data 是否为本包写出的规范容器
func isCanonical(data []byte) bool {
	_, err := parseCanonicalHeader(data)
	return err == nil
}

func parseCanonicalHeader(data []byte) (pcm []byte, err error) {
	if len(data) < canonicalHeaderSize {
		return nil, errNotCanonical
	}
	want := make([]byte, canonicalHeaderSize)
	dataSize := binary.LittleEndian.Uint32(data[40:44])
	writeCanonicalHeader(want, dataSize)
	if !bytes.Equal(data[:canonicalHeaderSize], want) {
		return nil, errNotCanonical
	}
	if int(dataSize) > len(data)-canonicalHeaderSize || dataSize%2 != 0 {
		return nil, errNotCanonical
	}
	return data[canonicalHeaderSize : canonicalHeaderSize+int(dataSize)], nil
}

// DecodeCanonical 解码规范容器
func DecodeCanonical(data []byte) (*Buffer, error) {
	pcm, err := parseCanonicalHeader(data)
	if err != nil {
		return nil, &DecodeError{Format: "wav", Err: err}
	}
	samples := make([]float64, len(pcm)/2)
	for i := range samples {
		samples[i] = dequantize(int16(binary.LittleEndian.Uint16(pcm[i*2:])))
	}
	return newBufferNoCopy(CanonicalFormat.SampleRate, samples), nil
}

package audio

import (
	"bytes"
	"io"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/flac"
	"github.com/gopxl/beep/mp3"
	"github.com/gopxl/beep/vorbis"
	"github.com/gopxl/beep/wav"
)

// 容器格式名
const (
	FormatWAV    = "wav"
	FormatMP3    = "mp3"
	FormatVorbis = "ogg"
	FormatFLAC   = "flac"
)

// streamChunk 每次从 beep 解码器读取的采样帧数
const streamChunk = 1024

// Sniff 根据文件头识别容器格式，无法识别返回空字符串
func Sniff(data []byte) string {
	switch {
	case len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE":
		return FormatWAV
	case len(data) >= 4 && string(data[0:4]) == "OggS":
		return FormatVorbis
	case len(data) >= 4 && string(data[0:4]) == "fLaC":
		return FormatFLAC
	case len(data) >= 3 && string(data[0:3]) == "ID3":
		return FormatMP3
	case len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0:
		return FormatMP3
	}
	return ""
}

// Decode 将压缩或封装的音频解码为 Buffer，保留原始采样率和声道数
func Decode(data []byte) (*Buffer, error) {
	if len(data) == 0 {
		return nil, &DecodeError{Err: ErrEmptyAudio}
	}
	if isCanonical(data) {
		return DecodeCanonical(data)
	}

	format := Sniff(data)
	var (
		s   beep.StreamSeekCloser
		f   beep.Format
		err error
	)
	switch format {
	case FormatWAV:
		s, f, err = wav.Decode(bytes.NewReader(data))
	case FormatMP3:
		s, f, err = mp3.Decode(io.NopCloser(bytes.NewReader(data)))
	case FormatVorbis:
		s, f, err = vorbis.Decode(io.NopCloser(bytes.NewReader(data)))
	case FormatFLAC:
		s, f, err = flac.Decode(bytes.NewReader(data))
	default:
		return nil, &DecodeError{Err: ErrUnsupportedFormat}
	}
	if err != nil {
		return nil, &DecodeError{Format: format, Err: err}
	}
	defer s.Close()

	buf, err := drain(s, f)
	if err != nil {
		return nil, &DecodeError{Format: format, Err: err}
	}
	return buf, nil
}

// drain 读完 beep 流。beep 总是输出双声道帧，单声道源只保留左声道
func drain(s beep.Streamer, f beep.Format) (*Buffer, error) {
	if f.SampleRate <= 0 {
		return nil, ErrInvalidSampleRate
	}
	stereo := f.NumChannels >= 2
	var left, right []float64
	frames := make([][2]float64, streamChunk)
	for {
		n, ok := s.Stream(frames)
		for _, fr := range frames[:n] {
			left = append(left, fr[0])
			if stereo {
				right = append(right, fr[1])
			}
		}
		if !ok {
			break
		}
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	if stereo {
		return newBufferNoCopy(int(f.SampleRate), left, right), nil
	}
	return newBufferNoCopy(int(f.SampleRate), left), nil
}

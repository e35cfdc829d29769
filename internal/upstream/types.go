package upstream

import (
	"encoding/json"
	"fmt"

	"voicereply/internal/audio"
	"voicereply/internal/subtitle"
)

// EventType 服务端下发的事件类型
type EventType string

const (
	EventSegment  EventType = "segment"
	EventReply    EventType = "reply"
	EventComplete EventType = "complete"
	EventError    EventType = "error"
)

// Request 一轮对话的参数
type Request struct {
	SessionID      string
	TurnID         string
	OutputLanguage string
	Voice          string
}

// startMessage 开始一轮对话，随后发送一帧二进制音频
type startMessage struct {
	Type           string       `json:"type"`
	SessionID      string       `json:"session_id"`
	TurnID         string       `json:"turn_id"`
	OutputLanguage string       `json:"output_language,omitempty"`
	Voice          string       `json:"voice,omitempty"`
	AudioFormat    audio.Format `json:"audio_format"`
}

type finishMessage struct {
	Type   string `json:"type"`
	TurnID string `json:"turn_id"`
}

// Event 服务端事件
type Event struct {
	Type EventType `json:"type"`

	// segment / reply
	SegmentIndex int            `json:"segment_index"`
	Text         string         `json:"text"`
	AudioURL     string         `json:"audio_url"`
	Subtitles    []subtitle.Cue `json:"subtitles,omitempty"`
	Duration     float64        `json:"duration"`

	// complete
	AllSegments int `json:"all_segments"`

	// error
	Error string `json:"error"`
}

// HasAudio segment 和 reply 事件都携带一段音频
func (e Event) HasAudio() bool {
	return e.Type == EventSegment || e.Type == EventReply
}

// ParseEvent 解析一帧文本消息。reply 视为序号 0 的唯一片段
func ParseEvent(data []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return Event{}, fmt.Errorf("upstream: decode event: %w", err)
	}
	switch ev.Type {
	case EventSegment:
		if ev.SegmentIndex < 0 {
			return Event{}, fmt.Errorf("upstream: negative segment index %d", ev.SegmentIndex)
		}
	case EventReply:
		ev.SegmentIndex = 0
	case EventComplete, EventError:
	default:
		return Event{}, fmt.Errorf("upstream: unknown event type %q", ev.Type)
	}
	if ev.HasAudio() && ev.AudioURL == "" {
		return Event{}, fmt.Errorf("upstream: %s event without audio_url", ev.Type)
	}
	return ev, nil
}

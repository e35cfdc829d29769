package upstream

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"voicereply/internal/audio"
	"voicereply/pkg/ws"
)

// Options 远端对话服务
type Options struct {
	URL            string            `yaml:"url"`
	AudioBaseURL   string            `yaml:"audio_base_url"`
	OutputLanguage string            `yaml:"output_language"`
	Voice          string            `yaml:"voice"`
	Headers        map[string]string `yaml:"headers"`
	DialTimeout    time.Duration     `yaml:"dial_timeout"`
	FetchTimeout   time.Duration     `yaml:"fetch_timeout"`
	MaxAudioBytes  int64             `yaml:"max_audio_bytes"`
}

func DefaultOptions() Options {
	return Options{
		URL:            "ws://127.0.0.1:8000/api/voice/stream",
		AudioBaseURL:   "http://127.0.0.1:8000",
		OutputLanguage: "minnan",
		DialTimeout:    5 * time.Second,
		FetchTimeout:   15 * time.Second,
		MaxAudioBytes:  32 << 20,
	}
}

// Client 通过 websocket 提交录音并接收流式回复
type Client struct {
	opts Options
}

func NewClient(opts Options) *Client {
	return &Client{opts: opts}
}

// Converse 发送 start、录音、finish 三帧，返回服务端事件流
// ctx 取消时关闭连接，事件流以 ctx.Err() 结束
func (c *Client) Converse(ctx context.Context, req Request, clip audio.Canonical) (*EventStream, error) {
	if req.OutputLanguage == "" {
		req.OutputLanguage = c.opts.OutputLanguage
	}
	if req.Voice == "" {
		req.Voice = c.opts.Voice
	}

	header := http.Header{}
	for k, v := range c.opts.Headers {
		header.Set(k, v)
	}

	stream := NewEventStream(32)
	conv := &conversation{stream: stream, turnID: req.TurnID}
	conn, err := ws.Dial(ctx, ws.Config{
		URL:         c.opts.URL,
		Headers:     header,
		DialTimeout: c.opts.DialTimeout,
	}, conv)
	if err != nil {
		return nil, &UpstreamError{Op: "dial", Err: err}
	}

	start := startMessage{
		Type:           "start",
		SessionID:      req.SessionID,
		TurnID:         req.TurnID,
		OutputLanguage: req.OutputLanguage,
		Voice:          req.Voice,
		AudioFormat:    audio.CanonicalFormat,
	}
	if err := conn.SendJSON(start); err != nil {
		conn.Close()
		return nil, &UpstreamError{Op: "send", Err: err}
	}
	if err := conn.SendBinary(clip); err != nil {
		conn.Close()
		return nil, &UpstreamError{Op: "send", Err: err}
	}
	if err := conn.SendJSON(finishMessage{Type: "finish", TurnID: req.TurnID}); err != nil {
		conn.Close()
		return nil, &UpstreamError{Op: "send", Err: err}
	}

	go func() {
		select {
		case <-ctx.Done():
			stream.CloseWithError(ctx.Err())
		case <-stream.Done():
		}
		conn.Close()
	}()

	logrus.WithFields(logrus.Fields{
		"conn":  conn.ID(),
		"turn":  req.TurnID,
		"bytes": len(clip),
	}).Debug("upstream: recording submitted")
	return stream, nil
}

// conversation 把连接事件写入 EventStream
type conversation struct {
	stream *EventStream
	turnID string
}

func (h *conversation) OnOpen(c *ws.WSClient) {}

func (h *conversation) OnMessage(c *ws.WSClient, msgType int, msg []byte) {
	if msgType != websocket.TextMessage {
		logrus.WithField("turn", h.turnID).Warnf("upstream: ignoring %d-byte binary message", len(msg))
		return
	}
	ev, err := ParseEvent(msg)
	if err != nil {
		logrus.WithField("turn", h.turnID).Warnf("upstream: %v", err)
		return
	}
	if err := h.stream.Write(ev); err != nil {
		return
	}
	if ev.Type == EventComplete || ev.Type == EventError {
		h.stream.Close()
	}
}

func (h *conversation) OnError(c *ws.WSClient, err error) {
	logrus.WithField("turn", h.turnID).Errorf("upstream: connection error: %v", err)
	h.stream.CloseWithError(&UpstreamError{Op: "stream", Err: err})
}

func (h *conversation) OnClose(c *ws.WSClient) {
	h.stream.Close()
}

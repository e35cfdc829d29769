package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

var ErrClosed = errors.New("ws: connection closed")

// EventHandler 定义 WS 消息事件回调，均在读写 goroutine 中调用
type EventHandler interface {
	OnOpen(c *WSClient)
	OnMessage(c *WSClient, msgType int, msg []byte)
	OnError(c *WSClient, err error)
	OnClose(c *WSClient)
}

// Config 连接参数
type Config struct {
	URL     string
	Headers http.Header

	// DialTimeout 连接超时时间（默认 5 秒）
	DialTimeout time.Duration
	// HandshakeTimeout 握手超时时间（默认 10 秒）
	HandshakeTimeout time.Duration
	// WriteBuffer 写队列长度（默认 100）
	WriteBuffer int
}

// WSClient 通用 WebSocket 客户端
type WSClient struct {
	id        string
	conn      *websocket.Conn
	handler   EventHandler
	ctx       context.Context
	cancel    context.CancelFunc
	writeCh   chan wsMessage
	closeOnce sync.Once
}

type wsMessage struct {
	msgType int
	data    []byte
}

// Dial 建立连接并启动读写循环
func Dial(ctx context.Context, cfg Config, handler EventHandler) (*WSClient, error) {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}
	if cfg.WriteBuffer <= 0 {
		cfg.WriteBuffer = 100
	}

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: cfg.HandshakeTimeout,
	}
	dialCtx, cancelDial := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancelDial()

	conn, resp, err := dialer.DialContext(dialCtx, cfg.URL, cfg.Headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("ws: dial %s: %w (status %s)", cfg.URL, err, resp.Status)
		}
		return nil, fmt.Errorf("ws: dial %s: %w", cfg.URL, err)
	}

	cctx, cancel := context.WithCancel(context.Background())
	client := &WSClient{
		id:      uuid.NewString(),
		conn:    conn,
		handler: handler,
		ctx:     cctx,
		cancel:  cancel,
		writeCh: make(chan wsMessage, cfg.WriteBuffer), // 缓冲写队列
	}
	logrus.WithField("conn", client.id).Debugf("ws: connected to %s", cfg.URL)

	handler.OnOpen(client)

	go client.readLoop()
	go client.writeLoop()

	return client, nil
}

func (c *WSClient) ID() string { return c.id }

// readLoop 持续读取消息
func (c *WSClient) readLoop() {
	for {
		msgType, msg, err := c.conn.ReadMessage()
		if err != nil {
			if c.ctx.Err() == nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.handler.OnError(c, err)
			}
			c.Close()
			return
		}
		c.handler.OnMessage(c, msgType, msg)
	}
}

// writeLoop 持续写消息
func (c *WSClient) writeLoop() {
	for {
		select {
		case <-c.ctx.Done():
			return
		case msg := <-c.writeCh:
			if err := c.conn.WriteMessage(msg.msgType, msg.data); err != nil {
				if c.ctx.Err() == nil {
					c.handler.OnError(c, err)
				}
				c.Close()
				return
			}
		}
	}
}

// 底层统一方法
func (c *WSClient) send(msgType int, data []byte) error {
	if c.ctx.Err() != nil {
		return ErrClosed
	}
	select {
	case c.writeCh <- wsMessage{msgType: msgType, data: data}:
		return nil
	case <-c.ctx.Done():
		return ErrClosed
	}
}

func (c *WSClient) SendText(data []byte) error {
	return c.send(websocket.TextMessage, data)
}

func (c *WSClient) SendBinary(data []byte) error {
	return c.send(websocket.BinaryMessage, data)
}

// SendJSON 序列化后以文本帧发送
func (c *WSClient) SendJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("ws: marshal: %w", err)
	}
	return c.SendText(data)
}

// Done 连接关闭后关闭
func (c *WSClient) Done() <-chan struct{} {
	return c.ctx.Done()
}

// Close 关闭连接，确保只关闭一次
func (c *WSClient) Close() {
	c.closeOnce.Do(func() {
		c.cancel()
		if c.conn != nil {
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
			c.conn.Close()
		}
		logrus.WithField("conn", c.id).Debug("ws: closed")
		c.handler.OnClose(c)
	})
}

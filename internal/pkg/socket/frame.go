package socket

import (
	"bytes"
	"context"
	"errors"

	"github.com/goccy/go-json"
)

// EventAck 服务端对带 ack 编号的入站帧的回执事件名
const EventAck = "ack"

var (
	ErrUnknownEvent = errors.New("unknown event")
	ErrConnNotFound = errors.New("connection not found")
)

// Frame 线上传输单元，WebSocket 每条文本消息一帧，长轮询以 JSON 数组批量传输
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
	Ack   uint64          `json:"ack,omitempty"`
}

// AckResult 回执内容
type AckResult struct {
	OK      bool   `json:"ok"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// HandlerFunc 事件处理函数，返回的 error 仅用于回执与日志
type HandlerFunc func(ctx context.Context, c *Conn, data json.RawMessage) error

// AckMapper 将处理错误映射为 (kind, message)
type AckMapper func(err error) (kind string, message string)

func encodeFrame(event string, payload any) ([]byte, error) {
	var data json.RawMessage
	switch v := payload.(type) {
	case nil:
	case json.RawMessage:
		data = v
	case []byte:
		data = v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		data = b
	}
	return json.Marshal(&Frame{Event: event, Data: data})
}

func encodeAck(id uint64, res *AckResult) ([]byte, error) {
	data, err := json.Marshal(res)
	if err != nil {
		return nil, err
	}
	return json.Marshal(&Frame{Event: EventAck, Data: data, Ack: id})
}

// joinFrames 把已编码的帧拼接为 JSON 数组
func joinFrames(frames [][]byte) []byte {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, f := range frames {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.Write(f)
	}
	buf.WriteByte(']')
	return buf.Bytes()
}

package server

import (
	"bytes"
	"encoding/json"
	"errors"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"

	"tankbattle/game"
)

// 入站消息类型
const (
	MsgInput = "input"
	MsgPing  = "ping"
)

var errMissingType = errors.New("message has no type")

// InboundMessage 客户端消息（文本 JSON 或二进制 msgpack），按 Type 区分
// 示例：{"type":"input","sequence":12,"timestamp":1700000000000,"input":{"forward":true,...}}
type InboundMessage struct {
	Type       string            `json:"type"`
	Sequence   int64             `json:"sequence"`
	Timestamp  int64             `json:"timestamp"`
	Input      game.InputPayload `json:"input"`
	ClientTime int64             `json:"clientTime"`
}

// PlayerInput 转为引擎输入
func (m InboundMessage) PlayerInput() game.PlayerInput {
	return game.PlayerInput{Sequence: m.Sequence, Timestamp: m.Timestamp, Input: m.Input}
}

// DecodeInbound 按 websocket 帧类型解码
func DecodeInbound(frameType int, payload []byte) (InboundMessage, error) {
	var m InboundMessage
	var err error
	if frameType == websocket.BinaryMessage {
		dec := msgpack.NewDecoder(bytes.NewReader(payload))
		dec.SetCustomStructTag("json")
		err = dec.Decode(&m)
	} else {
		err = json.Unmarshal(payload, &m)
	}
	if err != nil {
		return InboundMessage{}, err
	}
	if m.Type == "" {
		return InboundMessage{}, errMissingType
	}
	return m, nil
}

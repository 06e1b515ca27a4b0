package server

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"

	"tankbattle/game"
)

// 出站消息类型
const (
	MsgInit         = "init"
	MsgPlayerJoined = "player_joined"
	MsgPlayerLeft   = "player_left"
	MsgGameStart    = "game_start"
	MsgInputConfirm = "input_confirm"
	MsgStateUpdate  = "state_update"
	MsgGameEnd      = "game_end"
	MsgPong         = "pong"
	MsgError        = "error"
)

type InitMessage struct {
	Type         string         `json:"type"`
	PlayerID     string         `json:"playerId"`
	PlayerNumber int            `json:"playerNumber"`
	GameState    game.GameState `json:"gameState"`
	Config       game.Config    `json:"config"`
}

type PlayerJoinedMessage struct {
	Type         string `json:"type"`
	PlayerID     string `json:"playerId"`
	PlayerNumber int    `json:"playerNumber"`
}

type PlayerLeftMessage struct {
	Type     string `json:"type"`
	PlayerID string `json:"playerId"`
}

type GameStartMessage struct {
	Type      string         `json:"type"`
	GameState game.GameState `json:"gameState"`
}

// InputConfirmMessage 客户端据此做预测校正
type InputConfirmMessage struct {
	Type       string `json:"type"`
	Sequence   int64  `json:"sequence"`
	ServerTime int64  `json:"serverTime"`
}

type StateUpdateMessage struct {
	Type       string         `json:"type"`
	ServerTime int64          `json:"serverTime"`
	GameState  game.GameState `json:"gameState"`
}

// GameEndMessage Winner 为 nil 表示平局
type GameEndMessage struct {
	Type      string         `json:"type"`
	Winner    *game.Winner   `json:"winner"`
	GameState game.GameState `json:"gameState"`
}

type PongMessage struct {
	Type       string `json:"type"`
	ClientTime int64  `json:"clientTime"`
	ServerTime int64  `json:"serverTime"`
}

type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Codec 出站编码方式，由连接时的 ?codec= 参数决定
type Codec int

const (
	CodecJSON Codec = iota
	CodecMsgpack
)

// ParseCodec 未知值回退为 JSON
func ParseCodec(s string) Codec {
	if strings.EqualFold(s, "msgpack") {
		return CodecMsgpack
	}
	return CodecJSON
}

func (c Codec) String() string {
	if c == CodecMsgpack {
		return "msgpack"
	}
	return "json"
}

// Encode 编码一条出站消息，返回 websocket 帧类型
func (c Codec) Encode(msg any) ([]byte, int, error) {
	if c == CodecMsgpack {
		var buf bytes.Buffer
		enc := msgpack.NewEncoder(&buf)
		enc.SetCustomStructTag("json")
		if err := enc.Encode(msg); err != nil {
			return nil, 0, err
		}
		return buf.Bytes(), websocket.BinaryMessage, nil
	}
	b, err := json.Marshal(msg)
	if err != nil {
		return nil, 0, err
	}
	return b, websocket.TextMessage, nil
}

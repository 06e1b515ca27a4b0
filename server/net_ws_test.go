package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"
)

func newTestServer(t *testing.T, h http.Handler) (*httptest.Server, string) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	c, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func readMsg(t *testing.T, c *websocket.Conn) map[string]any {
	t.Helper()
	_ = c.SetReadDeadline(time.Now().Add(2 * time.Second))
	kind, data, err := c.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var m map[string]any
	if kind == websocket.BinaryMessage {
		dec := msgpack.NewDecoder(bytes.NewReader(data))
		dec.SetCustomStructTag("json")
		dec.UseLooseInterfaceDecoding(true)
		err = dec.Decode(&m)
	} else {
		err = json.Unmarshal(data, &m)
	}
	if err != nil {
		t.Fatalf("decode %q: %v", data, err)
	}
	return m
}

// readUntil 跳过其它消息直到收到指定类型
func readUntil(t *testing.T, c *websocket.Conn, typ string) map[string]any {
	t.Helper()
	for i := 0; i < 50; i++ {
		if m := readMsg(t, c); m["type"] == typ {
			return m
		}
	}
	t.Fatalf("no %q message received", typ)
	return nil
}

func sendJSON(t *testing.T, c *websocket.Conn, v any) {
	t.Helper()
	if err := c.WriteJSON(v); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestWebSocketMatchFlow(t *testing.T) {
	m := NewRoomManager(DefaultRoomSettings())
	defer m.Shutdown()
	_, url := newTestServer(t, NewWSHandler(m, 0, 0))

	c1 := dial(t, url+"/ws")
	init1 := readUntil(t, c1, MsgInit)
	if init1["playerNumber"].(float64) != 1 || init1["playerId"] == "" {
		t.Fatalf("init = %v", init1)
	}
	cfg := init1["config"].(map[string]any)
	if cfg["CANVAS_WIDTH"].(float64) != 800 || cfg["TICK_RATE"].(float64) != 60 {
		t.Fatalf("config = %v", cfg)
	}

	c2 := dial(t, url+"/ws")
	init2 := readUntil(t, c2, MsgInit)
	if init2["playerNumber"].(float64) != 2 {
		t.Fatalf("init = %v", init2)
	}
	if joined := readUntil(t, c1, MsgPlayerJoined); joined["playerId"] != init2["playerId"] {
		t.Fatalf("player_joined = %v", joined)
	}
	readUntil(t, c1, MsgGameStart)
	start := readUntil(t, c2, MsgGameStart)
	if players := start["gameState"].(map[string]any)["players"].(map[string]any); len(players) != 2 {
		t.Fatalf("game_start players = %v", players)
	}

	sendJSON(t, c1, map[string]any{
		"type":      "input",
		"sequence":  1,
		"timestamp": time.Now().UnixMilli(),
		"input":     map[string]bool{"forward": true, "backward": false, "turnLeft": false, "turnRight": false, "fire": false},
	})
	if confirm := readUntil(t, c1, MsgInputConfirm); confirm["sequence"].(float64) != 1 {
		t.Fatalf("input_confirm = %v", confirm)
	}

	// 格式错误与未知类型的消息被丢弃，连接保持
	if err := c1.WriteMessage(websocket.TextMessage, []byte("{not json")); err != nil {
		t.Fatal(err)
	}
	sendJSON(t, c1, map[string]any{"sequence": 2})
	sendJSON(t, c1, map[string]any{"type": "teleport"})
	sendJSON(t, c1, map[string]any{"type": "ping", "clientTime": 1234})
	if pong := readUntil(t, c1, MsgPong); pong["clientTime"].(float64) != 1234 || pong["serverTime"].(float64) <= 0 {
		t.Fatalf("pong = %v", pong)
	}

	c1.Close()
	if left := readUntil(t, c2, MsgPlayerLeft); left["playerId"] != init1["playerId"] {
		t.Fatalf("player_left = %v", left)
	}
}

func TestWebSocketMsgpackCodec(t *testing.T) {
	m := NewRoomManager(DefaultRoomSettings())
	defer m.Shutdown()
	_, url := newTestServer(t, NewWSHandler(m, 0, 0))

	c := dial(t, url+"/ws?codec=msgpack")
	_ = c.SetReadDeadline(time.Now().Add(2 * time.Second))
	kind, _, err := c.ReadMessage()
	if err != nil || kind != websocket.BinaryMessage {
		t.Fatalf("first frame kind=%d err=%v", kind, err)
	}

	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(map[string]any{"type": "ping", "clientTime": int64(42)}); err != nil {
		t.Fatal(err)
	}
	if err := c.WriteMessage(websocket.BinaryMessage, buf.Bytes()); err != nil {
		t.Fatal(err)
	}
	pong := readUntil(t, c, MsgPong)
	if ct := pong["clientTime"]; ct != int64(42) && ct != uint64(42) {
		t.Fatalf("pong = %#v", pong)
	}
}

func TestWebSocketConnectionRateLimit(t *testing.T) {
	m := NewRoomManager(DefaultRoomSettings())
	defer m.Shutdown()
	_, url := newTestServer(t, NewWSHandler(m, 0.001, 1))

	dial(t, url+"/ws")
	_, resp, err := websocket.DefaultDialer.Dial(url+"/ws", nil)
	if err == nil {
		t.Fatal("second handshake from the same IP was admitted")
	}
	if resp == nil || resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("resp = %v, err = %v", resp, err)
	}
}

func TestDecodeInbound(t *testing.T) {
	msg, err := DecodeInbound(websocket.TextMessage, []byte(`{"type":"input","sequence":3,"timestamp":99,"input":{"forward":true,"backward":false,"turnLeft":false,"turnRight":true,"fire":false}}`))
	if err != nil {
		t.Fatal(err)
	}
	in := msg.PlayerInput()
	if in.Sequence != 3 || in.Timestamp != 99 || !in.Input.Complete() {
		t.Fatalf("input = %+v", in)
	}
	if s := in.Input.State(); !s.Forward || !s.TurnRight || s.Fire {
		t.Fatalf("state = %+v", s)
	}

	partial, err := DecodeInbound(websocket.TextMessage, []byte(`{"type":"input","sequence":1,"input":{"forward":true}}`))
	if err != nil {
		t.Fatal(err)
	}
	if partial.Input.Complete() {
		t.Fatal("input with missing fields reported complete")
	}

	for _, bad := range []string{``, `[]`, `{"sequence":1}`, `{"type":"input","input":{"fire":"yes"}}`} {
		if _, err := DecodeInbound(websocket.TextMessage, []byte(bad)); err == nil {
			t.Errorf("DecodeInbound(%q) succeeded", bad)
		}
	}
}

func TestParseCodec(t *testing.T) {
	cases := map[string]Codec{"": CodecJSON, "json": CodecJSON, "MsgPack": CodecMsgpack, "cbor": CodecJSON}
	for in, want := range cases {
		if got := ParseCodec(in); got != want {
			t.Errorf("ParseCodec(%q) = %v, want %v", in, got, want)
		}
	}
}

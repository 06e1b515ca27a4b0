package server

import (
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBufSize    = 256
)

type frame struct {
	kind int
	data []byte
}

// ClientConn 一条 websocket 连接：发送走队列 + 写协程，读协程把消息派发到房间
type ClientConn struct {
	ws        *websocket.Conn
	codec     Codec
	player    PlayerID
	send      chan frame
	closed    chan struct{}
	closeOnce sync.Once
}

func NewClientConn(ws *websocket.Conn, codec Codec, player PlayerID) *ClientConn {
	return &ClientConn{
		ws:     ws,
		codec:  codec,
		player: player,
		send:   make(chan frame, sendBufSize),
		closed: make(chan struct{}),
	}
}

// Send 编码并压入发送队列（非阻塞，满则丢弃）
func (c *ClientConn) Send(msg any) bool {
	data, kind, err := c.codec.Encode(msg)
	if err != nil {
		Log.Errorw("encode outbound message", "player", c.player, "err", err)
		return false
	}
	select {
	case <-c.closed:
		return false
	default:
	}
	select {
	case c.send <- frame{kind: kind, data: data}:
		return true
	default:
		return false
	}
}

// Close 通知写协程发送关闭帧并断开；读协程随之退出并走离开流程。可重复调用
func (c *ClientConn) Close() {
	c.closeOnce.Do(func() { close(c.closed) })
}

// writeNow 写协程启动前直接写出一条消息
func (c *ClientConn) writeNow(msg any) error {
	data, kind, err := c.codec.Encode(msg)
	if err != nil {
		return err
	}
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteMessage(kind, data)
}

// writePump 独立协程，负责从 send 队列写出到 WS，并定期发送 ping
func (c *ClientConn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case f := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(f.kind, f.data); err != nil {
				c.Close()
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}
		case <-c.closed:
			c.flush()
			_ = c.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		}
	}
}

// flush 关闭前尽量写出已排队的消息（如 player_left、game_end）
func (c *ClientConn) flush() {
	for {
		select {
		case f := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(f.kind, f.data); err != nil {
				return
			}
		default:
			return
		}
	}
}

// readPump 读取客户端消息并派发；退出时等同于玩家离开
func (c *ClientConn) readPump(m *RoomManager, room *Room) {
	defer func() {
		m.RemovePlayerFromRoom(c.player)
		c.Close()
	}()
	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		kind, payload, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				Log.Debugw("websocket read error", "player", c.player, "err", err)
			}
			return
		}
		msg, err := DecodeInbound(kind, payload)
		if err != nil {
			Log.Warnw("malformed message discarded", "player", c.player, "err", err)
			continue
		}
		switch msg.Type {
		case MsgInput:
			room.OnInput(c.player, msg)
		case MsgPing:
			c.Send(PongMessage{Type: MsgPong, ClientTime: msg.ClientTime, ServerTime: time.Now().UnixMilli()})
		default:
			Log.Debugw("unknown message type ignored", "player", c.player, "type", msg.Type)
		}
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// 页面由外部服务提供，允许所有来源
		return true
	},
}

// ipLimiter 按远端 IP 的握手令牌桶
type ipLimiter struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	limiters map[string]*rate.Limiter
}

const maxTrackedIPs = 4096

func newIPLimiter(perSecond float64, burst int) *ipLimiter {
	if burst < 1 {
		burst = 1
	}
	return &ipLimiter{
		limit:    rate.Limit(perSecond),
		burst:    burst,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (l *ipLimiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := l.limiters[ip]
	if !ok {
		if len(l.limiters) >= maxTrackedIPs {
			l.pruneLocked()
		}
		lim = rate.NewLimiter(l.limit, l.burst)
		l.limiters[ip] = lim
	}
	return lim.Allow()
}

// pruneLocked 丢弃令牌已回满的条目，它们与新建的限流器等价
func (l *ipLimiter) pruneLocked() {
	for ip, lim := range l.limiters {
		if lim.Tokens() >= float64(l.burst) {
			delete(l.limiters, ip)
		}
	}
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// WSHandler websocket 接入：/ws?codec=json|msgpack
type WSHandler struct {
	manager *RoomManager
	limiter *ipLimiter // nil 表示不限流
}

// NewWSHandler connPerSecond <= 0 时不做握手限流
func NewWSHandler(m *RoomManager, connPerSecond float64, burst int) *WSHandler {
	h := &WSHandler{manager: m}
	if connPerSecond > 0 {
		h.limiter = newIPLimiter(connPerSecond, burst)
	}
	return h
}

func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ip := remoteIP(r)
	if h.limiter != nil && !h.limiter.allow(ip) {
		Log.Warnw("connection rate limited", "ip", ip)
		http.Error(w, "too many connections", http.StatusTooManyRequests)
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		Log.Warnw("upgrade error", "ip", ip, "err", err)
		return
	}

	codec := ParseCodec(r.URL.Query().Get("codec"))
	playerID := PlayerID("player_" + uuid.NewString())
	client := NewClientConn(ws, codec, playerID)

	room, number, err := h.manager.AddPlayerToRoom(playerID, client)
	if err != nil {
		Log.Warnw("rejecting connection", "player", playerID, "err", err)
		_ = client.writeNow(ErrorMessage{Type: MsgError, Message: "no room slot available"})
		_ = ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "room full"),
			time.Now().Add(writeWait))
		_ = ws.Close()
		return
	}
	Log.Infow("player connected", "player", playerID, "room", room.ID, "number", number, "codec", codec, "ip", ip)

	go client.writePump()
	go client.readPump(h.manager, room)
}

// HandleWS 使用单例房间管理器、不限流的 websocket 接入
func HandleWS(w http.ResponseWriter, r *http.Request) {
	NewWSHandler(GetRoomManager(), 0, 0).ServeHTTP(w, r)
}

package server

// PlayerID 表示玩家唯一标识
type PlayerID string

// MaxPlayers 每个房间的玩家上限
const MaxPlayers = 2

// Transport 玩家连接的发送端。Send 必须非阻塞：发送队列满时丢弃并返回 false
type Transport interface {
	Send(msg any) bool
	Close()
}

// Player 房间内的玩家绑定
type Player struct {
	ID     PlayerID
	Number int // 槽位 1 或 2
	Conn   Transport

	// 出生点，开局时据此创建坦克
	SpawnX     float64
	SpawnY     float64
	SpawnAngle float64
	Color      string

	LastInputSequence int64
	Connected         bool
}

package server

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// RoomManager 撮合玩家并管理房间的生命周期。
// 注册表是唯一跨房间共享的可变状态，由 mu 保护
type RoomManager struct {
	mu          sync.RWMutex
	rooms       map[string]*Room
	order       []string // 创建顺序，用于首个空位匹配
	playerRooms map[PlayerID]*Room
	joining     map[PlayerID]*Room // 已预留槽位、Join 尚未返回
	pending     map[*Room]int      // 每个房间的预留数
	settings    RoomSettings
}

var (
	defaultManager *RoomManager
	once           sync.Once
)

// InitRoomManager 以给定配置初始化单例，只有第一次调用生效
func InitRoomManager(settings RoomSettings) *RoomManager {
	once.Do(func() {
		defaultManager = NewRoomManager(settings)
	})
	return defaultManager
}

// GetRoomManager 单例房间管理器（未初始化时使用默认配置）
func GetRoomManager() *RoomManager {
	return InitRoomManager(DefaultRoomSettings())
}

func NewRoomManager(settings RoomSettings) *RoomManager {
	return &RoomManager{
		rooms:       make(map[string]*Room),
		playerRooms: make(map[PlayerID]*Room),
		joining:     make(map[PlayerID]*Room),
		pending:     make(map[*Room]int),
		settings:    settings,
	}
}

func (m *RoomManager) Settings() RoomSettings { return m.settings }

// FindOrCreateRoom 返回第一个有空位的房间，没有则创建
func (m *RoomManager) FindOrCreateRoom() *Room {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.findOrCreateLocked()
}

func (m *RoomManager) findOrCreateLocked() *Room {
	for _, id := range m.order {
		if r := m.rooms[id]; r.NumPlayers()+m.pending[r] < MaxPlayers {
			return r
		}
	}
	r := NewRoom("room_"+uuid.NewString(), m.settings)
	m.rooms[r.ID] = r
	m.order = append(m.order, r.ID)
	r.Start()
	Log.Infow("room created", "room", r.ID, "rooms", len(m.rooms))
	return r
}

// AddPlayerToRoom 为玩家分配房间并加入，返回房间与槽位号。
// 持锁只做选房与预留，Join 在锁外进行，单个房间卡住不会拖住注册表
func (m *RoomManager) AddPlayerToRoom(id PlayerID, conn Transport) (*Room, int, error) {
	m.mu.Lock()
	if _, exists := m.playerRooms[id]; exists {
		m.mu.Unlock()
		return nil, 0, fmt.Errorf("player %s: %w", id, ErrAlreadyJoined)
	}
	if _, exists := m.joining[id]; exists {
		m.mu.Unlock()
		return nil, 0, fmt.Errorf("player %s: %w", id, ErrAlreadyJoined)
	}
	r := m.findOrCreateLocked()
	m.pending[r]++
	m.joining[id] = r
	m.mu.Unlock()

	n, err := r.Join(id, conn)

	m.mu.Lock()
	delete(m.joining, id)
	m.releaseLocked(r)
	if err == nil && m.rooms[r.ID] != r {
		// 等待期间管理器已关闭
		err = ErrRoomClosed
	}
	if err != nil {
		stop := m.collectLocked(r)
		m.mu.Unlock()
		if stop {
			r.Stop()
		}
		return nil, 0, fmt.Errorf("join %s: %w", r.ID, err)
	}
	m.playerRooms[id] = r
	m.mu.Unlock()
	return r, n, nil
}

// RemovePlayerFromRoom 移出玩家；房间空了且没有预留就停止并删除
func (m *RoomManager) RemovePlayerFromRoom(id PlayerID) {
	m.mu.Lock()
	r, ok := m.playerRooms[id]
	if !ok {
		m.mu.Unlock()
		return
	}
	delete(m.playerRooms, id)
	m.mu.Unlock()

	if remaining := r.Leave(id); remaining > 0 {
		return
	}

	m.mu.Lock()
	stop := m.collectLocked(r)
	m.mu.Unlock()
	if stop {
		r.Stop()
	}
}

func (m *RoomManager) releaseLocked(r *Room) {
	if m.pending[r] > 1 {
		m.pending[r]--
		return
	}
	delete(m.pending, r)
}

// collectLocked 房间无人且无预留时从注册表摘除，返回调用方是否需要 Stop
func (m *RoomManager) collectLocked(r *Room) bool {
	if m.rooms[r.ID] != r || m.pending[r] > 0 || r.NumPlayers() > 0 {
		return false
	}
	m.deleteRoomLocked(r.ID)
	Log.Infow("room deleted", "room", r.ID, "rooms", len(m.rooms))
	return true
}

func (m *RoomManager) deleteRoomLocked(id string) {
	delete(m.rooms, id)
	for i, rid := range m.order {
		if rid == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}

// PlayerRoom 查找玩家所在房间
func (m *RoomManager) PlayerRoom(id PlayerID) (*Room, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.playerRooms[id]
	return r, ok
}

// Rooms 按创建顺序返回注册表快照，调用方可在不持锁的情况下遍历
func (m *RoomManager) Rooms() []*Room {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Room, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.rooms[id])
	}
	return out
}

// RoomCount 当前房间数
func (m *RoomManager) RoomCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms)
}

// Tick 通知所有房间推进一帧；遍历快照，期间被删除的房间只会忽略信号
func (m *RoomManager) Tick() {
	for _, r := range m.Rooms() {
		r.Tick()
	}
}

// Broadcast 通知所有房间广播状态
func (m *RoomManager) Broadcast() {
	for _, r := range m.Rooms() {
		r.Broadcast()
	}
}

// Shutdown 停止所有房间（关闭连接、释放引擎）
func (m *RoomManager) Shutdown() {
	m.mu.Lock()
	rooms := make([]*Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		rooms = append(rooms, r)
	}
	m.rooms = make(map[string]*Room)
	m.order = nil
	m.playerRooms = make(map[PlayerID]*Room)
	m.joining = make(map[PlayerID]*Room)
	m.pending = make(map[*Room]int)
	m.mu.Unlock()

	for _, r := range rooms {
		r.Stop()
	}
	Log.Infow("room manager shut down", "rooms", len(rooms))
}

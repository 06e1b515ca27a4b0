package server

import (
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"tankbattle/game"
)

var (
	ErrRoomFull      = errors.New("room is full")
	ErrRoomClosed    = errors.New("room is closed")
	ErrAlreadyJoined = errors.New("player already in room")
)

// Phase 房间状态机：waiting -> running -> ended
type Phase int32

const (
	PhaseWaiting Phase = iota
	PhaseRunning
	PhaseEnded
)

func (p Phase) String() string {
	switch p {
	case PhaseWaiting:
		return "waiting"
	case PhaseRunning:
		return "running"
	case PhaseEnded:
		return "ended"
	}
	return "unknown"
}

// 出生点：距左右边界 spawnInset，垂直居中
const spawnInset = 150

// RoomSettings 新建房间时使用的配置
type RoomSettings struct {
	Game          game.Config
	AntiCheat     game.AntiCheatConfig
	SuspicionKick int // >0 时累计可疑次数达到该值即断开连接
}

// DefaultRoomSettings 默认配置，仅记录可疑行为不踢人
func DefaultRoomSettings() RoomSettings {
	return RoomSettings{
		Game:      game.DefaultConfig(),
		AntiCheat: game.DefaultAntiCheatConfig(),
	}
}

// 事件循环的入站事件
type joinReq struct {
	id    PlayerID
	conn  Transport
	reply chan joinResult
}

type joinResult struct {
	number int
	err    error
}

type leaveReq struct {
	id    PlayerID
	reply chan int
}

type inputReq struct {
	id  PlayerID
	msg InboundMessage
}

type infoReq struct {
	reply chan RoomInfo
}

// PlayerInfo 管理接口中的玩家摘要
type PlayerInfo struct {
	ID                string `json:"id"`
	Number            int    `json:"number"`
	LastInputSequence int64  `json:"lastInputSequence"`
}

// RoomInfo 管理接口中的房间摘要（在事件循环内采集）
type RoomInfo struct {
	ID        string              `json:"id"`
	Phase     string              `json:"phase"`
	Players   []PlayerInfo        `json:"players"`
	GameState game.GameState      `json:"gameState"`
	StateHash uint64              `json:"stateHash"`
	AntiCheat game.AntiCheatStats `json:"antiCheat"`
}

// Room 一局对战：两名玩家绑定到一个引擎。
// 所有状态只在 run 协程内修改；Join/Leave/OnInput 通过 inbox 投递，Tick/Broadcast 为可合并的信号
type Room struct {
	ID string

	cfg     game.Config
	engine  *game.Engine
	players map[PlayerID]*Player
	slots   [MaxPlayers]PlayerID
	phase   Phase

	lastUpdate time.Time
	now        func() time.Time
	kick       int

	log     *zap.SugaredLogger
	metrics *RoomMetrics

	inbox       chan any
	tickCh      chan struct{}
	broadcastCh chan struct{}
	quit        chan struct{}
	done        chan struct{}
	started     atomic.Bool
	stopOnce    sync.Once

	playerCount atomic.Int32
	phaseView   atomic.Int32
}

// NewRoom 创建房间，需调用 Start 启动事件循环
func NewRoom(id string, settings RoomSettings) *Room {
	r := &Room{
		ID:          id,
		cfg:         settings.Game,
		players:     make(map[PlayerID]*Player, MaxPlayers),
		phase:       PhaseWaiting,
		now:         time.Now,
		kick:        settings.SuspicionKick,
		log:         Log.With("room", id),
		metrics:     &RoomMetrics{},
		inbox:       make(chan any, 256), // 足够缓冲，避免网络读阻塞影响 Tick
		tickCh:      make(chan struct{}, 1),
		broadcastCh: make(chan struct{}, 1),
		quit:        make(chan struct{}),
		done:        make(chan struct{}),
	}
	r.engine = game.NewEngine(settings.Game,
		game.WithClock(func() int64 { return r.now().UnixMilli() }),
		game.WithLogger(r.log),
		game.WithAntiCheat(settings.AntiCheat),
		game.WithSuspicionPolicy(game.SuspicionPolicyFunc(r.onSuspicious)),
	)
	return r
}

// Start 启动事件循环
func (r *Room) Start() {
	if r.started.CompareAndSwap(false, true) {
		go r.run()
	}
}

// Stop 停止事件循环并释放引擎与历史缓冲，可重复调用
func (r *Room) Stop() {
	r.stopOnce.Do(func() { close(r.quit) })
	if r.started.Load() {
		<-r.done
	}
}

func (r *Room) run() {
	defer close(r.done)
	for {
		select {
		case <-r.quit:
			r.release()
			return
		case ev := <-r.inbox:
			r.handle(ev)
		case <-r.tickCh:
			r.update()
		case <-r.broadcastCh:
			r.broadcastState()
		}
	}
}

func (r *Room) handle(ev any) {
	switch ev := ev.(type) {
	case joinReq:
		n, err := r.addPlayer(ev.id, ev.conn)
		ev.reply <- joinResult{number: n, err: err}
	case leaveReq:
		ev.reply <- r.removePlayer(ev.id)
	case inputReq:
		r.processInput(ev.id, ev.msg)
	case infoReq:
		ev.reply <- r.info()
	default:
		r.log.Warnw("unknown room event", "event", ev)
	}
}

func (r *Room) release() {
	for _, p := range r.players {
		if p.Conn != nil {
			p.Conn.Close()
		}
	}
	r.players = make(map[PlayerID]*Player)
	r.slots = [MaxPlayers]PlayerID{}
	r.engine.Reset()
	r.setPhase(PhaseEnded)
	r.playerCount.Store(0)
	r.log.Infow("room released")
}

// Join 加入房间，返回槽位号
func (r *Room) Join(id PlayerID, conn Transport) (int, error) {
	reply := make(chan joinResult, 1)
	select {
	case r.inbox <- joinReq{id: id, conn: conn, reply: reply}:
	case <-r.quit:
		return 0, ErrRoomClosed
	}
	select {
	case res := <-reply:
		return res.number, res.err
	case <-r.done:
		return 0, ErrRoomClosed
	}
}

// Leave 移出玩家，返回剩余人数
func (r *Room) Leave(id PlayerID) int {
	reply := make(chan int, 1)
	select {
	case r.inbox <- leaveReq{id: id, reply: reply}:
	case <-r.quit:
		return 0
	}
	select {
	case n := <-reply:
		return n
	case <-r.done:
		return 0
	}
}

// OnInput 投递输入，不阻塞：队列满时丢弃
func (r *Room) OnInput(id PlayerID, msg InboundMessage) {
	select {
	case r.inbox <- inputReq{id: id, msg: msg}:
	default:
		r.metrics.IncInboxFullDiscarded()
	}
}

// Tick 请求推进一帧；上一次信号未消费时合并
func (r *Room) Tick() {
	select {
	case r.tickCh <- struct{}{}:
	default:
	}
}

// Broadcast 请求广播一次状态
func (r *Room) Broadcast() {
	select {
	case r.broadcastCh <- struct{}{}:
	default:
	}
}

// Info 通过事件循环采集房间摘要
func (r *Room) Info() RoomInfo {
	closed := RoomInfo{ID: r.ID, Phase: "closed", Players: []PlayerInfo{}}
	reply := make(chan RoomInfo, 1)
	select {
	case r.inbox <- infoReq{reply: reply}:
	case <-r.quit:
		return closed
	}
	select {
	case info := <-reply:
		return info
	case <-r.done:
		return closed
	}
}

// NumPlayers 当前玩家数，可跨协程读取
func (r *Room) NumPlayers() int { return int(r.playerCount.Load()) }

// Phase 当前阶段，可跨协程读取
func (r *Room) Phase() Phase { return Phase(r.phaseView.Load()) }

func (r *Room) Metrics() *RoomMetrics { return r.metrics }

func (r *Room) setPhase(p Phase) {
	r.phase = p
	r.phaseView.Store(int32(p))
}

func (r *Room) addPlayer(id PlayerID, conn Transport) (int, error) {
	if _, dup := r.players[id]; dup {
		return 0, ErrAlreadyJoined
	}
	if len(r.players) >= MaxPlayers {
		return 0, ErrRoomFull
	}
	if r.phase == PhaseEnded {
		// 上一局结束后留下的玩家与新玩家重新开局
		r.engine.Reset()
		for _, p := range r.players {
			p.LastInputSequence = 0
		}
		r.setPhase(PhaseWaiting)
	}

	slot := 0
	for i, occupant := range r.slots {
		if occupant == "" {
			slot = i
			break
		}
	}
	p := &Player{
		ID:        id,
		Number:    slot + 1,
		Conn:      conn,
		SpawnY:    r.cfg.CanvasHeight / 2,
		Connected: true,
	}
	if p.Number == 1 {
		p.SpawnX, p.SpawnAngle, p.Color = spawnInset, 0, game.ColorSlot1
	} else {
		p.SpawnX, p.SpawnAngle, p.Color = r.cfg.CanvasWidth-spawnInset, math.Pi, game.ColorSlot2
	}
	r.slots[slot] = id
	r.players[id] = p
	r.playerCount.Store(int32(len(r.players)))
	r.log.Infow("player joined", "player", id, "number", p.Number)

	r.send(p, InitMessage{
		Type:         MsgInit,
		PlayerID:     string(id),
		PlayerNumber: p.Number,
		GameState:    r.engine.Serialize(),
		Config:       r.cfg,
	})
	r.broadcast(PlayerJoinedMessage{Type: MsgPlayerJoined, PlayerID: string(id), PlayerNumber: p.Number}, id)

	if len(r.players) == MaxPlayers {
		r.startGame()
	}
	return p.Number, nil
}

func (r *Room) startGame() {
	tanks := make([]*game.Tank, 0, MaxPlayers)
	for _, id := range r.slots {
		p := r.players[id]
		tanks = append(tanks, r.engine.CreateTank(p.SpawnX, p.SpawnY, p.SpawnAngle, p.Color, string(p.ID)))
	}
	state := r.engine.StartGame(tanks)
	r.lastUpdate = r.now()
	r.setPhase(PhaseRunning)
	r.broadcast(GameStartMessage{Type: MsgGameStart, GameState: state}, "")
}

func (r *Room) removePlayer(id PlayerID) int {
	p, ok := r.players[id]
	if !ok {
		return len(r.players)
	}
	p.Connected = false
	delete(r.players, id)
	r.slots[p.Number-1] = ""
	r.playerCount.Store(int32(len(r.players)))
	if p.Conn != nil {
		p.Conn.Close()
	}
	r.log.Infow("player left", "player", id, "remaining", len(r.players))

	r.broadcast(PlayerLeftMessage{Type: MsgPlayerLeft, PlayerID: string(id)}, "")
	if r.phase == PhaseRunning {
		r.engine.Stop()
		r.setPhase(PhaseEnded)
	}
	return len(r.players)
}

func (r *Room) processInput(id PlayerID, msg InboundMessage) {
	if r.phase != PhaseRunning {
		return
	}
	p, ok := r.players[id]
	if !ok {
		return
	}
	if msg.Sequence <= p.LastInputSequence {
		r.metrics.IncStaleSeq()
		return
	}
	p.LastInputSequence = msg.Sequence

	err := r.engine.ApplyInput(string(id), msg.PlayerInput())
	switch {
	case err == nil:
		r.metrics.IncAccepted()
		r.send(p, InputConfirmMessage{
			Type:       MsgInputConfirm,
			Sequence:   msg.Sequence,
			ServerTime: r.now().UnixMilli(),
		})
	case errors.Is(err, game.ErrSuspiciousInput):
		r.metrics.IncSuspicious()
	case errors.Is(err, game.ErrInvalidInput):
		r.metrics.IncInvalid()
	default:
		r.log.Debugw("input rejected", "player", id, "err", err)
	}
}

func (r *Room) update() {
	if r.phase != PhaseRunning {
		return
	}
	start := time.Now()
	now := r.now()
	dt := now.Sub(r.lastUpdate).Seconds()
	r.lastUpdate = now

	state := r.engine.Update(dt)
	r.metrics.AddTick(time.Since(start).Nanoseconds())

	if w := r.engine.CheckGameEnd(); w != nil {
		r.endGame(w, state)
	} else if r.engine.IsDraw() {
		r.endGame(nil, state)
	}
}

func (r *Room) endGame(w *game.Winner, state game.GameState) {
	r.engine.Stop()
	r.setPhase(PhaseEnded)
	if w != nil {
		r.log.Infow("game ended", "winner", w.WinnerID, "score", w.WinnerScore, "loser", w.LoserID)
	} else {
		r.log.Infow("game ended in a draw")
	}
	state.Running = false
	r.broadcast(GameEndMessage{Type: MsgGameEnd, Winner: w, GameState: state}, "")
}

func (r *Room) broadcastState() {
	if r.phase != PhaseRunning {
		return
	}
	r.metrics.IncBroadcast()
	r.broadcast(StateUpdateMessage{
		Type:       MsgStateUpdate,
		ServerTime: r.now().UnixMilli(),
		GameState:  r.engine.Serialize(),
	}, "")
}

// onSuspicious 反作弊钩子：记录指标，达到阈值时断开连接（断开后由读协程走离开流程）
func (r *Room) onSuspicious(playerID string, rec game.SuspiciousActivity, total int) {
	if r.kick <= 0 || total < r.kick {
		return
	}
	p, ok := r.players[PlayerID(playerID)]
	if !ok || p.Conn == nil {
		return
	}
	r.log.Warnw("disconnecting suspicious player", "player", playerID, "total", total, "last", rec.Kind)
	p.Conn.Close()
}

func (r *Room) info() RoomInfo {
	info := RoomInfo{
		ID:        r.ID,
		Phase:     r.phase.String(),
		Players:   make([]PlayerInfo, 0, len(r.players)),
		GameState: r.engine.Serialize(),
		AntiCheat: r.engine.AntiCheatStats(),
	}
	for _, id := range r.slots {
		if p, ok := r.players[id]; ok {
			info.Players = append(info.Players, PlayerInfo{ID: string(p.ID), Number: p.Number, LastInputSequence: p.LastInputSequence})
		}
	}
	if h, ok := r.engine.LastStateHash(); ok {
		info.StateHash = h
	}
	return info
}

func (r *Room) send(p *Player, msg any) {
	if p.Conn == nil || !p.Connected {
		return
	}
	if !p.Conn.Send(msg) {
		r.metrics.IncSendDropped()
		r.log.Debugw("outbound message dropped", "player", p.ID)
	}
}

// broadcast 发送给房间内所有玩家，except 非空时跳过该玩家
func (r *Room) broadcast(msg any, except PlayerID) {
	for _, id := range r.slots {
		if id == "" || id == except {
			continue
		}
		if p, ok := r.players[id]; ok {
			r.send(p, msg)
		}
	}
}

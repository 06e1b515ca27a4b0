package game

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrUnknownPlayer   = errors.New("unknown player")
	ErrNotRunning      = errors.New("game not running")
	ErrSuspiciousInput = errors.New("suspicious input")
	ErrInvalidInput    = errors.New("invalid input")
)

// defaultInputDeltaMs 玩家第一条输入没有前序记录时使用的间隔
const defaultInputDeltaMs = 16

// Engine 单局对战的权威逻辑。非并发安全：调用方（房间事件循环）保证单写者
type Engine struct {
	cfg     Config
	physics *PhysicsEngine
	clock   func() int64
	log     *zap.SugaredLogger
	policy  SuspicionPolicy

	tanks    map[string]*Tank
	order    []string // 固定遍历顺序，保证碰撞处理确定
	bullets  []*Bullet
	gameTime int64
	running  bool

	inputHistory map[string][]InputRecord
	stateHistory []stateSnapshot
	antiCheat    *antiCheat
}

// Option 引擎可选项
type Option func(*Engine)

// WithClock 注入毫秒时钟（测试用）
func WithClock(clock func() int64) Option {
	return func(e *Engine) { e.clock = clock }
}

func WithLogger(l *zap.SugaredLogger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithAntiCheat 覆盖反作弊阈值
func WithAntiCheat(cfg AntiCheatConfig) Option {
	return func(e *Engine) { e.antiCheat.cfg = cfg }
}

func WithSuspicionPolicy(p SuspicionPolicy) Option {
	return func(e *Engine) { e.policy = p }
}

// NewEngine 创建引擎
func NewEngine(cfg Config, opts ...Option) *Engine {
	e := &Engine{
		cfg:          cfg,
		clock:        nowMillis,
		log:          zap.NewNop().Sugar(),
		tanks:        make(map[string]*Tank),
		inputHistory: make(map[string][]InputRecord),
		antiCheat:    newAntiCheat(DefaultAntiCheatConfig()),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.physics = NewPhysicsEngine(cfg, e.clock)
	e.physics.minInputInterval = e.antiCheat.cfg.MinInputIntervalMs
	return e
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}

func (e *Engine) Config() Config { return e.cfg }

func (e *Engine) Physics() *PhysicsEngine { return e.physics }

func (e *Engine) Running() bool { return e.running }

// AntiCheatStats 各玩家可疑行为计数与最近 5 条记录
func (e *Engine) AntiCheatStats() AntiCheatStats { return e.antiCheat.stats() }

// CreateTank 满血、无输入的新坦克
func (e *Engine) CreateTank(x, y, angle float64, color, playerID string) *Tank {
	return &Tank{
		ID:     playerID,
		X:      x,
		Y:      y,
		Angle:  NormalizeAngle(angle),
		Color:  color,
		Health: e.cfg.MaxHealth,
	}
}

// StartGame 用给定坦克初始化世界并开始计时，返回初始状态
func (e *Engine) StartGame(tanks []*Tank) GameState {
	e.tanks = make(map[string]*Tank, len(tanks))
	e.order = e.order[:0]
	for _, t := range tanks {
		if _, dup := e.tanks[t.ID]; !dup {
			e.order = append(e.order, t.ID)
		}
		e.tanks[t.ID] = t
	}
	e.bullets = nil
	e.running = true
	e.gameTime = e.clock()
	e.log.Infow("game started", "players", e.order)
	return e.Serialize()
}

// Stop 停止推进（对局结束或有人离开）
func (e *Engine) Stop() {
	if e.running {
		e.running = false
		e.log.Infow("game stopped")
	}
}

// Tank 查询坦克快照
func (e *Engine) Tank(playerID string) (TankState, bool) {
	t, ok := e.tanks[playerID]
	if !ok {
		return TankState{}, false
	}
	return t.ToState(), true
}

// ProcessPlayerInput 校验并应用输入，返回是否被接受
func (e *Engine) ProcessPlayerInput(playerID string, in PlayerInput) bool {
	return e.ApplyInput(playerID, in) == nil
}

// ApplyInput 与 ProcessPlayerInput 相同，但返回拒绝原因
func (e *Engine) ApplyInput(playerID string, in PlayerInput) error {
	tank, ok := e.tanks[playerID]
	if !ok {
		return ErrUnknownPlayer
	}
	if !e.running {
		return ErrNotRunning
	}

	now := e.clock()
	history := e.inputHistory[playerID]
	var lastSeq int64
	if len(history) > 0 {
		lastSeq = history[len(history)-1].Sequence
	}
	if kind, data, ok := e.antiCheat.check(playerID, in, lastSeq, len(history) > 0, now); !ok {
		rec, total := e.antiCheat.record(playerID, kind, data, now)
		e.log.Warnw("suspicious input", "player", playerID, "type", kind, "data", data)
		if e.policy != nil {
			e.policy.OnSuspicious(playerID, rec, total)
		}
		return fmt.Errorf("%w: %s", ErrSuspiciousInput, kind)
	}

	history = e.appendInputRecord(playerID, InputRecord{
		Sequence:   in.Sequence,
		Timestamp:  in.Timestamp,
		ServerTime: now,
		Input:      in.Input.State(),
	})

	delta := int64(defaultInputDeltaMs)
	if len(history) > 1 {
		delta = now - history[len(history)-2].ServerTime
	}
	if !e.physics.ValidateInput(in.Input, tank.Input, delta) {
		return ErrInvalidInput
	}

	tank.Input = in.Input.State()
	return nil
}

// Update 推进一个 tick；未运行时原样返回当前状态
func (e *Engine) Update(deltaTime float64) GameState {
	if !e.running {
		return e.Serialize()
	}

	e.saveStateToHistory()

	for _, id := range e.order {
		e.updateTank(e.tanks[id], deltaTime)
	}
	for _, b := range e.bullets {
		if b.Active {
			e.physics.UpdateBulletPosition(b, deltaTime)
		}
	}

	events := e.detectCollisions()

	live := e.bullets[:0]
	for _, b := range e.bullets {
		if b.Active {
			live = append(live, b)
		}
	}
	for i := len(live); i < len(e.bullets); i++ {
		e.bullets[i] = nil
	}
	e.bullets = live

	for _, ev := range events {
		e.logCollision(ev)
	}
	return e.Serialize()
}

func (e *Engine) updateTank(t *Tank, deltaTime float64) {
	e.physics.UpdateTankPosition(t, t.Input, deltaTime)
	if t.Input.Fire && e.CanFire(t.ID) {
		e.firePlayerBullet(t)
	}
}

// CanFire 冷却已过且在场子弹未达上限
func (e *Engine) CanFire(playerID string) bool {
	t, ok := e.tanks[playerID]
	if !ok {
		return false
	}
	if e.clock()-t.LastFireTime < e.cfg.FireCooldown {
		return false
	}
	return e.activeBullets(playerID) < e.cfg.MaxBullets
}

func (e *Engine) activeBullets(ownerID string) int {
	n := 0
	for _, b := range e.bullets {
		if b.Active && b.OwnerID == ownerID {
			n++
		}
	}
	return n
}

func (e *Engine) firePlayerBullet(t *Tank) *Bullet {
	now := e.clock()
	t.LastFireTime = now

	cos, sin := math.Cos(t.Angle), math.Sin(t.Angle)
	offset := e.cfg.TankSize/2 + muzzleOffset
	b := &Bullet{
		ID:          "bullet_" + uuid.NewString(),
		X:           t.X + cos*offset,
		Y:           t.Y + sin*offset,
		Angle:       t.Angle,
		VelocityX:   cos * e.cfg.BulletSpeed,
		VelocityY:   sin * e.cfg.BulletSpeed,
		OwnerID:     t.ID,
		Active:      true,
		CreatedTime: now,
	}
	e.bullets = append(e.bullets, b)
	return b
}

// CheckGameEnd 恰好一辆坦克血量归零且另有存活坦克时返回胜负，否则返回 nil。
// 双方同时归零不产生胜者，见 IsDraw。
func (e *Engine) CheckGameEnd() *Winner {
	var dead, alive []*Tank
	for _, id := range e.order {
		t := e.tanks[id]
		if t.Health <= 0 {
			dead = append(dead, t)
		} else {
			alive = append(alive, t)
		}
	}
	if len(dead) != 1 || len(alive) == 0 {
		return nil
	}
	return &Winner{
		WinnerID:    alive[0].ID,
		WinnerScore: alive[0].Score,
		LoserID:     dead[0].ID,
	}
}

// IsDraw 至少两辆坦克且全部血量归零
func (e *Engine) IsDraw() bool {
	if len(e.tanks) < 2 {
		return false
	}
	for _, t := range e.tanks {
		if t.Health > 0 {
			return false
		}
	}
	return true
}

// CompensatedState 按延迟外推的展示用状态，不影响权威世界
func (e *Engine) CompensatedState(latencyMs float64) GameState {
	inputs := make(map[string]InputState, len(e.tanks))
	for id, t := range e.tanks {
		inputs[id] = t.Input
	}
	return e.physics.CompensateForLatency(e.Serialize(), inputs, latencyMs)
}

// Serialize 导出对外状态（仅活跃子弹）
func (e *Engine) Serialize() GameState {
	s := GameState{
		Players:  make(map[string]TankState, len(e.tanks)),
		Bullets:  make([]BulletState, 0, len(e.bullets)),
		GameTime: e.gameTime,
		Running:  e.running,
	}
	for id, t := range e.tanks {
		s.Players[id] = t.ToState()
	}
	for _, b := range e.bullets {
		if b.Active {
			s.Bullets = append(s.Bullets, b.ToState())
		}
	}
	return s
}

// Reset 清空世界与历史，用于两局之间
func (e *Engine) Reset() {
	e.tanks = make(map[string]*Tank)
	e.order = nil
	e.bullets = nil
	e.gameTime = 0
	e.running = false
	e.inputHistory = make(map[string][]InputRecord)
	e.stateHistory = nil
	e.antiCheat.resetCounters()
}

package game

import "time"

// Config 游戏常量，init 时原样下发给客户端用于预测（字段名与客户端保持一致）
type Config struct {
	CanvasWidth   float64 `json:"CANVAS_WIDTH"`
	CanvasHeight  float64 `json:"CANVAS_HEIGHT"`
	TankSize      float64 `json:"TANK_SIZE"`
	TankSpeed     float64 `json:"TANK_SPEED"`
	TankTurnSpeed float64 `json:"TANK_TURN_SPEED"`
	BulletSpeed   float64 `json:"BULLET_SPEED"`
	BulletSize    float64 `json:"BULLET_SIZE"`
	MaxHealth     int     `json:"MAX_HEALTH"`
	BulletDamage  int     `json:"BULLET_DAMAGE"`
	FireCooldown  int64   `json:"FIRE_COOLDOWN"` // ms
	MaxBullets    int     `json:"MAX_BULLETS"`
	TickRate      int     `json:"TICK_RATE"`
	BroadcastRate int     `json:"BROADCAST_RATE"`
}

// DefaultConfig 默认对局参数
func DefaultConfig() Config {
	return Config{
		CanvasWidth:   800,
		CanvasHeight:  600,
		TankSize:      30,
		TankSpeed:     2,
		TankTurnSpeed: 0.05,
		BulletSpeed:   5,
		BulletSize:    4,
		MaxHealth:     100,
		BulletDamage:  20,
		FireCooldown:  500,
		MaxBullets:    3,
		TickRate:      60,
		BroadcastRate: 20,
	}
}

// TickInterval 模拟步长
func (c Config) TickInterval() time.Duration {
	if c.TickRate <= 0 {
		return time.Second / 60
	}
	return time.Second / time.Duration(c.TickRate)
}

// BroadcastInterval 广播间隔
func (c Config) BroadcastInterval() time.Duration {
	if c.BroadcastRate <= 0 {
		return time.Second / 20
	}
	return time.Second / time.Duration(c.BroadcastRate)
}

const (
	// BulletTTL 子弹最长存活时间
	BulletTTL = 5000 // ms
	// MinInputIntervalMs 两次被接受输入之间的最小间隔
	MinInputIntervalMs = 10
	// backwardFactor 后退速度系数
	backwardFactor = 0.7
	// muzzleOffset 炮口距车身边缘的距离
	muzzleOffset = 5
)

// AntiCheatConfig 反作弊阈值
type AntiCheatConfig struct {
	MaxInputRate         int   `json:"maxInputRate"`         // 每秒最大输入次数
	TimestampToleranceMs int64 `json:"timestampToleranceMs"` // 客户端时间戳与服务端时间的最大偏差
	MinInputIntervalMs   int64 `json:"minInputIntervalMs"`
}

// DefaultAntiCheatConfig 默认反作弊阈值
func DefaultAntiCheatConfig() AntiCheatConfig {
	return AntiCheatConfig{
		MaxInputRate:         100,
		TimestampToleranceMs: 5000,
		MinInputIntervalMs:   MinInputIntervalMs,
	}
}

package game

import "math"

const twoPi = 2 * math.Pi

// Point 平面坐标
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// PhysicsEngine 确定性物理：相同的 (输入, deltaTime) 序列在客户端和服务端得到相同结果。
// 运动按“每 tick 固定步长”推进，deltaTime 只用于校验，不参与积分。
type PhysicsEngine struct {
	cfg              Config
	clock            func() int64
	minInputInterval int64 // ms
}

func NewPhysicsEngine(cfg Config, clock func() int64) *PhysicsEngine {
	if clock == nil {
		clock = nowMillis
	}
	return &PhysicsEngine{cfg: cfg, clock: clock, minInputInterval: MinInputIntervalMs}
}

// UpdateTankPosition 先旋转再平移，最后夹紧到场地内。返回是否发生了变化
func (p *PhysicsEngine) UpdateTankPosition(t *Tank, in InputState, deltaTime float64) bool {
	ox, oy, oa := t.X, t.Y, t.Angle

	// 左右同时按下在校验阶段已被拒绝
	if in.TurnLeft {
		t.Angle -= p.cfg.TankTurnSpeed
	}
	if in.TurnRight {
		t.Angle += p.cfg.TankTurnSpeed
	}
	t.Angle = NormalizeAngle(t.Angle)

	x, y := t.X, t.Y
	cos, sin := math.Cos(t.Angle), math.Sin(t.Angle)
	if in.Forward {
		x += cos * p.cfg.TankSpeed
		y += sin * p.cfg.TankSpeed
	}
	if in.Backward {
		x -= cos * p.cfg.TankSpeed * backwardFactor
		y -= sin * p.cfg.TankSpeed * backwardFactor
	}
	t.X, t.Y = p.ClampToArena(x, y)

	return t.X != ox || t.Y != oy || t.Angle != oa
}

// NormalizeAngle 归一化到 [0, 2π)
func NormalizeAngle(a float64) float64 {
	a = math.Mod(a, twoPi)
	if a < 0 {
		a += twoPi
	}
	if a >= twoPi {
		a = 0
	}
	return a
}

// ClampToArena 坦克中心可达区域：场地内缩半个车身
func (p *PhysicsEngine) ClampToArena(x, y float64) (float64, float64) {
	half := p.cfg.TankSize / 2
	return clamp(x, half, p.cfg.CanvasWidth-half), clamp(y, half, p.cfg.CanvasHeight-half)
}

// InArena 坦克中心是否在可达区域内
func (p *PhysicsEngine) InArena(x, y float64) bool {
	half := p.cfg.TankSize / 2
	return x >= half && x <= p.cfg.CanvasWidth-half && y >= half && y <= p.cfg.CanvasHeight-half
}

// UpdateBulletPosition 按固定速度推进；越界或超过存活时间则失效
func (p *PhysicsEngine) UpdateBulletPosition(b *Bullet, deltaTime float64) {
	b.X += b.VelocityX
	b.Y += b.VelocityY

	if b.X < 0 || b.X > p.cfg.CanvasWidth || b.Y < 0 || b.Y > p.cfg.CanvasHeight {
		b.Active = false
	}
	if p.clock()-b.CreatedTime > BulletTTL {
		b.Active = false
	}
}

// CircleRectCollision 圆与轴对齐正方形（半边长 half）相交测试，含圆角情况
func CircleRectCollision(cx, cy, radius, rx, ry, half float64) bool {
	dx := math.Abs(cx - rx)
	dy := math.Abs(cy - ry)

	if dx > half+radius || dy > half+radius {
		return false
	}
	if dx <= half || dy <= half {
		return true
	}
	cornerX, cornerY := dx-half, dy-half
	return cornerX*cornerX+cornerY*cornerY <= radius*radius
}

// DetectBulletTankCollision 子弹（圆）与坦克（方）
func (p *PhysicsEngine) DetectBulletTankCollision(b *Bullet, t *Tank) bool {
	return CircleRectCollision(b.X, b.Y, p.cfg.BulletSize, t.X, t.Y, p.cfg.TankSize/2)
}

// DetectTankTankCollision 坦克之间按圆近似：中心距离小于车身尺寸即碰撞
func (p *PhysicsEngine) DetectTankTankCollision(a, b *Tank) bool {
	return distance(a.X, a.Y, b.X, b.Y) < p.cfg.TankSize
}

// ResolveTankCollision 沿中心连线各推开一半重叠量，再夹紧到场地内。
// 完全重合时方向未定义，不做处理。
func (p *PhysicsEngine) ResolveTankCollision(a, b *Tank) {
	dx := a.X - b.X
	dy := a.Y - b.Y
	dist := math.Sqrt(dx*dx + dy*dy)
	if dist >= p.cfg.TankSize || dist == 0 {
		return
	}

	push := (p.cfg.TankSize - dist) / 2
	pushX := dx / dist * push
	pushY := dy / dist * push

	a.X += pushX
	a.Y += pushY
	b.X -= pushX
	b.Y -= pushY

	a.X, a.Y = p.ClampToArena(a.X, a.Y)
	b.X, b.Y = p.ClampToArena(b.X, b.Y)
}

// PredictBulletPath 预测未来 steps 步的位置，越界后停止
func (p *PhysicsEngine) PredictBulletPath(b Bullet, steps int) []Point {
	path := make([]Point, 0, steps)
	x, y := b.X, b.Y
	for i := 0; i < steps; i++ {
		x += b.VelocityX
		y += b.VelocityY
		path = append(path, Point{X: x, Y: y})
		if x < 0 || x > p.cfg.CanvasWidth || y < 0 || y > p.cfg.CanvasHeight {
			break
		}
	}
	return path
}

// ValidateInput 结构、逻辑与频率校验。deltaTime 为距上一条输入的毫秒数
func (p *PhysicsEngine) ValidateInput(in InputPayload, previous InputState, deltaTime int64) bool {
	if !in.Complete() {
		return false
	}
	if *in.Forward && *in.Backward {
		return false
	}
	if *in.TurnLeft && *in.TurnRight {
		return false
	}
	if deltaTime < p.minInputInterval {
		return false
	}
	return true
}

// CompensateForLatency 按单程延迟（latency/2）线性外推一份状态副本，不修改输入
func (p *PhysicsEngine) CompensateForLatency(state GameState, inputs map[string]InputState, latencyMs float64) GameState {
	out := state.Clone()
	// 换算为 tick 数
	ticks := latencyMs / 2 / 1000 * float64(p.cfg.TickRate)

	for id, t := range out.Players {
		in, ok := inputs[id]
		if !ok {
			continue
		}
		cos, sin := math.Cos(t.Angle), math.Sin(t.Angle)
		if in.Forward {
			t.X += cos * p.cfg.TankSpeed * ticks
			t.Y += sin * p.cfg.TankSpeed * ticks
		}
		if in.Backward {
			t.X -= cos * p.cfg.TankSpeed * backwardFactor * ticks
			t.Y -= sin * p.cfg.TankSpeed * backwardFactor * ticks
		}
		if in.TurnLeft {
			t.Angle -= p.cfg.TankTurnSpeed * ticks
		}
		if in.TurnRight {
			t.Angle += p.cfg.TankTurnSpeed * ticks
		}
		t.Angle = NormalizeAngle(t.Angle)
		t.X, t.Y = p.ClampToArena(t.X, t.Y)
		out.Players[id] = t
	}
	for i := range out.Bullets {
		out.Bullets[i].X += out.Bullets[i].VelocityX * ticks
		out.Bullets[i].Y += out.Bullets[i].VelocityY * ticks
	}
	return out
}

// InterpolateState 在两帧之间插值坦克位置与朝向（角度走最短路径）
func InterpolateState(from, to GameState, factor float64) GameState {
	out := from.Clone()
	for id, a := range from.Players {
		b, ok := to.Players[id]
		if !ok {
			continue
		}
		a.X = Lerp(a.X, b.X, factor)
		a.Y = Lerp(a.Y, b.Y, factor)
		a.Angle = NormalizeAngle(LerpAngle(a.Angle, b.Angle, factor))
		out.Players[id] = a
	}
	return out
}

func Lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

// LerpAngle 沿最短方向插值，差值折叠到 [-π, π)
func LerpAngle(a, b, t float64) float64 {
	diff := math.Mod(b-a+math.Pi, twoPi)
	if diff < 0 {
		diff += twoPi
	}
	return a + (diff-math.Pi)*t
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func distance(x1, y1, x2, y2 float64) float64 {
	dx := x2 - x1
	dy := y2 - y1
	return math.Sqrt(dx*dx + dy*dy)
}

package game

// TankState 坦克快照
type TankState struct {
	ID     string  `json:"id"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Angle  float64 `json:"angle"`
	Color  string  `json:"color"`
	Health int     `json:"health"`
	Score  int     `json:"score"`
}

// BulletState 子弹快照（仅活跃子弹）
type BulletState struct {
	ID        string  `json:"id"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Angle     float64 `json:"angle"`
	VelocityX float64 `json:"velocityX"`
	VelocityY float64 `json:"velocityY"`
	OwnerID   string  `json:"ownerId"`
}

// GameState 对外唯一可见的世界表示
type GameState struct {
	Players  map[string]TankState `json:"players"`
	Bullets  []BulletState        `json:"bullets"`
	GameTime int64                `json:"gameTime"`
	Running  bool                 `json:"running"`
}

// EmptyState 对局开始前的空状态
func EmptyState() GameState {
	return GameState{
		Players: map[string]TankState{},
		Bullets: []BulletState{},
	}
}

// Clone 深拷贝
func (s GameState) Clone() GameState {
	out := GameState{
		Players:  make(map[string]TankState, len(s.Players)),
		Bullets:  make([]BulletState, len(s.Bullets)),
		GameTime: s.GameTime,
		Running:  s.Running,
	}
	for id, p := range s.Players {
		out.Players[id] = p
	}
	copy(out.Bullets, s.Bullets)
	return out
}

// Winner 对局结果
type Winner struct {
	WinnerID    string `json:"winnerId"`
	WinnerScore int    `json:"winnerScore"`
	LoserID     string `json:"loserId"`
}

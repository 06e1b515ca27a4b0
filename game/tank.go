package game

// 出生点颜色
const (
	ColorSlot1 = "#3498db"
	ColorSlot2 = "#e74c3c"
)

// Tank 服务端权威的坦克实体，只由 GameEngine 修改
type Tank struct {
	ID           string
	X            float64
	Y            float64
	Angle        float64 // 弧度，[0, 2π)
	Color        string
	Health       int
	Score        int
	LastFireTime int64 // ms
	Input        InputState
}

// ToState 导出为可序列化快照（不含输入与射击计时）
func (t *Tank) ToState() TankState {
	return TankState{
		ID:     t.ID,
		X:      t.X,
		Y:      t.Y,
		Angle:  t.Angle,
		Color:  t.Color,
		Health: t.Health,
		Score:  t.Score,
	}
}

package game

// Bullet 子弹：命中、越界或超时后置为 inactive，随后在本 tick 内被清理
type Bullet struct {
	ID          string
	X           float64
	Y           float64
	Angle       float64
	VelocityX   float64
	VelocityY   float64
	OwnerID     string
	Active      bool
	CreatedTime int64 // ms
}

func (b *Bullet) ToState() BulletState {
	return BulletState{
		ID:        b.ID,
		X:         b.X,
		Y:         b.Y,
		Angle:     b.Angle,
		VelocityX: b.VelocityX,
		VelocityY: b.VelocityY,
		OwnerID:   b.OwnerID,
	}
}

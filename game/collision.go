package game

// CollisionKind 碰撞事件类型
type CollisionKind string

const (
	CollisionBulletHit CollisionKind = "bullet_hit"
	CollisionTank      CollisionKind = "tank_collision"
)

// CollisionEvent 一次碰撞的结果，仅在服务端内部记录
type CollisionEvent struct {
	Kind      CollisionKind
	BulletID  string
	ShooterID string
	TargetID  string
	Damage    int
	OldHealth int
	NewHealth int
	// 坦克互撞
	Player1ID string
	Player2ID string
	Timestamp int64
}

// detectCollisions 检测并立即结算：子弹命中扣血加分，坦克互撞推开
func (e *Engine) detectCollisions() []CollisionEvent {
	var events []CollisionEvent
	now := e.clock()

	for _, b := range e.bullets {
		if !b.Active {
			continue
		}
		for _, id := range e.order {
			target := e.tanks[id]
			if target.ID == b.OwnerID {
				continue
			}
			if !e.physics.DetectBulletTankCollision(b, target) {
				continue
			}
			b.Active = false
			old := target.Health
			target.Health -= e.cfg.BulletDamage
			if target.Health < 0 {
				target.Health = 0
			}
			if shooter, ok := e.tanks[b.OwnerID]; ok {
				shooter.Score++
			}
			events = append(events, CollisionEvent{
				Kind:      CollisionBulletHit,
				BulletID:  b.ID,
				ShooterID: b.OwnerID,
				TargetID:  target.ID,
				Damage:    e.cfg.BulletDamage,
				OldHealth: old,
				NewHealth: target.Health,
				Timestamp: now,
			})
			break
		}
	}

	for i := 0; i < len(e.order); i++ {
		for j := i + 1; j < len(e.order); j++ {
			a, b := e.tanks[e.order[i]], e.tanks[e.order[j]]
			if !e.physics.DetectTankTankCollision(a, b) {
				continue
			}
			e.physics.ResolveTankCollision(a, b)
			events = append(events, CollisionEvent{
				Kind:      CollisionTank,
				Player1ID: a.ID,
				Player2ID: b.ID,
				Timestamp: now,
			})
		}
	}
	return events
}

func (e *Engine) logCollision(ev CollisionEvent) {
	switch ev.Kind {
	case CollisionBulletHit:
		e.log.Debugw("bullet hit", "shooter", ev.ShooterID, "target", ev.TargetID, "damage", ev.Damage, "health", ev.NewHealth)
	case CollisionTank:
		e.log.Debugw("tank collision", "a", ev.Player1ID, "b", ev.Player2ID)
	}
}

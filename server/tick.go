package server

import (
	"context"
	"time"
)

// RunSchedulers 启动两个进程级定时器：快 Tick 推进模拟，慢 Tick 广播状态。
// 两者互相独立，广播耗时不会影响模拟节奏；阻塞直到 ctx 取消
func (m *RoomManager) RunSchedulers(ctx context.Context) {
	go m.schedule(ctx, m.settings.Game.TickInterval(), m.Tick)
	m.schedule(ctx, m.settings.Game.BroadcastInterval(), m.Broadcast)
}

func (m *RoomManager) schedule(ctx context.Context, interval time.Duration, fn func()) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn()
		}
	}
}

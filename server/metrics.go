package server

import (
	"sync/atomic"
)

// RoomMetrics 记录房间运行期的关键指标（用于监控与调试），可跨协程读取
type RoomMetrics struct {
	TickCount          int64 // 实际推进的 Tick 次数
	Broadcasts         int64 // state_update 广播次数
	InputsAccepted     int64 // 被引擎接受的输入数
	InputsSuspicious   int64 // 被反作弊拦截的输入数
	InputsInvalid      int64 // 物理校验失败的输入数
	StaleSeqDropped    int64 // 房间层因旧序列号丢弃的输入数
	InboxFullDiscarded int64 // 因事件队列满被丢弃的输入数
	SendDropped        int64 // 因发送队列满被丢弃的出站消息数
	TotalTickNs        int64 // Tick 累计耗时（纳秒）
}

func (m *RoomMetrics) IncAccepted()           { atomic.AddInt64(&m.InputsAccepted, 1) }
func (m *RoomMetrics) IncSuspicious()         { atomic.AddInt64(&m.InputsSuspicious, 1) }
func (m *RoomMetrics) IncInvalid()            { atomic.AddInt64(&m.InputsInvalid, 1) }
func (m *RoomMetrics) IncStaleSeq()           { atomic.AddInt64(&m.StaleSeqDropped, 1) }
func (m *RoomMetrics) IncInboxFullDiscarded() { atomic.AddInt64(&m.InboxFullDiscarded, 1) }
func (m *RoomMetrics) IncSendDropped()        { atomic.AddInt64(&m.SendDropped, 1) }
func (m *RoomMetrics) IncBroadcast()          { atomic.AddInt64(&m.Broadcasts, 1) }
func (m *RoomMetrics) AddTick(ns int64) {
	atomic.AddInt64(&m.TickCount, 1)
	atomic.AddInt64(&m.TotalTickNs, ns)
}

// Snapshot 返回只读副本，便于 HTTP 输出
func (m *RoomMetrics) Snapshot() map[string]any {
	tick := atomic.LoadInt64(&m.TickCount)
	total := atomic.LoadInt64(&m.TotalTickNs)
	var avgMs float64
	if tick > 0 {
		avgMs = float64(total) / float64(tick) / 1e6
	}
	return map[string]any{
		"tick_count":           tick,
		"broadcasts":           atomic.LoadInt64(&m.Broadcasts),
		"inputs_accepted":      atomic.LoadInt64(&m.InputsAccepted),
		"inputs_suspicious":    atomic.LoadInt64(&m.InputsSuspicious),
		"inputs_invalid":       atomic.LoadInt64(&m.InputsInvalid),
		"stale_seq_dropped":    atomic.LoadInt64(&m.StaleSeqDropped),
		"inbox_full_discarded": atomic.LoadInt64(&m.InboxFullDiscarded),
		"send_dropped":         atomic.LoadInt64(&m.SendDropped),
		"avg_tick_ms":          avgMs,
	}
}

package game

import "math"

// SuspicionKind 可疑行为类型
type SuspicionKind string

const (
	SuspicionHighInputRate    SuspicionKind = "high_input_rate"
	SuspicionInvalidTimestamp SuspicionKind = "invalid_timestamp"
	SuspicionInvalidSequence  SuspicionKind = "invalid_sequence"
)

const (
	maxSuspiciousRecords = 50
	inputRateWindowMs    = 1000
)

// SuspiciousActivity 可疑行为记录（仅诊断用途，模拟本身从不读取）
type SuspiciousActivity struct {
	Kind      SuspicionKind `json:"type"`
	Data      int64         `json:"data"`
	Timestamp int64         `json:"timestamp"`
}

// SuspicionPolicy 可疑行为的处置钩子。total 为该玩家累计的可疑次数（不受日志裁剪影响）
type SuspicionPolicy interface {
	OnSuspicious(playerID string, rec SuspiciousActivity, total int)
}

// SuspicionPolicyFunc 函数形式的 SuspicionPolicy
type SuspicionPolicyFunc func(playerID string, rec SuspiciousActivity, total int)

func (f SuspicionPolicyFunc) OnSuspicious(playerID string, rec SuspiciousActivity, total int) {
	f(playerID, rec, total)
}

// PlayerSuspicion 单个玩家的反作弊统计
type PlayerSuspicion struct {
	SuspiciousCount  int                  `json:"suspiciousCount"`
	RecentActivities []SuspiciousActivity `json:"recentActivities"`
}

// AntiCheatStats 反作弊统计汇总
type AntiCheatStats struct {
	TotalSuspiciousActivities int                        `json:"totalSuspiciousActivities"`
	PlayerStats               map[string]PlayerSuspicion `json:"playerStats"`
}

type inputCounter struct {
	count     int
	lastReset int64
}

// antiCheat 输入频率、时间戳与序列号检查
type antiCheat struct {
	cfg        AntiCheatConfig
	counts     map[string]*inputCounter
	activities map[string][]SuspiciousActivity
	totals     map[string]int
}

func newAntiCheat(cfg AntiCheatConfig) *antiCheat {
	return &antiCheat{
		cfg:        cfg,
		counts:     make(map[string]*inputCounter),
		activities: make(map[string][]SuspiciousActivity),
		totals:     make(map[string]int),
	}
}

// check 返回命中的可疑类型及证据值；ok=false 表示应拒绝该输入。
// 频率计数对每条到达的输入都累加，包括随后被拒绝的。
func (a *antiCheat) check(playerID string, in PlayerInput, lastSeq int64, hasLast bool, now int64) (SuspicionKind, int64, bool) {
	c, ok := a.counts[playerID]
	if !ok {
		c = &inputCounter{lastReset: now}
		a.counts[playerID] = c
	}
	if now-c.lastReset > inputRateWindowMs {
		c.count = 0
		c.lastReset = now
	}
	c.count++
	if c.count > a.cfg.MaxInputRate {
		return SuspicionHighInputRate, int64(c.count), false
	}

	if skew := absDiff(now, in.Timestamp); skew > a.cfg.TimestampToleranceMs {
		return SuspicionInvalidTimestamp, skew, false
	}

	if hasLast && in.Sequence <= lastSeq {
		return SuspicionInvalidSequence, in.Sequence, false
	}
	return "", 0, true
}

// absDiff |a-b|，超出 int64 范围时取 MaxInt64
func absDiff(a, b int64) int64 {
	if a < b {
		a, b = b, a
	}
	if d := a - b; d >= 0 {
		return d
	}
	return math.MaxInt64
}

// record 追加一条可疑记录，超过上限时丢弃较早的一半
func (a *antiCheat) record(playerID string, kind SuspicionKind, data, now int64) (SuspiciousActivity, int) {
	rec := SuspiciousActivity{Kind: kind, Data: data, Timestamp: now}
	list := append(a.activities[playerID], rec)
	if len(list) > maxSuspiciousRecords {
		list = append([]SuspiciousActivity(nil), list[maxSuspiciousRecords/2:]...)
	}
	a.activities[playerID] = list
	a.totals[playerID]++
	return rec, a.totals[playerID]
}

func (a *antiCheat) stats() AntiCheatStats {
	out := AntiCheatStats{PlayerStats: make(map[string]PlayerSuspicion, len(a.activities))}
	for id, list := range a.activities {
		out.TotalSuspiciousActivities += len(list)
		from := len(list) - 5
		if from < 0 {
			from = 0
		}
		out.PlayerStats[id] = PlayerSuspicion{
			SuspiciousCount:  len(list),
			RecentActivities: append([]SuspiciousActivity(nil), list[from:]...),
		}
	}
	return out
}

func (a *antiCheat) resetCounters() {
	a.counts = make(map[string]*inputCounter)
}

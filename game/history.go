package game

const (
	maxStateHistory = 300 // 60fps 下约 5 秒
	maxInputHistory = 200
	// rollbackToleranceMs 回滚时允许的时间误差
	rollbackToleranceMs = 50
)

// stateSnapshot 某一 tick 开始前的世界副本
type stateSnapshot struct {
	timestamp int64
	tanks     map[string]Tank
	bullets   []Bullet
	hash      uint64
}

func (e *Engine) saveStateToHistory() {
	snap := stateSnapshot{
		timestamp: e.clock(),
		tanks:     make(map[string]Tank, len(e.tanks)),
		bullets:   make([]Bullet, 0, len(e.bullets)),
	}
	for id, t := range e.tanks {
		snap.tanks[id] = *t
	}
	for _, b := range e.bullets {
		snap.bullets = append(snap.bullets, *b)
	}
	hash, err := CalculateStateHash(e.Serialize())
	if err != nil {
		e.log.Warnw("state hash failed", "err", err)
	}
	snap.hash = hash

	e.stateHistory = append(e.stateHistory, snap)
	if len(e.stateHistory) > maxStateHistory {
		e.stateHistory = append([]stateSnapshot(nil), e.stateHistory[maxStateHistory/2:]...)
	}
}

// RollbackToTime 将世界恢复到与 ts 相差不超过 50ms 的历史快照。仅用于诊断
func (e *Engine) RollbackToTime(ts int64) bool {
	for _, snap := range e.stateHistory {
		d := snap.timestamp - ts
		if d < 0 {
			d = -d
		}
		if d >= rollbackToleranceMs {
			continue
		}
		tanks := make(map[string]*Tank, len(snap.tanks))
		for id, t := range snap.tanks {
			cp := t
			tanks[id] = &cp
		}
		bullets := make([]*Bullet, 0, len(snap.bullets))
		for i := range snap.bullets {
			cp := snap.bullets[i]
			bullets = append(bullets, &cp)
		}
		e.tanks = tanks
		e.bullets = bullets
		order := e.order[:0:0]
		for _, id := range e.order {
			if _, ok := tanks[id]; ok {
				order = append(order, id)
			}
		}
		e.order = order
		return true
	}
	return false
}

// LastStateHash 最近一次快照的摘要
func (e *Engine) LastStateHash() (uint64, bool) {
	if len(e.stateHistory) == 0 {
		return 0, false
	}
	return e.stateHistory[len(e.stateHistory)-1].hash, true
}

// StateHistoryLen 当前保留的快照数
func (e *Engine) StateHistoryLen() int {
	return len(e.stateHistory)
}

func (e *Engine) appendInputRecord(playerID string, rec InputRecord) []InputRecord {
	list := append(e.inputHistory[playerID], rec)
	if len(list) > maxInputHistory {
		list = append([]InputRecord(nil), list[maxInputHistory/2:]...)
	}
	e.inputHistory[playerID] = list
	return list
}

// PlayerInputHistory 返回序列号大于 fromSequence 的输入记录，供客户端校正
func (e *Engine) PlayerInputHistory(playerID string, fromSequence int64) []InputRecord {
	var out []InputRecord
	for _, rec := range e.inputHistory[playerID] {
		if rec.Sequence > fromSequence {
			out = append(out, rec)
		}
	}
	return out
}

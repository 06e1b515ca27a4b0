package game

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/vmihailenco/msgpack/v5"
	"lukechampine.com/blake3"
)

type hashTank struct {
	X      float64 `msgpack:"x"`
	Y      float64 `msgpack:"y"`
	Angle  float64 `msgpack:"angle"`
	Health int     `msgpack:"health"`
	Score  int     `msgpack:"score"`
}

type hashBullet struct {
	X       float64 `msgpack:"x"`
	Y       float64 `msgpack:"y"`
	OwnerID string  `msgpack:"ownerId"`
}

type hashState struct {
	Players map[string]hashTank `msgpack:"players"`
	Bullets []hashBullet        `msgpack:"bullets"`
}

// CalculateStateHash 状态摘要，仅用于一致性校验，不参与任何玩法判定。
// 位置保留两位小数、角度保留三位，按 key 排序后用 msgpack 编码再取 blake3 前 8 字节。
func CalculateStateHash(state GameState) (uint64, error) {
	hs := hashState{
		Players: make(map[string]hashTank, len(state.Players)),
		Bullets: make([]hashBullet, 0, len(state.Bullets)),
	}
	for id, p := range state.Players {
		hs.Players[id] = hashTank{
			X:      round(p.X, 100),
			Y:      round(p.Y, 100),
			Angle:  round(p.Angle, 1000),
			Health: p.Health,
			Score:  p.Score,
		}
	}
	for _, b := range state.Bullets {
		hs.Bullets = append(hs.Bullets, hashBullet{X: round(b.X, 100), Y: round(b.Y, 100), OwnerID: b.OwnerID})
	}

	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetSortMapKeys(true)
	if err := enc.Encode(&hs); err != nil {
		return 0, err
	}
	sum := blake3.Sum256(buf.Bytes())
	return binary.BigEndian.Uint64(sum[:8]), nil
}

func round(v, scale float64) float64 {
	return math.Round(v*scale) / scale
}

package game

import "testing"

func hashOf(t *testing.T, s GameState) uint64 {
	t.Helper()
	h, err := CalculateStateHash(s)
	if err != nil {
		t.Fatalf("CalculateStateHash: %v", err)
	}
	return h
}

func sampleState() GameState {
	s := EmptyState()
	s.Players["a"] = TankState{ID: "a", X: 100.123, Y: 300, Angle: 0.5, Health: 80, Score: 1}
	s.Players["b"] = TankState{ID: "b", X: 650, Y: 300, Angle: 3.14159, Health: 100}
	s.Bullets = append(s.Bullets, BulletState{ID: "bullet_1", X: 200, Y: 300, OwnerID: "a"})
	return s
}

func TestStateHashStable(t *testing.T) {
	s := sampleState()
	if hashOf(t, s) != hashOf(t, s.Clone()) {
		t.Fatal("identical states hashed differently")
	}
}

func TestStateHashIgnoresSubPrecisionNoise(t *testing.T) {
	s := sampleState()
	noisy := s.Clone()
	p := noisy.Players["a"]
	p.X += 0.0001
	p.Angle += 0.00001
	noisy.Players["a"] = p
	// id 与颜色不参与摘要
	noisy.Bullets[0].ID = "bullet_other"
	if hashOf(t, s) != hashOf(t, noisy) {
		t.Fatal("hash changed below rounding precision")
	}
}

func TestStateHashDetectsChanges(t *testing.T) {
	base := hashOf(t, sampleState())

	moved := sampleState()
	p := moved.Players["b"]
	p.X += 0.5
	moved.Players["b"] = p
	if hashOf(t, moved) == base {
		t.Error("position change not reflected")
	}

	hurt := sampleState()
	p = hurt.Players["a"]
	p.Health -= 20
	hurt.Players["a"] = p
	if hashOf(t, hurt) == base {
		t.Error("health change not reflected")
	}

	owner := sampleState()
	owner.Bullets[0].OwnerID = "b"
	if hashOf(t, owner) == base {
		t.Error("bullet owner change not reflected")
	}
}

package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigDefaults(t *testing.T) {
	c, err := LoadConfig(nil)
	if err != nil {
		t.Fatal(err)
	}
	if c.Addr != ":8080" || c.TickRate != 60 || c.BroadcastRate != 20 || c.MaxInputRate != 100 || c.TimestampToleranceMs != 5000 {
		t.Fatalf("defaults = %+v", c)
	}
	if c.SuspicionKick != 0 {
		t.Fatal("suspicion kick should be disabled by default")
	}
}

func TestLoadConfigEnvAndFlags(t *testing.T) {
	t.Setenv("TANK_TICK_RATE", "30")
	t.Setenv("TANK_MAX_INPUT_RATE", "40")
	t.Setenv("TANK_SUSPICION_KICK", "bogus")

	c, err := LoadConfig([]string{"-broadcast-rate", "10", "-suspicion-kick", "7"})
	if err != nil {
		t.Fatal(err)
	}
	if c.TickRate != 30 || c.BroadcastRate != 10 || c.MaxInputRate != 40 || c.SuspicionKick != 7 {
		t.Fatalf("config = %+v", c)
	}

	s := c.RoomSettings()
	if s.Game.TickRate != 30 || s.Game.BroadcastRate != 10 || s.Game.CanvasWidth != 800 {
		t.Fatalf("game config = %+v", s.Game)
	}
	if s.AntiCheat.MaxInputRate != 40 || s.AntiCheat.MinInputIntervalMs != 10 || s.SuspicionKick != 7 {
		t.Fatalf("room settings = %+v", s)
	}
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	for _, args := range [][]string{
		{"-tick-rate", "0"},
		{"-broadcast-rate", "-1"},
		{"-timestamp-tolerance", "-5"},
		{"-no-such-flag"},
	} {
		if _, err := LoadConfig(args); err == nil {
			t.Errorf("LoadConfig(%v) succeeded", args)
		}
	}
}

func TestLoadEnvFile(t *testing.T) {
	if err := LoadEnv(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatalf("missing .env should be ignored: %v", err)
	}

	path := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(path, []byte("TANK_TEST_ADDR_FROM_FILE=:9999\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("TANK_TEST_ADDR_FROM_FILE") })
	if err := LoadEnv(path); err != nil {
		t.Fatal(err)
	}
	if got := os.Getenv("TANK_TEST_ADDR_FROM_FILE"); got != ":9999" {
		t.Fatalf("env = %q", got)
	}
}

func TestAdminHandlers(t *testing.T) {
	m := NewRoomManager(DefaultRoomSettings())
	defer m.Shutdown()
	m.AddPlayerToRoom("a", &fakeTransport{})
	m.AddPlayerToRoom("b", &fakeTransport{})
	h := NewAdminHandlers(m, Config{Addr: ":8080", TickRate: 60})

	get := func(handler http.HandlerFunc, path string) map[string]any {
		t.Helper()
		rec := httptest.NewRecorder()
		handler(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: status %d", path, rec.Code)
		}
		var out map[string]any
		if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
			t.Fatalf("%s: %v", path, err)
		}
		return out
	}

	cfg := get(h.HandleConfig, "/admin/config")
	if cfg["game"].(map[string]any)["MAX_HEALTH"].(float64) != 100 || cfg["server"].(map[string]any)["addr"] != ":8080" {
		t.Fatalf("config = %v", cfg)
	}

	rooms := get(h.HandleRooms, "/admin/rooms")["rooms"].([]any)
	if len(rooms) != 1 {
		t.Fatalf("rooms = %v", rooms)
	}
	room := rooms[0].(map[string]any)
	if room["phase"] != "running" || len(room["players"].([]any)) != 2 {
		t.Fatalf("room = %v", room)
	}

	metrics := get(h.HandleMetrics, "/metrics")
	if metrics["room_count"].(float64) != 1 {
		t.Fatalf("metrics = %v", metrics)
	}

	rec := httptest.NewRecorder()
	h.HandleConfig(rec, httptest.NewRequest(http.MethodPost, "/admin/config", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST status = %d", rec.Code)
	}
}

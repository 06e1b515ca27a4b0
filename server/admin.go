package server

import (
	"encoding/json"
	"net/http"
)

// AdminHandlers 管理与监控接口
type AdminHandlers struct {
	manager *RoomManager
	config  Config
}

func NewAdminHandlers(m *RoomManager, cfg Config) *AdminHandlers {
	return &AdminHandlers{manager: m, config: cfg}
}

// HandleConfig 返回玩法常量与服务端配置
// GET /admin/config
func (h *AdminHandlers) HandleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	settings := h.manager.Settings()
	writeJSON(w, map[string]any{
		"game":      settings.Game,
		"antiCheat": settings.AntiCheat,
		"server":    h.config,
	})
}

// HandleRooms 每个房间的阶段、玩家与反作弊统计（经房间事件循环采集）
// GET /admin/rooms
func (h *AdminHandlers) HandleRooms(w http.ResponseWriter, r *http.Request) {
	rooms := h.manager.Rooms()
	out := make([]RoomInfo, 0, len(rooms))
	for _, room := range rooms {
		out = append(out, room.Info())
	}
	writeJSON(w, map[string]any{"rooms": out})
}

// HandleMetrics 输出所有房间的运行指标
// GET /metrics
func (h *AdminHandlers) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	rooms := h.manager.Rooms()
	perRoom := make(map[string]any, len(rooms))
	for _, room := range rooms {
		perRoom[room.ID] = map[string]any{
			"phase":   room.Phase().String(),
			"players": room.NumPlayers(),
			"metrics": room.Metrics().Snapshot(),
		}
	}
	writeJSON(w, map[string]any{
		"room_count": len(rooms),
		"rooms":      perRoom,
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		Log.Warnw("write json response", "err", err)
	}
}

package server

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"tankbattle/game"
)

// Config 服务端配置：命令行参数优先，默认值取自环境变量（可由 .env 提供）
type Config struct {
	Addr                 string  `json:"addr"`
	LogFile              string  `json:"logFile"`
	LogStderr            bool    `json:"logStderr"`
	TickRate             int     `json:"tickRate"`
	BroadcastRate        int     `json:"broadcastRate"`
	MaxInputRate         int     `json:"maxInputRate"`
	TimestampToleranceMs int64   `json:"timestampToleranceMs"`
	ConnRate             float64 `json:"connRate"`
	ConnBurst            int     `json:"connBurst"`
	SuspicionKick        int     `json:"suspicionKick"`
}

// LoadEnv 加载 .env，文件不存在不算错误
func LoadEnv(files ...string) error {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load env: %w", err)
	}
	return nil
}

// LoadConfig 解析命令行参数，args 不含程序名
func LoadConfig(args []string) (Config, error) {
	gc := game.DefaultConfig()
	ac := game.DefaultAntiCheatConfig()

	var c Config
	flags := flag.NewFlagSet("tankbattle", flag.ContinueOnError)
	flags.StringVar(&c.Addr, "addr", envString("TANK_ADDR", ":8080"), "server listen address, e.g. :8080")
	flags.StringVar(&c.LogFile, "log-file", envString("TANK_LOG_FILE", "tankbattle.log"), "log file path (rotated)")
	flags.BoolVar(&c.LogStderr, "log-stderr", false, "also write logs to stderr")
	flags.IntVar(&c.TickRate, "tick-rate", envInt("TANK_TICK_RATE", gc.TickRate), "simulation ticks per second")
	flags.IntVar(&c.BroadcastRate, "broadcast-rate", envInt("TANK_BROADCAST_RATE", gc.BroadcastRate), "state broadcasts per second")
	flags.IntVar(&c.MaxInputRate, "max-input-rate", envInt("TANK_MAX_INPUT_RATE", ac.MaxInputRate), "max inputs per player per second")
	flags.Int64Var(&c.TimestampToleranceMs, "timestamp-tolerance", int64(envInt("TANK_TIMESTAMP_TOLERANCE_MS", int(ac.TimestampToleranceMs))), "allowed client clock skew in ms")
	flags.Float64Var(&c.ConnRate, "conn-rate", envFloat("TANK_CONN_RATE", 1), "websocket handshakes per second per IP (0 disables)")
	flags.IntVar(&c.ConnBurst, "conn-burst", envInt("TANK_CONN_BURST", 5), "handshake burst per IP")
	flags.IntVar(&c.SuspicionKick, "suspicion-kick", envInt("TANK_SUSPICION_KICK", 0), "disconnect after N suspicious inputs (0 = log only)")
	if err := flags.Parse(args); err != nil {
		return Config{}, err
	}
	if err := c.validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c Config) validate() error {
	switch {
	case c.TickRate <= 0:
		return fmt.Errorf("tick rate must be positive, got %d", c.TickRate)
	case c.BroadcastRate <= 0:
		return fmt.Errorf("broadcast rate must be positive, got %d", c.BroadcastRate)
	case c.MaxInputRate <= 0:
		return fmt.Errorf("max input rate must be positive, got %d", c.MaxInputRate)
	case c.TimestampToleranceMs < 0:
		return fmt.Errorf("timestamp tolerance must not be negative, got %d", c.TimestampToleranceMs)
	}
	return nil
}

// GameConfig 玩法常量，频率按服务端配置覆盖
func (c Config) GameConfig() game.Config {
	gc := game.DefaultConfig()
	gc.TickRate = c.TickRate
	gc.BroadcastRate = c.BroadcastRate
	return gc
}

func (c Config) AntiCheat() game.AntiCheatConfig {
	ac := game.DefaultAntiCheatConfig()
	ac.MaxInputRate = c.MaxInputRate
	ac.TimestampToleranceMs = c.TimestampToleranceMs
	return ac
}

func (c Config) RoomSettings() RoomSettings {
	return RoomSettings{
		Game:          c.GameConfig(),
		AntiCheat:     c.AntiCheat(),
		SuspicionKick: c.SuspicionKick,
	}
}

func envString(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if v, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

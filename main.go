package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tankbattle/server"
)

// TankBattle 入口：启动 WebSocket 对战服务与管理接口
func main() {
	if err := server.LoadEnv(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cfg, err := server.LoadConfig(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	// 使用第三方 zap 日志库写入日志文件（带滚动）
	if err := server.InitLogger(cfg.LogFile, cfg.LogStderr); err != nil {
		panic(err)
	}
	defer server.SyncLogger()

	rm := server.InitRoomManager(cfg.RoomSettings())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go rm.RunSchedulers(ctx)

	admin := server.NewAdminHandlers(rm, cfg)
	mux := http.NewServeMux()
	mux.Handle("/ws", server.NewWSHandler(rm, cfg.ConnRate, cfg.ConnBurst))
	// 管理与监控接口
	mux.HandleFunc("/admin/config", admin.HandleConfig)
	mux.HandleFunc("/admin/rooms", admin.HandleRooms)
	mux.HandleFunc("/metrics", admin.HandleMetrics)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{Addr: cfg.Addr, Handler: mux}

	go func() {
		server.Log.Infof("TankBattle listening on %s (tick %d Hz, broadcast %d Hz)", cfg.Addr, cfg.TickRate, cfg.BroadcastRate)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			server.Log.Fatalf("listen: %v", err)
		}
	}()

	// 优雅退出（Ctrl+C）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	server.Log.Info("Shutting down...")

	cancel()
	rm.Shutdown()
	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		server.Log.Warnf("http shutdown: %v", err)
	}
}

// Package main API Server 入口
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"trip-planner/internal/agent"
	"trip-planner/internal/apiserver/server"
	"trip-planner/internal/config"
	"trip-planner/internal/orchestrator"
	"trip-planner/internal/provider"
	"trip-planner/internal/provider/amadeus"
	"trip-planner/internal/provider/fallback"
	"trip-planner/internal/provider/places"
	"trip-planner/pkg/logging"
)

const shutdownTimeout = 30 * time.Second

func main() {
	// 加载配置（自动加载 .env，按 APP_ENV 选择 YAML）
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[api-server.config] %v", err)
	}

	logger := logging.New(logging.Config{
		Level:     cfg.Log.Level,
		Format:    cfg.Log.Format,
		Output:    "stdout",
		Component: "api-server",
	})

	log.Printf("[api-server.start] env=%s", cfg.Env)
	log.Printf("[api-server.config] %s", cfg.String())

	store, bus, err := openStore(cfg)
	if err != nil {
		log.Fatalf("[api-server.store] %v", err)
	}
	defer store.Close()
	defer bus.Close()

	metrics := server.NewMetrics("trip", nil)
	registry := agent.NewRegistry(agentDeps(cfg, metrics, logger))

	orch := orchestrator.New(orchestrator.ConfigFrom(cfg.Orchestrator), store, registry, bus, metrics, logger)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	orch.Start(ctx)

	h := server.NewHandler(orch, metrics, logger)
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      h.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
		ErrorLog:     newServerErrorLog(logger),
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		log.Fatalf("[api-server.listen] %v", err)
	}
	log.Printf("[api-server.listen] listening on :%s", cfg.Server.Port)

	// serve 返回时执行中的任务已写入终态，之后才关闭存储与事件总线
	if err := serve(sigCtx, srv, ln, orch); err != nil {
		log.Printf("[api-server.listen] server error: %v", err)
		return
	}

	fmt.Println("Server stopped")
}

// drainer 关闭时需要等待排空的组件
type drainer interface {
	Shutdown(ctx context.Context) error
}

// serve 在 ln 上提供服务直到 ctx 结束
//
// 优雅关闭：先停止接收请求，再等待执行中的任务写入终态，两步共用 shutdownTimeout。
func serve(ctx context.Context, srv *http.Server, ln net.Listener, orch drainer) error {
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Println("[api-server.shutdown] shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[api-server.shutdown] server shutdown error: %v", err)
	}
	if err := orch.Shutdown(shutdownCtx); err != nil {
		log.Printf("[api-server.shutdown] orchestrator shutdown error: %v", err)
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// agentDeps 按凭据启用在线数据源，未配置的数据源直接走兜底数据
func agentDeps(cfg *config.Config, observer agent.Observer, logger *logging.Logger) agent.Deps {
	deps := agent.Deps{
		Fallback:        fallback.New(),
		ProviderTimeout: cfg.Orchestrator.ProviderTimeout,
		Observer:        observer,
		Logger:          logger,
	}
	rl := cfg.Providers.RateLimit

	if cfg.Providers.Amadeus.Enabled() {
		deps.Flights = amadeus.NewClient(amadeus.Config{
			BaseURL:      cfg.Providers.Amadeus.BaseURL,
			ClientID:     cfg.Providers.Amadeus.ClientID,
			ClientSecret: cfg.Providers.Amadeus.ClientSecret,
			Limiter:      provider.NewLimiter(rl.RPS, rl.Burst),
		})
		log.Println("[api-server.providers] amadeus flight search enabled")
	} else {
		log.Println("[api-server.providers] amadeus not configured, flights use fallback data")
	}

	if cfg.Providers.Places.Enabled() {
		pc := places.NewClient(places.Config{
			BaseURL: cfg.Providers.Places.BaseURL,
			APIKey:  cfg.Providers.Places.APIKey,
			Limiter: provider.NewLimiter(rl.RPS, rl.Burst),
		})
		deps.Hotels = pc
		deps.Places = pc
		log.Println("[api-server.providers] google places enabled")
	} else {
		log.Println("[api-server.providers] google places not configured, hotels and activities use fallback data")
	}

	return deps
}

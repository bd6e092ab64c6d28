package main

import (
	"context"
	"log"
	"strconv"

	config "MProject/global/config"
	"MProject/logger"
	"MProject/service/cache"
	"MProject/service/gateway"
	"MProject/service/monitor"
	"MProject/service/rpc"
	storage "MProject/service/storage/redis"
	"MProject/tools/safe"

	"github.com/gin-gonic/gin"
	"github.com/nats-io/nats.go"
)

func main() {
	cfg := config.Global

	// 1) Broker connection
	if err := storage.InitRedis(storage.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}); err != nil {
		log.Fatalf("redis init failed: %v", err)
	}
	defer func() { _ = storage.CloseRedis() }()
	broker := storage.GetManager()

	// 2) Upstream api channel
	nc, err := nats.Connect(cfg.NatsURL,
		nats.Name("ws-gateway-"+strconv.Itoa(cfg.InstanceID)),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		log.Fatalf("nats connect failed: %v", err)
	}
	defer nc.Close()
	api := rpc.NewClient(nc, rpc.Conf{
		Timeout:    cfg.APITimeout,
		MaxRetries: cfg.APIMaxRetries,
		BaseDelay:  cfg.APIBaseDelay,
	})

	// 3) Local cache + gateway core
	local := cache.NewMemory(cache.Conf{
		DefaultTTL:  cfg.CacheTTL,
		CheckPeriod: cfg.CacheCheckPeriod,
		MaxKeys:     cfg.CacheMaxKeys,
	})
	defer local.Close()

	reg := gateway.NewRegistry()
	fan := gateway.NewFanout(8, 1024)
	router := gateway.NewRouter(reg, broker, api, local, fan, gateway.RouterConf{
		PresenceTTL: cfg.PresenceTTL,
	})
	resolver := gateway.NewShardResolver(cfg.InstanceID, cfg.TotalInstances)
	srv := gateway.NewServer(router, resolver)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 4) Broker event loop + instance monitor
	sub := gateway.NewSubscriber(router, broker)
	safe.SafeGo(func() { sub.Run(ctx) })

	mon := monitor.New(router, broker, monitor.Conf{
		Interval: cfg.MetricsInterval,
		TTL:      cfg.MetricsTTL,
	})
	safe.SafeGo(func() { mon.Run(ctx) })

	// 5) HTTP + WebSocket
	r := gin.New()
	r.Use(gin.Recovery())
	srv.Mount(r)

	logger.Infof("[main] instance %d/%d listening on :%d", cfg.InstanceID, cfg.TotalInstances, cfg.Port)
	if err := r.Run(":" + strconv.Itoa(cfg.Port)); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

package initial

import (
	"context"
	"fmt"
	"time"

	"AccessOps/internal/config"
	"AccessOps/pkg/redis"
	"AccessOps/pkg/zlog"

	goredis "github.com/redis/go-redis/v9"
)

func InitRedis() {
	conf := config.GetConfig()
	host := conf.RedisConfig.Host

	// 未配置主机则跳过，缓存路径会静默降级为直接读库
	if host == "" {
		zlog.Info("redis not configured, cache disabled")
		return
	}

	port := conf.RedisConfig.Port
	if port == 0 {
		port = 6379
	}

	addr := fmt.Sprintf("%s:%d", host, port)
	client := goredis.NewClient(&goredis.Options{
		Addr:         addr,
		Password:     conf.RedisConfig.Password,
		DB:           conf.RedisConfig.DB,
		PoolSize:     conf.RedisConfig.PoolSize,
		MinIdleConns: conf.RedisConfig.MinIdleConns,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		zlog.Error(fmt.Sprintf("redis connect failed: %v", err))
		_ = client.Close()
		return
	}

	redis.SetClient(client)
	zlog.Info("redis connected: " + addr)
}

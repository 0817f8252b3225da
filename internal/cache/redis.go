package cache

import (
	"context"
	"log"

	"github.com/redis/go-redis/v9"
)

var Client *redis.Client

// InitRedis connects the shared client. An unreachable Redis is logged and
// leaves Client nil; the series cache then degrades to a passthrough.
func InitRedis(ctx context.Context, addr string) {
	if addr == "" {
		log.Println("REDIS_URL not set, skipping Redis connection")
		return
	}
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		log.Printf("failed to connect to Redis at %s, series cache disabled: %v", addr, err)
		return
	}
	Client = client
	log.Println("Connected to Redis")
}

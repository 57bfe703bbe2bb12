package config

import (
	"context"
	"crypto/tls"
	"net"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig locates the Redis server backing rate limiting and the
// response cache.
//
//	REDIS_ADDR            host:port (REDIS_HOST + REDIS_PORT take precedence)
//	REDIS_PASSWORD        optional
//	REDIS_DB              database number, default 0
//	REDIS_TLS             "true" or "1" enables TLS
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TLS      bool
}

// LoadRedisConfig reads the REDIS_* variables.
func LoadRedisConfig() RedisConfig {
	addr := envStr("REDIS_ADDR", "localhost:6379")
	if host, port := envStr("REDIS_HOST", ""), envStr("REDIS_PORT", ""); host != "" && port != "" {
		addr = net.JoinHostPort(host, port)
	}
	tlsEnv := envStr("REDIS_TLS", "")
	return RedisConfig{
		Addr:     addr,
		Password: envStr("REDIS_PASSWORD", ""),
		DB:       envInt("REDIS_DB", 0),
		TLS:      strings.EqualFold(tlsEnv, "true") || tlsEnv == "1",
	}
}

// NewRedisClient connects using rc and pings the server.  It returns nil
// when Redis is unreachable; callers then run without caching and rate
// limiting.
func NewRedisClient(rc RedisConfig) *redis.Client {
	opts := &redis.Options{Addr: rc.Addr, Password: rc.Password, DB: rc.DB}
	if rc.TLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil
	}
	return client
}

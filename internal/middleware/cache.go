package middleware

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/meeting-room-reservation/internal/config"
)

// ResponseCache stores successful catalog responses in Redis.  Writes
// that change room data call Invalidate so readers never see a cached
// page older than the last committed change; TTL bounds staleness caused
// by background status sweeps.
type ResponseCache struct {
	cfg config.CacheConfig
	rdb *redis.Client
	log *zap.Logger
}

// NewResponseCache returns a cache that is a no-op when disabled or when
// rdb is nil.
func NewResponseCache(cfg config.CacheConfig, rdb *redis.Client, log *zap.Logger) *ResponseCache {
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * time.Second
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "cache"
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &ResponseCache{cfg: cfg, rdb: rdb, log: log}
}

func (rc *ResponseCache) enabled() bool { return rc.cfg.Enabled && rc.rdb != nil }

// Middleware serves cached 200 responses and records misses.  X-Cache is
// HIT or MISS.
func (rc *ResponseCache) Middleware() echo.MiddlewareFunc {
	if !rc.enabled() {
		return passThrough
	}
	maxBody := int64(rc.cfg.MaxBodyBytes)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !rc.cfg.Methods[c.Request().Method] {
				return next(c)
			}
			ctx := c.Request().Context()
			key := rc.key(c)

			if bs, err := rc.rdb.Get(ctx, key).Bytes(); err == nil {
				if status, hdr, body, ok := decodePayload(bs); ok {
					for k, vals := range hdr {
						if strings.EqualFold(k, echo.HeaderContentLength) {
							continue
						}
						for _, v := range vals {
							c.Response().Header().Add(k, v)
						}
					}
					c.Response().Header().Set("X-Cache", "HIT")
					c.Response().WriteHeader(status)
					_, err := c.Response().Write(body)
					return err
				}
			}

			cw := &captureWriter{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: maxBody}
			c.Response().Writer = cw
			c.Response().Header().Set("X-Cache", "MISS")

			if err := next(c); err != nil {
				return err
			}
			if cw.status != http.StatusOK || cw.truncated {
				return nil
			}
			hdr := c.Response().Header().Clone()
			hdr.Del("X-Cache")
			hdr.Del(echo.HeaderXRequestID)
			payload, err := encodePayload(cw.status, hdr, cw.buf.Bytes())
			if err != nil {
				return nil
			}
			if err := rc.rdb.Set(context.WithoutCancel(ctx), key, payload, rc.cfg.TTL).Err(); err != nil {
				rc.log.Warn("cache store failed", zap.String("key", key), zap.Error(err))
			}
			return nil
		}
	}
}

// Invalidate drops every cached response after a successful (2xx)
// request.  It is mounted on routes that mutate rooms or reservations.
func (rc *ResponseCache) Invalidate() echo.MiddlewareFunc {
	if !rc.enabled() {
		return passThrough
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			if err == nil && c.Response().Status < 300 {
				rc.Purge(context.WithoutCancel(c.Request().Context()))
			}
			return err
		}
	}
}

// Purge removes every key under the cache prefix.
func (rc *ResponseCache) Purge(ctx context.Context) {
	if !rc.enabled() {
		return
	}
	iter := rc.rdb.Scan(ctx, 0, rc.cfg.Prefix+":*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		rc.log.Warn("cache scan failed", zap.Error(err))
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := rc.rdb.Del(ctx, keys...).Err(); err != nil {
		rc.log.Warn("cache purge failed", zap.Error(err))
	}
}

func (rc *ResponseCache) key(c echo.Context) string {
	r := c.Request()
	var tail string
	switch strings.ToLower(rc.cfg.KeyStrategy) {
	case "full_path":
		tail = r.Method + ":" + r.URL.Path + "?" + r.URL.RawQuery
	default:
		tail = r.Method + ":" + c.Path() + ":" + strings.Join(c.ParamValues(), "/") + "?" + r.URL.RawQuery
	}
	sum := sha1.Sum([]byte(tail))
	return fmt.Sprintf("%s:%x", rc.cfg.Prefix, sum[:])
}

// captureWriter tees the response body into buf, up to limit bytes.
type captureWriter struct {
	http.ResponseWriter
	status    int
	buf       bytes.Buffer
	limit     int64
	truncated bool
}

func (cw *captureWriter) WriteHeader(code int) {
	cw.status = code
	cw.ResponseWriter.WriteHeader(code)
}

func (cw *captureWriter) Write(b []byte) (int, error) {
	if !cw.truncated {
		if cw.limit > 0 && int64(cw.buf.Len()+len(b)) > cw.limit {
			cw.truncated = true
			cw.buf.Reset()
		} else {
			cw.buf.Write(b)
		}
	}
	return cw.ResponseWriter.Write(b)
}

// encodePayload packs [4 bytes status][4 bytes header length][header JSON][body].
func encodePayload(status int, header http.Header, body []byte) ([]byte, error) {
	hdr, err := json.Marshal(header)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 8+len(hdr)+len(body))
	binary.BigEndian.PutUint32(out[0:4], uint32(status))
	binary.BigEndian.PutUint32(out[4:8], uint32(len(hdr)))
	copy(out[8:], hdr)
	copy(out[8+len(hdr):], body)
	return out, nil
}

func decodePayload(bs []byte) (int, http.Header, []byte, bool) {
	if len(bs) < 8 {
		return 0, nil, nil, false
	}
	status := int(binary.BigEndian.Uint32(bs[0:4]))
	hlen := int(binary.BigEndian.Uint32(bs[4:8]))
	if hlen < 0 || 8+hlen > len(bs) {
		return 0, nil, nil, false
	}
	hdr := http.Header{}
	if hlen > 0 {
		if err := json.Unmarshal(bs[8:8+hlen], &hdr); err != nil {
			return 0, nil, nil, false
		}
	}
	return status, hdr, bs[8+hlen:], true
}

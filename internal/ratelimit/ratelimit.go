//-------------------------------------------------------------------------
//
// pgEdge RAG Chat
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package ratelimit bounds how often a client address may open chat
// sessions, using a sliding window kept in Redis sorted sets.
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pgEdge/pgedge-rag-chat/internal/config"
)

const keyPrefix = "ragchat:ratelimit:"

// NewRedisClient connects to Redis and verifies the connection.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}
	return client, nil
}

// Limiter allows at most max requests per window for each client address.
type Limiter struct {
	client redis.Cmdable
	max    int
	window time.Duration
	logger *slog.Logger
	now    func() time.Time
}

// New creates a limiter from the rate limit settings.
func New(client redis.Cmdable, cfg config.RateLimitConfig, logger *slog.Logger) *Limiter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Limiter{
		client: client,
		max:    cfg.MaxConnections,
		window: cfg.Window,
		logger: logger,
		now:    time.Now,
	}
}

// Middleware rejects requests over the limit with 429. Redis failures
// let the request through.
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		addr := clientAddr(r)

		allowed, err := l.Allow(r.Context(), addr)
		if err != nil {
			l.logger.Warn("rate limiter unavailable, allowing request",
				"error", err,
				"client", addr,
			)
			next.ServeHTTP(w, r)
			return
		}

		if !allowed {
			l.logger.Info("rate limit exceeded", "client", addr)
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(l.window.Seconds()))))
			http.Error(w, "too many requests", http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Allow records one request for addr and reports whether it is within
// the limit.
func (l *Limiter) Allow(ctx context.Context, addr string) (bool, error) {
	key := keyPrefix + addr
	now := l.now()
	windowStart := now.Add(-l.window).UnixMilli()

	pipe := l.client.Pipeline()
	pipe.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatInt(windowStart, 10))
	count := pipe.ZCard(ctx, key)
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(now.UnixMilli()), Member: strconv.FormatInt(now.UnixNano(), 10)})
	pipe.Expire(ctx, key, l.window+time.Second)

	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}
	return count.Val() < int64(l.max), nil
}

// clientAddr returns the host part of RemoteAddr. Proxy headers are
// resolved earlier by the RealIP middleware.
func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

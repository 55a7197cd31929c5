// Package ratelimit 提供进程内令牌桶限流，Redis 不可用时作为单实例兜底
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultMaxKeys = 10000
	defaultIdleTTL = 10 * time.Minute
)

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// LocalLimiter 按 key 维护令牌桶；limit/window 折算为速率，突发容量为 limit
type LocalLimiter struct {
	mu      sync.Mutex
	entries map[string]*entry
	maxKeys int
	idleTTL time.Duration
	now     func() time.Time
}

// NewLocalLimiter 创建进程内限流器
func NewLocalLimiter() *LocalLimiter {
	return &LocalLimiter{
		entries: make(map[string]*entry),
		maxKeys: defaultMaxKeys,
		idleTTL: defaultIdleTTL,
		now:     time.Now,
	}
}

// Allow 与 Redis 滑动窗口限流器签名一致，从不返回错误
func (l *LocalLimiter) Allow(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	if limit <= 0 || window <= 0 {
		return true, nil
	}
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[key]
	if !ok {
		if len(l.entries) >= l.maxKeys {
			l.evictIdle(now)
		}
		every := window / time.Duration(limit)
		e = &entry{limiter: rate.NewLimiter(rate.Every(every), limit)}
		l.entries[key] = e
	}
	e.lastSeen = now
	return e.limiter.AllowN(now, 1), nil
}

// Len 当前跟踪的 key 数量
func (l *LocalLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// evictIdle 清理长时间未访问的 key；仍超限时整体重置
func (l *LocalLimiter) evictIdle(now time.Time) {
	for k, e := range l.entries {
		if now.Sub(e.lastSeen) > l.idleTTL {
			delete(l.entries, k)
		}
	}
	if len(l.entries) >= l.maxKeys {
		l.entries = make(map[string]*entry)
	}
}

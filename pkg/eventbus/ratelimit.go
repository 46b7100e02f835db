package eventbus

import (
	"sync"

	"golang.org/x/time/rate"
)

// rateLimiters 按连接维护令牌桶
// 在消息入口处消费令牌，超限消息被丢弃，不进入队列
type rateLimiters struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	limiters map[uint64]*rate.Limiter
}

// newRateLimiters 创建限流器集合，perSecond<=0 表示关闭限流
func newRateLimiters(perSecond float64, burst int) *rateLimiters {
	rl := &rateLimiters{
		limit: rate.Limit(perSecond),
		burst: burst,
	}
	if rl.enabled() {
		rl.limiters = make(map[uint64]*rate.Limiter)
	}
	return rl
}

func (rl *rateLimiters) enabled() bool {
	return rl.limit > 0
}

// add 为新连接创建令牌桶
func (rl *rateLimiters) add(id uint64) {
	if !rl.enabled() {
		return
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.limiters[id] = rate.NewLimiter(rl.limit, rl.burst)
}

// remove 移除连接的令牌桶
func (rl *rateLimiters) remove(id uint64) {
	if !rl.enabled() {
		return
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.limiters, id)
}

// allow 消费一枚令牌，未知连接不限流
func (rl *rateLimiters) allow(id uint64) bool {
	if !rl.enabled() {
		return true
	}
	rl.mu.Lock()
	limiter, ok := rl.limiters[id]
	rl.mu.Unlock()
	if !ok {
		return true
	}
	return limiter.Allow()
}

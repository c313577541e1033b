/**
 * internal/middleware/ratelimit.go
 * 分片限流中间件（LRU）
 *
 * 功能：
 * - 基于客户端 IP 的令牌桶限流（分片减少锁竞争）
 * - LRU 淘汰策略（防止内存无限增长）
 * - 超限返回 429 纯文本，禁用缓存
 *
 * 依赖：
 * - github.com/hashicorp/golang-lru/v2: LRU 缓存实现
 * - golang.org/x/time/rate: 令牌桶限流器
 */

package middleware

import (
	"errors"
	"hash/maphash"
	"net/http"
	"sync"

	"rareskills-site/internal/utils"

	"github.com/gin-gonic/gin"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"
)

// ====================  错误定义 ====================

var (
	// ErrRateLimitInvalidRate 无效的限流速率
	ErrRateLimitInvalidRate = errors.New("invalid rate limit rate")
	// ErrRateLimitInvalidBurst 无效的突发值
	ErrRateLimitInvalidBurst = errors.New("invalid rate limit burst")
)

// ====================  常量定义 ====================

const (
	// shardCount 分片数量（必须是 2 的幂）
	shardCount = 16

	// maxEntriesPerShard 每个分片最大条目数，总共最多 16000 条目
	maxEntriesPerShard = 1000

	// tooManyRequestsBody 429 响应体
	tooManyRequestsBody = "Too Many Requests"
)

// ====================  数据结构 ====================

// rateLimiterShard 限流器分片
type rateLimiterShard struct {
	cache *lru.Cache[string, *rate.Limiter]
	mu    sync.Mutex
}

// ShardedRateLimiter 分片限流器
// LRU 自动淘汰最久未使用的 IP，无需手动清理
type ShardedRateLimiter struct {
	shards [shardCount]*rateLimiterShard
	rate   rate.Limit
	burst  int
}

// hashSeed maphash 种子（进程级别唯一）
var hashSeed = maphash.MakeSeed()

// ====================  构造函数 ====================

// NewShardedRateLimiter 创建分片限流器
//
// 参数：
//   - rps: 每秒允许的请求数
//   - burst: 突发值
//
// 返回：
//   - *ShardedRateLimiter: 限流器实例
//   - error: ErrRateLimitInvalidRate / ErrRateLimitInvalidBurst
func NewShardedRateLimiter(rps float64, burst int) (*ShardedRateLimiter, error) {
	if rps <= 0 {
		return nil, ErrRateLimitInvalidRate
	}
	if burst <= 0 {
		return nil, ErrRateLimitInvalidBurst
	}

	srl := &ShardedRateLimiter{
		rate:  rate.Limit(rps),
		burst: burst,
	}

	for i := 0; i < shardCount; i++ {
		cache, err := lru.New[string, *rate.Limiter](maxEntriesPerShard)
		if err != nil {
			return nil, err
		}
		srl.shards[i] = &rateLimiterShard{cache: cache}
	}

	utils.LogPrintf("[RATELIMIT] Sharded rate limiter created: rate=%v, burst=%d, shards=%d",
		rps, burst, shardCount)

	return srl, nil
}

// ====================  ShardedRateLimiter 方法 ====================

// getShard 获取 key 对应的分片
func (srl *ShardedRateLimiter) getShard(key string) *rateLimiterShard {
	h := maphash.String(hashSeed, key)
	return srl.shards[h%shardCount]
}

// Allow 检查是否允许请求，空 key 一律放行
func (srl *ShardedRateLimiter) Allow(key string) bool {
	if key == "" {
		return true
	}

	shard := srl.getShard(key)

	shard.mu.Lock()
	defer shard.mu.Unlock()

	limiter, ok := shard.cache.Get(key)
	if !ok {
		limiter = rate.NewLimiter(srl.rate, srl.burst)
		shard.cache.Add(key, limiter)
	}

	return limiter.Allow()
}

// Stats 当前跟踪的 key 总数
func (srl *ShardedRateLimiter) Stats() int {
	total := 0
	for _, shard := range srl.shards {
		shard.mu.Lock()
		total += shard.cache.Len()
		shard.mu.Unlock()
	}
	return total
}

// ====================  中间件 ====================

// RateLimitMiddleware 按客户端 IP 限流
// limiter 为 nil 时返回直通中间件（限流关闭）
func RateLimitMiddleware(limiter *ShardedRateLimiter) gin.HandlerFunc {
	if limiter == nil {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	return func(c *gin.Context) {
		ip := c.ClientIP()

		if !limiter.Allow(ip) {
			utils.LogPrintf("[RATELIMIT] Rate limit exceeded: ip=%s, path=%s", utils.MaskIPv4(ip), c.Request.URL.Path)
			c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
			c.Header("Pragma", "no-cache")
			c.Header("Expires", "0")
			c.Data(http.StatusTooManyRequests, utils.ContentTypePlain, []byte(tooManyRequestsBody))
			c.Abort()
			return
		}

		c.Next()
	}
}

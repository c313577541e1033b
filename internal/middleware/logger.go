/**
 * internal/middleware/logger.go
 * 请求日志中间件
 *
 * 功能：
 * - 记录方法、路径、状态码、延迟、客户端 IP（脱敏）
 * - 按状态码区分日志级别
 * - 跳过静态资源日志（减少噪音）
 */

package middleware

import (
	"strings"
	"time"

	"rareskills-site/internal/utils"

	"github.com/gin-gonic/gin"
)

// skipLogSuffixes 不记录成功请求的静态资源扩展名
var skipLogSuffixes = []string{".js", ".css", ".map", ".png", ".jpg", ".jpeg", ".webp", ".svg", ".ico", ".woff", ".woff2"}

// RequestLogger 日志中间件
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		status := c.Writer.Status()
		if status < 400 && shouldSkipLog(path) {
			return
		}

		latency := time.Since(start)
		ip := utils.MaskIPv4(c.ClientIP())

		switch {
		case status >= 500:
			utils.LogPrintf("[HTTP] ERROR: %s %s %d %v ip=%s", c.Request.Method, path, status, latency, ip)
		case status >= 400:
			utils.LogPrintf("[HTTP] WARN: %s %s %d %v ip=%s", c.Request.Method, path, status, latency, ip)
		default:
			utils.LogPrintf("[HTTP] %s %s %d %v ip=%s", c.Request.Method, path, status, latency, ip)
		}
	}
}

// shouldSkipLog 判断是否跳过日志记录
func shouldSkipLog(path string) bool {
	lower := strings.ToLower(path)
	for _, suffix := range skipLogSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	return false
}

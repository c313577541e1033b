/**
 * internal/middleware/security.go
 * 安全头中间件
 *
 * 功能：
 * - 设置安全响应头（防止常见 Web 攻击）
 * - HTML 页面添加 CSP frame-ancestors（防止点击劫持）
 *
 * 安全头说明：
 * - X-Content-Type-Options: 防止 MIME 类型嗅探攻击
 * - Referrer-Policy: 控制 Referrer 信息泄露
 * - Permissions-Policy: 限制浏览器功能（地理位置、麦克风、摄像头）
 * - Content-Security-Policy: 防止点击劫持
 *
 * 缓存头由静态 Handler 统一设置，这里不处理
 */

package middleware

import (
	"path"
	"strings"

	"github.com/gin-gonic/gin"
)

// ====================  常量定义 ====================

const (
	// headerXContentTypeOptions 防止 MIME 类型嗅探
	headerXContentTypeOptions = "nosniff"

	// headerReferrerPolicy Referrer 策略
	headerReferrerPolicy = "strict-origin-when-cross-origin"

	// headerPermissionsPolicy 权限策略
	headerPermissionsPolicy = "geolocation=(), microphone=(), camera=()"

	// headerCSPFrameAncestors CSP frame-ancestors 策略
	headerCSPFrameAncestors = "frame-ancestors 'self'"
)

// ====================  数据结构 ====================

// SecurityConfig 安全中间件配置
type SecurityConfig struct {
	// EnableCSP 是否启用 CSP
	EnableCSP bool
	// EnableReferrerPolicy 是否启用 Referrer 策略
	EnableReferrerPolicy bool
	// EnablePermissionsPolicy 是否启用权限策略
	EnablePermissionsPolicy bool
	// CustomCSP 自定义 CSP 策略
	CustomCSP string
}

// ====================  公开函数 ====================

// SecurityHeaders 安全头中间件（使用默认配置）
func SecurityHeaders() gin.HandlerFunc {
	return SecurityHeadersWithConfig(SecurityConfig{
		EnableCSP:               true,
		EnableReferrerPolicy:    true,
		EnablePermissionsPolicy: true,
	})
}

// SecurityHeadersWithConfig 使用自定义配置的安全头中间件
// 参数：
//   - config: 安全配置
//
// 返回：
//   - gin.HandlerFunc: Gin 中间件函数
func SecurityHeadersWithConfig(config SecurityConfig) gin.HandlerFunc {
	csp := headerCSPFrameAncestors
	if config.CustomCSP != "" {
		csp = config.CustomCSP
	}

	return func(c *gin.Context) {
		// 始终启用
		c.Header("X-Content-Type-Options", headerXContentTypeOptions)

		if config.EnableReferrerPolicy {
			c.Header("Referrer-Policy", headerReferrerPolicy)
		}

		if config.EnablePermissionsPolicy {
			c.Header("Permissions-Policy", headerPermissionsPolicy)
		}

		if config.EnableCSP && isHTMLPage(c.Request.URL.Path) {
			c.Header("Content-Security-Policy", csp)
		}

		c.Next()
	}
}

// ====================  私有函数 ====================

// isHTMLPage 判断请求是否可能返回 HTML 页面
// 根路径、目录、.html 文件以及无扩展名路径（回退到 <path>.html）
func isHTMLPage(p string) bool {
	if p == "" {
		return false
	}
	if strings.HasSuffix(p, "/") {
		return true
	}

	ext := strings.ToLower(path.Ext(p))
	return ext == "" || ext == ".html"
}

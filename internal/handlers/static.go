/**
 * internal/handlers/static.go
 * 静态文件 Handler
 *
 * 功能：
 * - 将请求路径映射到根目录下的文件（任意请求方法）
 * - 路径清理（反斜杠转换、删除连续的点）+ 根目录包含检查
 * - 目录 -> index.html，无扩展名 -> <path>.html
 * - 固定 MIME 表，全部响应禁用缓存
 * - 客户端支持时返回 .br 预压缩文件
 * - 开发模式向 HTML 注入实时刷新脚本
 * - 健康检查 API
 *
 * 依赖：
 * - internal/services (实时刷新服务)
 * - internal/middleware (限流器统计)
 */

package handlers

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"rareskills-site/internal/middleware"
	"rareskills-site/internal/services"
	"rareskills-site/internal/utils"

	"github.com/gin-gonic/gin"
)

// ====================  错误定义 ====================

var (
	// ErrBaseDirInvalid 根目录不存在或不是目录
	ErrBaseDirInvalid = errors.New("STATIC_BASE_DIR_INVALID")
)

// ====================  常量定义 ====================

const (
	// ContentEncodingBrotli Brotli 编码
	ContentEncodingBrotli = "br"

	// CacheControlNoCache 禁用缓存
	CacheControlNoCache = "no-cache, no-store, must-revalidate"

	// notFoundBody 404 响应体
	notFoundBody = "Not Found"
)

// dotRunRegex 两个及以上连续的点
var dotRunRegex = regexp.MustCompile(`\.\.+`)

// ====================  Handler 结构 ====================

// StaticOptions 静态服务选项
type StaticOptions struct {
	// ServePrecompressed 客户端接受 br 时返回 <file>.br
	ServePrecompressed bool

	// LiveReload 非 nil 时向 HTML 注入刷新脚本，并在健康检查中报告连接数
	LiveReload *services.LiveReloadService

	// RateLimiter 非 nil 时在健康检查中报告被跟踪的客户端数
	RateLimiter *middleware.ShardedRateLimiter
}

// StaticHandler 静态文件 Handler
type StaticHandler struct {
	baseDir string
	opts    StaticOptions
}

// ====================  构造函数 ====================

// NewStaticHandler 创建静态文件 Handler
//
// 参数：
//   - baseDir: 根目录（启动时解析一次）
//   - opts: 预压缩 / 实时刷新选项
//
// 返回：
//   - *StaticHandler: Handler 实例
//   - error: ErrBaseDirInvalid
func NewStaticHandler(baseDir string, opts StaticOptions) (*StaticHandler, error) {
	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(abs)
	if err != nil || !info.IsDir() {
		utils.LogPrintf("[STATIC] ERROR: Base dir %s is not a directory", abs)
		return nil, ErrBaseDirInvalid
	}

	utils.LogPrintf("[STATIC] Serving static files from %s (precompressed=%v, livereload=%v)",
		abs, opts.ServePrecompressed, opts.LiveReload != nil)

	return &StaticHandler{baseDir: abs, opts: opts}, nil
}

// ====================  请求处理 ====================

// Serve 处理静态文件请求
// 匹配顺序：根路径 index.html -> 精确文件（目录取 index.html）-> <path>.html -> 404
func (h *StaticHandler) Serve(c *gin.Context) {
	safePath := sanitizePath(c.Request.URL.Path)

	target, ok := h.resolve(safePath)
	if ok && isDir(target) {
		target = filepath.Join(target, "index.html")
	}

	if safePath == "/" || safePath == "" {
		index := filepath.Join(h.baseDir, "index.html")
		if exists(index) {
			h.serveFile(c, index)
			return
		}
	}

	if ok && exists(target) {
		h.serveFile(c, target)
		return
	}

	if fallback, ok := h.resolve(safePath + ".html"); ok && exists(fallback) {
		h.serveFile(c, fallback)
		return
	}

	h.notFound(c)
}

// Health 健康检查
// GET /healthz
func (h *StaticHandler) Health(c *gin.Context) {
	resp := gin.H{
		"status":  "ok",
		"baseDir": h.baseDir,
	}
	if h.opts.LiveReload != nil {
		resp["liveReloadClients"] = h.opts.LiveReload.ConnectionCount()
	}
	if h.opts.RateLimiter != nil {
		resp["rateLimitedClients"] = h.opts.RateLimiter.Stats()
	}
	c.JSON(http.StatusOK, resp)
}

// ====================  私有方法 ====================

// sanitizePath 反斜杠转为 /，删除所有连续两个及以上的点
func sanitizePath(p string) string {
	p = strings.ReplaceAll(p, `\`, "/")
	return dotRunRegex.ReplaceAllString(p, "")
}

// resolve 将清理后的请求路径拼接到根目录，结果不在根目录内时返回 false
func (h *StaticHandler) resolve(safePath string) (string, bool) {
	target := filepath.Join(h.baseDir, filepath.FromSlash(safePath))

	rel, err := filepath.Rel(h.baseDir, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		utils.LogPrintf("[STATIC] WARN: Rejected path outside base dir: %s", safePath)
		return "", false
	}
	return target, true
}

// serveFile 输出文件（流式），打开或读取失败一律返回 404
func (h *StaticHandler) serveFile(c *gin.Context, path string) {
	f, err := os.Open(path)
	if err != nil {
		h.notFound(c)
		return
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil || !info.Mode().IsRegular() {
		h.notFound(c)
		return
	}

	contentType := utils.ContentTypeFor(path)
	setNoCache(c)

	if contentType == utils.ContentTypeHTML && h.opts.LiveReload != nil {
		h.serveWithLiveReload(c, f)
		return
	}

	if h.opts.ServePrecompressed && h.servePrecompressed(c, path, contentType) {
		return
	}

	c.DataFromReader(http.StatusOK, info.Size(), contentType, f, nil)
}

// servePrecompressed 存在 <path>.br 时设置 Vary，客户端接受 br 时输出压缩文件
func (h *StaticHandler) servePrecompressed(c *gin.Context, path, contentType string) bool {
	br, err := os.Open(path + ".br")
	if err != nil {
		return false
	}
	defer func() { _ = br.Close() }()

	info, err := br.Stat()
	if err != nil || !info.Mode().IsRegular() {
		return false
	}

	c.Header("Vary", "Accept-Encoding")
	if !acceptsBrotli(c.GetHeader("Accept-Encoding")) {
		return false
	}

	c.DataFromReader(http.StatusOK, info.Size(), contentType, br, map[string]string{
		"Content-Encoding": ContentEncodingBrotli,
	})
	return true
}

// serveWithLiveReload 在 </body> 前注入实时刷新脚本
func (h *StaticHandler) serveWithLiveReload(c *gin.Context, f io.Reader) {
	data, err := io.ReadAll(f)
	if err != nil {
		h.notFound(c)
		return
	}

	c.Data(http.StatusOK, utils.ContentTypeHTML, injectScript(data, services.LiveReloadScript))
}

// notFound 404 纯文本响应
func (h *StaticHandler) notFound(c *gin.Context) {
	setNoCache(c)
	c.Data(http.StatusNotFound, utils.ContentTypePlain, []byte(notFoundBody))
}

// ====================  辅助函数 ====================

// setNoCache 禁用缓存响应头
func setNoCache(c *gin.Context) {
	c.Header("Cache-Control", CacheControlNoCache)
	c.Header("Pragma", "no-cache")
	c.Header("Expires", "0")
}

// injectScript 在最后一个 </body> 之前插入脚本，找不到时追加到末尾
func injectScript(page []byte, script string) []byte {
	idx := bytes.LastIndex(bytes.ToLower(page), []byte("</body>"))
	if idx < 0 {
		return append(page, script...)
	}

	out := make([]byte, 0, len(page)+len(script))
	out = append(out, page[:idx]...)
	out = append(out, script...)
	return append(out, page[idx:]...)
}

// acceptsBrotli 判断 Accept-Encoding 是否包含 br（q=0 视为不接受）
func acceptsBrotli(header string) bool {
	for _, part := range strings.Split(header, ",") {
		name, params, _ := strings.Cut(strings.TrimSpace(part), ";")
		if !strings.EqualFold(strings.TrimSpace(name), ContentEncodingBrotli) {
			continue
		}
		q := strings.ReplaceAll(params, " ", "")
		return q != "q=0" && q != "q=0.0" && q != "q=0.00" && q != "q=0.000"
	}
	return false
}

// exists stat 成功即视为存在，错误一律视为不存在
func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// isDir 判断是否为目录，错误视为否
func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

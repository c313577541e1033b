/**
 * internal/utils/mime.go
 * 静态文件 MIME 类型表
 *
 * 服务器与发布命令共用同一张表，未知扩展名统一回退到 octet-stream
 */

package utils

import (
	"path/filepath"
	"strings"
)

const (
	// ContentTypeHTML HTML 内容类型
	ContentTypeHTML = "text/html; charset=utf-8"

	// ContentTypePlain 纯文本内容类型
	ContentTypePlain = "text/plain; charset=utf-8"

	// ContentTypeOctetStream 未知类型
	ContentTypeOctetStream = "application/octet-stream"
)

// mimeTypes 文件扩展名到 Content-Type 的映射
var mimeTypes = map[string]string{
	".html":  ContentTypeHTML,
	".js":    "application/javascript; charset=utf-8",
	".mjs":   "application/javascript; charset=utf-8",
	".css":   "text/css; charset=utf-8",
	".json":  "application/json; charset=utf-8",
	".map":   "application/json; charset=utf-8",
	".svg":   "image/svg+xml",
	".png":   "image/png",
	".jpg":   "image/jpeg",
	".jpeg":  "image/jpeg",
	".webp":  "image/webp",
	".gif":   "image/gif",
	".ico":   "image/x-icon",
	".woff2": "font/woff2",
	".woff":  "font/woff",
	".ttf":   "font/ttf",
}

// ContentTypeFor 根据文件扩展名（忽略大小写）返回 Content-Type
func ContentTypeFor(path string) string {
	if ct, ok := mimeTypes[strings.ToLower(filepath.Ext(path))]; ok {
		return ct
	}
	return ContentTypeOctetStream
}

/**
 * cmd/build/css.go
 * 全局样式表模块
 *
 * 功能：
 * - src/styles/global.css -> css/styles.css（默认原样复制）
 * - --minify-css 时使用 esbuild CSS 压缩
 */

package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync/atomic"

	"rareskills-site/internal/utils"

	"github.com/evanw/esbuild/pkg/api"
)

// buildStylesheet 生成全局样式表，源文件不存在时仅警告
func (b *Builder) buildStylesheet() error {
	utils.LogPrintf("[BUILD] Creating global stylesheet...")

	src := b.rootPath("src", "styles", "global.css")
	data, err := os.ReadFile(src)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			utils.LogPrintf("[BUILD] WARN: Global stylesheet not found at %s, skipping", src)
			return nil
		}
		return fmt.Errorf("failed to read %s: %w", src, err)
	}
	atomic.AddInt64(&b.stats.BytesRead, int64(len(data)))

	if b.opts.MinifyCSS {
		data, err = b.minifyCSS(src, data)
		if err != nil {
			return err
		}
	}

	dst := b.outPath("css", "styles.css")
	if err := b.writeFile(dst, data); err != nil {
		return err
	}

	utils.LogPrintf("[BUILD] Global stylesheet created at %s (%s)", dst, formatBytes(int64(len(data))))
	return nil
}

// minifyCSS 使用 esbuild 压缩 CSS
func (b *Builder) minifyCSS(src string, data []byte) ([]byte, error) {
	result := api.Transform(string(data), api.TransformOptions{
		Loader:           api.LoaderCSS,
		Sourcefile:       src,
		MinifyWhitespace: true,
		MinifySyntax:     true,
		LogLevel:         api.LogLevelWarning,
	})

	if len(result.Errors) > 0 {
		for _, msg := range result.Errors {
			utils.LogPrintf("[BUILD] ERROR: css: %s", msg.Text)
			if msg.Location != nil {
				utils.LogPrintf("[BUILD]   at %s:%d:%d", msg.Location.File, msg.Location.Line, msg.Location.Column)
			}
		}
		atomic.AddInt64(&b.stats.Errors, int64(len(result.Errors)))
		return nil, fmt.Errorf("%w: css has %d errors", ErrBundleFailed, len(result.Errors))
	}

	return result.Code, nil
}

/**
 * cmd/build/webp.go
 * WebP 转换模块
 *
 * 为 <out>/images 下的 PNG / JPEG 生成同名 .webp（已存在则跳过）
 *
 * 依赖：
 * - github.com/HugoSmits86/nativewebp
 */

package main

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"rareskills-site/internal/utils"

	"github.com/HugoSmits86/nativewebp"
)

// webpSources 可转换的扩展名
var webpSources = map[string]struct{}{
	".png":  {},
	".jpg":  {},
	".jpeg": {},
}

// webpImages 为图片目录生成 WebP 版本
func (b *Builder) webpImages() error {
	dir := b.outPath("images")
	ok, err := dirExists(dir)
	if err != nil {
		return err
	}
	if !ok {
		utils.LogPrintf("[BUILD] WARN: No images directory at %s, skipping WebP", dir)
		return nil
	}

	utils.LogPrintf("[BUILD] Converting images to WebP...")

	var converted int
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		ext := filepath.Ext(path)
		if _, ok := webpSources[strings.ToLower(ext)]; !ok {
			return nil
		}

		dst := strings.TrimSuffix(path, ext) + ".webp"
		if _, err := os.Stat(dst); err == nil {
			return nil
		} else if !errors.Is(err, fs.ErrNotExist) {
			return err
		}

		if err := b.convertWebP(path, dst); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		converted++
		return nil
	})
	if err != nil {
		return err
	}

	utils.LogPrintf("[BUILD] WebP: converted %d images", converted)
	return nil
}

// convertWebP 解码 PNG/JPEG 并编码为无损 WebP
func (b *Builder) convertWebP(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("failed to read: %w", err)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to decode image: %w", err)
	}

	var buf bytes.Buffer
	if err := nativewebp.Encode(&buf, img, nil); err != nil {
		return fmt.Errorf("failed to encode webp: %w", err)
	}

	atomic.AddInt64(&b.stats.BytesRead, int64(len(data)))
	return b.writeFile(dst, buf.Bytes())
}

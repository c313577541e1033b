/**
 * cmd/build/brotli.go
 * Brotli 预压缩模块
 *
 * 功能：
 * - 为输出目录中的文本资源生成 .br 旁路文件（保留原文件）
 * - errgroup 限制并发
 */

package main

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"rareskills-site/internal/utils"

	"github.com/andybalholm/brotli"
	"golang.org/x/sync/errgroup"
)

const (
	// Brotli 压缩级别
	brotliLevel = brotli.BestCompression

	// 最大并发压缩数
	brotliConcurrency = 4
)

// brotliExtensions 需要预压缩的扩展名
var brotliExtensions = map[string]struct{}{
	".js":   {},
	".css":  {},
	".html": {},
	".json": {},
	".svg":  {},
	".map":  {},
}

// ====================  Brotli 压缩 ====================

// brotliCompressDir 为输出目录生成 .br 文件
func (b *Builder) brotliCompressDir() error {
	utils.LogPrintf("[BUILD] Compressing with Brotli...")

	var files []string
	err := filepath.WalkDir(b.out, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if _, ok := brotliExtensions[strings.ToLower(filepath.Ext(path))]; ok {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to walk directory: %w", err)
	}

	if len(files) == 0 {
		utils.LogPrintf("[BUILD] WARN: No files to compress")
		return nil
	}

	var compressedCount, totalOriginal, totalCompressed int64

	g := new(errgroup.Group)
	g.SetLimit(brotliConcurrency)

	for _, path := range files {
		path := path
		g.Go(func() error {
			original, compressed, err := brotliFile(path)
			if err != nil {
				atomic.AddInt64(&b.stats.Errors, 1)
				return fmt.Errorf("%s: %w", path, err)
			}
			if compressed == 0 {
				return nil
			}

			atomic.AddInt64(&compressedCount, 1)
			atomic.AddInt64(&totalOriginal, original)
			atomic.AddInt64(&totalCompressed, compressed)
			b.stats.addFile(original, compressed)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	var ratio float64
	if totalOriginal > 0 {
		ratio = float64(totalCompressed) / float64(totalOriginal) * 100
	}

	utils.LogPrintf("[BUILD] Brotli: compressed %d files, %s -> %s (%.1f%%)",
		compressedCount,
		formatBytes(totalOriginal),
		formatBytes(totalCompressed),
		ratio)
	return nil
}

// brotliFile 压缩单个文件为 <src>.br，返回原始大小和压缩后大小
// 空文件跳过（返回 0, 0）
func brotliFile(src string) (int64, int64, error) {
	data, err := os.ReadFile(src)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read: %w", err)
	}

	if len(data) == 0 {
		utils.LogPrintf("[BUILD] WARN: Skipping empty file: %s", src)
		if err := os.Remove(src + ".br"); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return 0, 0, fmt.Errorf("failed to remove stale .br file: %w", err)
		}
		return 0, 0, nil
	}

	var buf bytes.Buffer
	writer := brotli.NewWriterLevel(&buf, brotliLevel)
	if _, err := writer.Write(data); err != nil {
		return 0, 0, fmt.Errorf("failed to write compressed data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return 0, 0, fmt.Errorf("failed to close brotli writer: %w", err)
	}

	if err := os.WriteFile(src+".br", buf.Bytes(), filePerm); err != nil {
		return 0, 0, fmt.Errorf("failed to write .br file: %w", err)
	}

	return int64(len(data)), int64(buf.Len()), nil
}

// removeBrotliSidecars 删除输出目录中原文件仍存在的 .br 文件
func (b *Builder) removeBrotliSidecars() error {
	var removed int
	err := filepath.WalkDir(b.out, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".br") {
			return nil
		}
		if _, err := os.Stat(strings.TrimSuffix(path, ".br")); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if err := os.Remove(path); err != nil {
			return err
		}
		removed++
		return nil
	})
	if err != nil {
		return err
	}

	if removed > 0 {
		utils.LogPrintf("[BUILD] Removed %d stale .br files", removed)
	}
	return nil
}

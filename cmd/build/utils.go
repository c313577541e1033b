/**
 * cmd/build/utils.go
 * 辅助函数模块
 *
 * 功能：
 * - 构建统计
 * - 文件 / 目录复制
 * - 字节格式化
 */

package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync/atomic"
)

// ====================  构建统计 ====================

// BuildStats 构建统计信息（Brotli 步骤并发更新，使用原子操作）
type BuildStats struct {
	FilesProcessed int64
	BytesRead      int64
	BytesWritten   int64
	Errors         int64
}

func (s *BuildStats) addFile(read, written int64) {
	atomic.AddInt64(&s.FilesProcessed, 1)
	atomic.AddInt64(&s.BytesRead, read)
	atomic.AddInt64(&s.BytesWritten, written)
}

// ====================  辅助函数 ====================

// dirExists 判断目录是否存在，不存在以外的 stat 错误原样返回
func dirExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return info.IsDir(), nil
}

// copyFile 复制文件
func (b *Builder) copyFile(src, dst string) error {
	srcFile, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open source: %w", err)
	}
	defer func() { _ = srcFile.Close() }()

	srcInfo, err := srcFile.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat source: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(dst), dirPerm); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	dstFile, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create destination: %w", err)
	}

	written, err := io.Copy(dstFile, srcFile)
	if err != nil {
		_ = dstFile.Close()
		return fmt.Errorf("failed to copy: %w", err)
	}
	if err := dstFile.Close(); err != nil {
		return fmt.Errorf("failed to close destination: %w", err)
	}

	b.stats.addFile(srcInfo.Size(), written)
	return nil
}

// copyDir 递归复制目录，保留目录结构
func (b *Builder) copyDir(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		if d.IsDir() {
			return os.MkdirAll(target, dirPerm)
		}
		return b.copyFile(path, target)
	})
}

// writeFile 写入文件（自动创建父目录）并计入统计
func (b *Builder) writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), dirPerm); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, data, filePerm); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	b.stats.addFile(0, int64(len(data)))
	return nil
}

// formatBytes 格式化字节数为人类可读格式
func formatBytes(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
	)

	switch {
	case bytes >= MB:
		return fmt.Sprintf("%.2f MB", float64(bytes)/MB)
	case bytes >= KB:
		return fmt.Sprintf("%.2f KB", float64(bytes)/KB)
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

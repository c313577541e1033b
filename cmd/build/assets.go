/**
 * cmd/build/assets.go
 * 静态资源复制模块
 *
 * 功能：
 * - 复制 fonts / images 目录到输出目录
 * - 优先使用项目根目录下的资源；仅输出目录存在时保留原样
 * - 复制完成后写入第三方脚本占位文件
 */

package main

import (
	"fmt"
	"os"

	"rareskills-site/internal/utils"
)

// assetDirs 需要复制的资源目录
var assetDirs = []string{"fonts", "images"}

// copyAssets 复制资源目录，然后写入第三方脚本占位文件
func (b *Builder) copyAssets() error {
	utils.LogPrintf("[BUILD] Copying asset directories...")

	for _, name := range assetDirs {
		src := b.rootPath(name)
		dst := b.outPath(name)

		hasSrc, err := dirExists(src)
		if err != nil {
			return fmt.Errorf("failed to stat %s: %w", src, err)
		}

		// 输出目录与根目录相同时源即输出，不能先删再复制
		if hasSrc && src != dst {
			// 先删除旧的输出，避免残留已删除的文件
			if err := os.RemoveAll(dst); err != nil {
				return fmt.Errorf("failed to remove stale %s: %w", dst, err)
			}
			if err := b.copyDir(src, dst); err != nil {
				return fmt.Errorf("failed to copy %s: %w", name, err)
			}
			utils.LogPrintf("[BUILD] Copied %s from %s to %s", name, src, dst)
			continue
		}

		hasDst, err := dirExists(dst)
		if err != nil {
			return fmt.Errorf("failed to stat %s: %w", dst, err)
		}
		if hasDst {
			utils.LogPrintf("[BUILD] Keeping existing %s in %s", name, dst)
			continue
		}

		utils.LogPrintf("[BUILD] WARN: Asset directory %s not found in project root or output", name)
	}

	return b.writeVendorScripts()
}

/**
 * cmd/build/js.go
 * 脚本打包模块
 *
 * 功能：
 * - 使用 esbuild 打包 src/main.ts -> js/main.js（浏览器 IIFE，ES2020，sourcemap）
 * - 可选打包 server.ts -> server.js（Node 平台，CommonJS）
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

var (
	// ErrEntryPointNotFound 入口文件不存在
	ErrEntryPointNotFound = errors.New("entry point not found")

	// ErrBundleFailed esbuild 编译失败
	ErrBundleFailed = errors.New("bundle failed")
)

// nodeTarget 服务端 bundle 目标 Node 版本
const nodeTarget = "18"

// ====================  脚本打包 ====================

// bundleScripts 打包浏览器入口，按需打包服务端入口
func (b *Builder) bundleScripts() error {
	utils.LogPrintf("[BUILD] Bundling scripts...")

	entry := b.rootPath("src", "main.ts")
	if err := validateEntryPoint(entry); err != nil {
		return err
	}

	opts := b.baseOptions(entry, b.outPath("js", "main.js"))
	opts.Platform = api.PlatformBrowser
	opts.Format = api.FormatIIFE
	opts.Target = api.ES2020

	if err := b.runEsbuild("browser", opts); err != nil {
		return err
	}

	if !b.opts.ServerBundle {
		return nil
	}

	serverEntry := b.rootPath("server.ts")
	if err := validateEntryPoint(serverEntry); err != nil {
		return err
	}

	serverOpts := b.baseOptions(serverEntry, b.outPath("server.js"))
	serverOpts.Platform = api.PlatformNode
	serverOpts.Format = api.FormatCommonJS
	serverOpts.Engines = []api.Engine{{Name: api.EngineNode, Version: nodeTarget}}
	serverOpts.Packages = api.PackagesExternal

	return b.runEsbuild("server", serverOpts)
}

// baseOptions 两个 bundle 共用的 esbuild 选项
func (b *Builder) baseOptions(entry, outfile string) api.BuildOptions {
	opts := api.BuildOptions{
		EntryPoints:   []string{entry},
		Outfile:       outfile,
		AbsWorkingDir: b.root,
		Bundle:        true,
		Sourcemap:     api.SourceMapLinked,
		TreeShaking:   api.TreeShakingTrue,
		KeepNames:     b.opts.Dev,
		Write:         true,
		LogLevel:      api.LogLevelWarning,
	}

	if !b.opts.Dev {
		opts.MinifyWhitespace = true
		opts.MinifyIdentifiers = true
		opts.MinifySyntax = true
	}

	return opts
}

// validateEntryPoint 验证入口文件是否存在
func validateEntryPoint(entry string) error {
	if _, err := os.Stat(entry); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrEntryPointNotFound, entry)
		}
		return err
	}
	return nil
}

// runEsbuild 执行 esbuild 并记录错误位置
func (b *Builder) runEsbuild(name string, opts api.BuildOptions) error {
	result := api.Build(opts)

	if len(result.Errors) > 0 {
		for _, msg := range result.Errors {
			utils.LogPrintf("[BUILD] ERROR: %s: %s", name, msg.Text)
			if msg.Location != nil {
				utils.LogPrintf("[BUILD]   at %s:%d:%d", msg.Location.File, msg.Location.Line, msg.Location.Column)
			}
		}
		atomic.AddInt64(&b.stats.Errors, int64(len(result.Errors)))
		return fmt.Errorf("%w: %s bundle has %d errors", ErrBundleFailed, name, len(result.Errors))
	}

	for _, msg := range result.Warnings {
		utils.LogPrintf("[BUILD] WARN: %s: %s", name, msg.Text)
	}

	info, err := os.Stat(opts.Outfile)
	if err != nil {
		return fmt.Errorf("%s bundle not written: %w", name, err)
	}
	b.stats.addFile(0, info.Size())

	utils.LogPrintf("[BUILD] Bundled %s -> %s (%s)", name, opts.Outfile, formatBytes(info.Size()))
	return nil
}

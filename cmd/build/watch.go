/**
 * cmd/build/watch.go
 * 监听模式
 *
 * 功能：
 * - 先完整构建一次
 * - 轮询 src/、fonts/、images/、server.ts 的变化，每个周期内的变化合并为一次重新构建
 * - 构建失败只记录日志，继续监听
 *
 * 依赖：
 * - github.com/radovskyb/watcher
 */

package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rareskills-site/internal/utils"

	"github.com/radovskyb/watcher"
	"github.com/urfave/cli/v2"
)

const (
	// watchPollInterval 文件轮询间隔
	watchPollInterval = 100 * time.Millisecond

	// rebuildInterval 合并变化后触发构建的间隔
	rebuildInterval = time.Second
)

// watchTargets 需要监听的源路径（只返回存在的路径）
func (b *Builder) watchTargets() ([]string, error) {
	candidates := []string{
		b.rootPath("src"),
		b.rootPath("fonts"),
		b.rootPath("images"),
		b.rootPath("server.ts"),
	}

	var targets []string
	for _, path := range candidates {
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, err
		}
		targets = append(targets, path)
	}
	return targets, nil
}

// runWatch watch 子命令
func runWatch(c *cli.Context) error {
	builder, err := NewBuilder(optionsFromContext(c))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := buildOnce(builder); err != nil {
		utils.LogPrintf("[WATCH] ERROR: %v", err)
	}

	return builder.watch(ctx)
}

// watch 监听源文件直到 ctx 结束
func (b *Builder) watch(ctx context.Context) error {
	targets, err := b.watchTargets()
	if err != nil {
		return err
	}
	if len(targets) == 0 {
		return fmt.Errorf("nothing to watch under %s", b.root)
	}

	w := watcher.New()
	w.SetMaxEvents(1)
	w.FilterOps(watcher.Create, watcher.Write, watcher.Remove, watcher.Rename, watcher.Move)

	for _, path := range targets {
		if err := w.AddRecursive(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		utils.LogPrintf("[WATCH] Watching %s", path)
	}

	startErr := make(chan error, 1)
	go func() {
		startErr <- w.Start(watchPollInterval)
	}()
	defer w.Close()

	ticker := time.NewTicker(rebuildInterval)
	defer ticker.Stop()

	var pending string
	for {
		select {
		case <-ctx.Done():
			utils.LogPrintf("[WATCH] Stopping")
			return nil

		case event := <-w.Event:
			pending = event.Path

		case err := <-w.Error:
			utils.LogPrintf("[WATCH] WARN: Watcher error: %v", err)

		case err := <-startErr:
			if err != nil {
				return fmt.Errorf("watcher failed: %w", err)
			}
			return nil

		case <-w.Closed:
			return nil

		case <-ticker.C:
			if pending == "" {
				continue
			}
			utils.LogPrintf("[WATCH] Change detected: %s", pending)
			pending = ""

			if err := buildOnce(b); err != nil {
				utils.LogPrintf("[WATCH] ERROR: %v", err)
			}
		}
	}
}

/**
 * cmd/build/publish.go
 * publish 子命令：上传输出目录到 R2
 */

package main

import (
	"fmt"
	"path/filepath"

	"rareskills-site/internal/config"
	"rareskills-site/internal/services"
	"rareskills-site/internal/utils"

	"github.com/urfave/cli/v2"
)

// runPublish 读取 R2 配置并上传输出目录
func runPublish(c *cli.Context) error {
	dir, err := filepath.Abs(c.String("out"))
	if err != nil {
		return err
	}

	ok, err := dirExists(dir)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("output directory %s not found, run build first", dir)
	}

	cfg, err := config.LoadPublish()
	if err != nil {
		return fmt.Errorf("publish config: %w", err)
	}

	publisher, err := services.NewR2Publisher(c.Context, cfg)
	if err != nil {
		return err
	}

	utils.LogPrintf("[PUBLISH] Uploading %s...", dir)
	result, err := publisher.PublishDir(c.Context, dir)
	if err != nil {
		return fmt.Errorf("publish failed: %w", err)
	}

	utils.LogPrintf("[PUBLISH] Done: files=%d, size=%s", result.Files, formatBytes(result.Bytes))
	return nil
}

/**
 * cmd/build/main.go
 * 站点构建工具
 *
 * 功能：
 * - 打包入口脚本（esbuild，浏览器 IIFE + 可选 Node 服务端 bundle）
 * - 复制 fonts / images 资源并写入第三方脚本占位文件
 * - 生成全局样式表 css/styles.css
 * - 生成 index.html（模板后处理，或由内容数据生成）
 * - 可选 WebP / Brotli 旁路文件
 * - watch：监听源文件变化自动重新构建
 * - publish：上传输出目录到 S3 兼容存储
 *
 * 用法：
 *   go run ./cmd/build                 # 生产构建
 *   go run ./cmd/build --dev           # 开发模式（不压缩）
 *   go run ./cmd/build --generate      # 由内容数据生成首页
 *   go run ./cmd/build watch           # 监听并重新构建
 *   go run ./cmd/build publish         # 上传 dist/
 *
 * 依赖：
 * - github.com/urfave/cli/v2
 * - github.com/evanw/esbuild/pkg/api
 * - github.com/andybalholm/brotli
 */

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"rareskills-site/internal/utils"

	"github.com/urfave/cli/v2"
)

// ====================  常量定义 ====================

const (
	// 默认输出目录（相对项目根目录）
	defaultOutDir = "dist"

	// 文件权限
	dirPerm  = 0755
	filePerm = 0644
)

// ====================  构建选项 ====================

// Options 构建选项
type Options struct {
	Root         string // 项目根目录
	OutDir       string // 输出目录，相对路径基于 Root
	Dev          bool   // 开发模式：不压缩，保留标识符
	ServerBundle bool   // 同时打包 server.ts
	Generate     bool   // 由内容数据生成 HTML，而非后处理 src/content.html
	ContentFile  string // 内容 YAML 文件，为空时使用内置内容
	MinifyCSS    bool   // 压缩全局样式表
	WebP         bool   // 为 PNG/JPEG 生成 .webp
	Brotli       bool   // 生成 .br 预压缩文件
}

// Builder 构建器，一次 Run 即一次完整构建
type Builder struct {
	opts  Options
	root  string
	out   string
	stats BuildStats
}

// NewBuilder 创建构建器（根目录与输出目录解析为绝对路径）
func NewBuilder(opts Options) (*Builder, error) {
	if opts.Root == "" {
		opts.Root = "."
	}
	if opts.OutDir == "" {
		opts.OutDir = defaultOutDir
	}

	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root %s: %w", opts.Root, err)
	}

	out := opts.OutDir
	if !filepath.IsAbs(out) {
		out = filepath.Join(root, out)
	}

	return &Builder{opts: opts, root: root, out: filepath.Clean(out)}, nil
}

// rootPath 项目根目录下的路径
func (b *Builder) rootPath(elem ...string) string {
	return filepath.Join(append([]string{b.root}, elem...)...)
}

// outPath 输出目录下的路径
func (b *Builder) outPath(elem ...string) string {
	return filepath.Join(append([]string{b.out}, elem...)...)
}

// Stats 本次构建统计
func (b *Builder) Stats() BuildStats {
	return b.stats
}

// Run 按固定顺序执行构建，任一步骤失败即中止
func (b *Builder) Run() error {
	b.stats = BuildStats{}

	if err := os.MkdirAll(b.out, dirPerm); err != nil {
		return fmt.Errorf("setup output dir failed: %w", err)
	}

	// 1. 打包脚本
	if err := b.bundleScripts(); err != nil {
		return fmt.Errorf("bundle failed: %w", err)
	}

	// 2. 复制资源（内部写入第三方脚本占位文件）
	if err := b.copyAssets(); err != nil {
		return fmt.Errorf("asset copy failed: %w", err)
	}

	// 3. 全局样式表
	if err := b.buildStylesheet(); err != nil {
		return fmt.Errorf("stylesheet build failed: %w", err)
	}

	// 4. 首页 HTML
	if err := b.buildHTML(); err != nil {
		return fmt.Errorf("html build failed: %w", err)
	}

	// 5. WebP 旁路文件
	if b.opts.WebP {
		if err := b.webpImages(); err != nil {
			return fmt.Errorf("webp conversion failed: %w", err)
		}
	}

	// 6. Brotli 预压缩（放在最后，覆盖前面所有产物）
	// 未启用时删除上次构建留下的 .br
	if b.opts.Brotli {
		if err := b.brotliCompressDir(); err != nil {
			return fmt.Errorf("brotli compression failed: %w", err)
		}
	} else if err := b.removeBrotliSidecars(); err != nil {
		return fmt.Errorf("brotli cleanup failed: %w", err)
	}

	return nil
}

// ====================  CLI ====================

// buildFlags 构建相关参数（build 与 watch 共用）
func buildFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "root",
			Value:   ".",
			Usage:   "Project root containing src/, fonts/ and images/",
			EnvVars: []string{"SITE_ROOT"},
		},
		&cli.StringFlag{
			Name:    "out",
			Aliases: []string{"o"},
			Value:   defaultOutDir,
			Usage:   "Output directory (relative to root)",
			EnvVars: []string{"SITE_OUT_DIR"},
		},
		&cli.BoolFlag{
			Name:    "dev",
			Usage:   "Development mode (no minification)",
			EnvVars: []string{"SITE_DEV"},
		},
		&cli.BoolFlag{
			Name:    "server-bundle",
			Usage:   "Also bundle server.ts into <out>/server.js",
			EnvVars: []string{"SITE_SERVER_BUNDLE"},
		},
		&cli.BoolFlag{
			Name:    "generate",
			Usage:   "Generate index.html from content data instead of src/content.html",
			EnvVars: []string{"SITE_GENERATE"},
		},
		&cli.StringFlag{
			Name:    "content",
			Usage:   "Content YAML file used with --generate (default: built-in content)",
			EnvVars: []string{"SITE_CONTENT"},
		},
		&cli.BoolFlag{
			Name:    "minify-css",
			Usage:   "Minify the global stylesheet",
			EnvVars: []string{"SITE_MINIFY_CSS"},
		},
		&cli.BoolFlag{
			Name:    "webp",
			Usage:   "Write .webp copies of PNG/JPEG images",
			EnvVars: []string{"SITE_WEBP"},
		},
		&cli.BoolFlag{
			Name:    "brotli",
			Usage:   "Write .br pre-compressed copies of text assets",
			EnvVars: []string{"SITE_BROTLI"},
		},
	}
}

// optionsFromContext 从命令行参数读取构建选项
func optionsFromContext(c *cli.Context) Options {
	return Options{
		Root:         c.String("root"),
		OutDir:       c.String("out"),
		Dev:          c.Bool("dev"),
		ServerBundle: c.Bool("server-bundle"),
		Generate:     c.Bool("generate"),
		ContentFile:  c.String("content"),
		MinifyCSS:    c.Bool("minify-css"),
		WebP:         c.Bool("webp"),
		Brotli:       c.Bool("brotli"),
	}
}

// newApp 创建命令行应用
func newApp() *cli.App {
	return &cli.App{
		Name:  "build",
		Usage: "Build the marketing site into a static output directory",
		Flags: buildFlags(),
		Commands: []*cli.Command{
			{
				Name:   "watch",
				Usage:  "Build, then rebuild whenever sources change",
				Flags:  buildFlags(),
				Action: runWatch,
			},
			{
				Name:  "publish",
				Usage: "Upload the output directory to an S3-compatible bucket",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "out",
						Aliases: []string{"o"},
						Value:   defaultOutDir,
						Usage:   "Output directory to upload",
						EnvVars: []string{"SITE_OUT_DIR"},
					},
				},
				Action: runPublish,
			},
		},
		Action: runBuild,
	}
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		utils.LogPrintf("[BUILD] ERROR: %v", err)
		utils.SyncLogger()
		os.Exit(1)
	}
	utils.SyncLogger()
}

// runBuild 执行一次完整构建
func runBuild(c *cli.Context) error {
	builder, err := NewBuilder(optionsFromContext(c))
	if err != nil {
		return err
	}
	return buildOnce(builder)
}

// buildOnce 执行构建并输出耗时与统计
func buildOnce(builder *Builder) error {
	startTime := time.Now()
	mode := "production"
	if builder.opts.Dev {
		mode = "development"
	}

	utils.LogPrintf("[BUILD] Starting build in %s mode: root=%s, out=%s", mode, builder.root, builder.out)

	if err := builder.Run(); err != nil {
		return fmt.Errorf("build failed: %w", err)
	}

	stats := builder.Stats()
	utils.LogPrintf("[BUILD] Completed successfully in %dms", time.Since(startTime).Milliseconds())
	utils.LogPrintf("[BUILD] Stats: files=%d, read=%s, written=%s",
		stats.FilesProcessed,
		formatBytes(stats.BytesRead),
		formatBytes(stats.BytesWritten))
	return nil
}

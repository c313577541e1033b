/**
 * internal/config/config.go
 * 应用配置加载模块
 *
 * 功能：
 * - 加载 .env 文件（可选）
 * - 从环境变量加载服务器 / 发布配置（envconfig 标签 + 默认值）
 * - 配置验证
 * - 静态文件根目录解析（优先构建输出目录，回退到项目根目录）
 *
 * 依赖：
 * - github.com/joho/godotenv (.env 文件加载)
 * - github.com/kelseyhightower/envconfig (环境变量映射)
 */

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"rareskills-site/internal/utils"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// ====================  错误定义 ====================

var (
	// ErrInvalidValue 配置值无效
	ErrInvalidValue = errors.New("INVALID_CONFIG_VALUE")

	// ErrMissingRequired 缺少必需的配置项
	ErrMissingRequired = errors.New("MISSING_REQUIRED_CONFIG")
)

// envPaths .env 文件查找顺序，加载第一个存在的文件
var envPaths = []string{".env"}

// ====================  配置结构 ====================

// ServerConfig 静态文件服务器配置
type ServerConfig struct {
	Host string `envconfig:"HOST" default:"0.0.0.0"`
	Port string `envconfig:"PORT" default:"5000"`

	// OutputDir 构建输出目录，存在时作为服务根目录
	OutputDir string `envconfig:"OUTPUT_DIR" default:"dist"`
	// ProjectRoot 输出目录不存在时的回退根目录
	ProjectRoot string `envconfig:"PROJECT_ROOT" default:"."`

	IsProduction bool `envconfig:"PRODUCTION" default:"false"`

	// ServePrecompressed 客户端支持 br 时优先返回 .br 预压缩文件
	ServePrecompressed bool `envconfig:"SERVE_PRECOMPRESSED" default:"true"`

	// LiveReload 开发模式：监听输出目录并通过 WebSocket 通知浏览器刷新
	LiveReload bool `envconfig:"LIVE_RELOAD" default:"false"`

	// RateLimitRPS 每 IP 每秒请求数，0 表示关闭限流
	RateLimitRPS   float64 `envconfig:"RATE_LIMIT_RPS" default:"0"`
	RateLimitBurst int     `envconfig:"RATE_LIMIT_BURST" default:"20"`

	// TrustedProxies 允许设置 X-Forwarded-For 的代理（IP 或 CIDR，逗号分隔）
	// 为空时只使用连接的对端地址作为客户端 IP
	TrustedProxies []string `envconfig:"TRUSTED_PROXIES"`
}

// PublishConfig S3 兼容存储（Cloudflare R2）发布配置
type PublishConfig struct {
	Endpoint  string `envconfig:"R2_ENDPOINT"`
	AccessKey string `envconfig:"R2_ACCESS_KEY"`
	SecretKey string `envconfig:"R2_SECRET_KEY"`
	Bucket    string `envconfig:"R2_BUCKET"`
	Region    string `envconfig:"R2_REGION" default:"auto"`
	Prefix    string `envconfig:"PUBLISH_PREFIX"`
}

// ====================  配置加载 ====================

// loadEnvFile 加载 .env 文件（不存在时仅记录日志）
func loadEnvFile() {
	for _, path := range envPaths {
		if err := godotenv.Load(path); err == nil {
			utils.LogPrintf("[CONFIG] Loaded .env from %s", path)
			return
		}
	}
}

// LoadServer 加载服务器配置
//
// 返回：
//   - *ServerConfig: 配置实例
//   - error: ErrInvalidValue（端口或限流参数无效）
func LoadServer() (*ServerConfig, error) {
	loadEnvFile()

	cfg := &ServerConfig{}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	utils.LogPrintf("[CONFIG] Server configuration loaded: host=%s, port=%s, production=%v",
		cfg.Host, cfg.Port, cfg.IsProduction)
	return cfg, nil
}

// Validate 验证服务器配置
func (c *ServerConfig) Validate() error {
	port, err := strconv.Atoi(c.Port)
	if err != nil || port <= 0 || port > 65535 {
		return fmt.Errorf("%w: PORT=%s is not a valid port", ErrInvalidValue, c.Port)
	}

	if c.RateLimitRPS < 0 {
		return fmt.Errorf("%w: RATE_LIMIT_RPS=%v must not be negative", ErrInvalidValue, c.RateLimitRPS)
	}

	if c.RateLimitRPS > 0 && c.RateLimitBurst <= 0 {
		return fmt.Errorf("%w: RATE_LIMIT_BURST=%d must be positive", ErrInvalidValue, c.RateLimitBurst)
	}

	return nil
}

// Addr 监听地址（host:port）
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + c.Port
}

// ResolveBaseDir 解析静态文件根目录
// 输出目录存在时使用输出目录，否则回退到项目根目录；返回绝对路径
func (c *ServerConfig) ResolveBaseDir() (string, error) {
	dir := c.ProjectRoot
	if info, err := os.Stat(c.OutputDir); err == nil && info.IsDir() {
		dir = c.OutputDir
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve base dir %s: %w", dir, err)
	}
	return abs, nil
}

// LoadPublish 加载发布配置
//
// 返回：
//   - error: ErrMissingRequired（缺少 endpoint / 密钥 / bucket）
func LoadPublish() (*PublishConfig, error) {
	loadEnvFile()

	cfg := &PublishConfig{}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}

	var missing []string
	if cfg.Endpoint == "" {
		missing = append(missing, "R2_ENDPOINT")
	}
	if cfg.AccessKey == "" {
		missing = append(missing, "R2_ACCESS_KEY")
	}
	if cfg.SecretKey == "" {
		missing = append(missing, "R2_SECRET_KEY")
	}
	if cfg.Bucket == "" {
		missing = append(missing, "R2_BUCKET")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %v", ErrMissingRequired, missing)
	}

	return cfg, nil
}

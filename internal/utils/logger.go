/**
 * internal/utils/logger.go
 * 异步日志模块（基于 zap）
 *
 * 功能：
 * - 统一日志格式（[模块] 前缀 + WARN/ERROR 标记）
 * - 客户端 IP 脱敏（MaskIPv4，由记录 IP 的调用方使用）
 * - 支持优雅关闭（SyncLogger）
 *
 * 用法：
 *   utils.LogPrintf("[BUILD] Copied %s", dir)
 */

package utils

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ====================  全局变量 ====================

var (
	// logger zap 日志实例
	logger *zap.Logger

	// sugar zap SugaredLogger
	sugar *zap.SugaredLogger

	// loggerOnce 确保只初始化一次
	loggerOnce sync.Once
)

// ====================  初始化 ====================

// initLogger 初始化 zap 日志
func initLogger() {
	loggerOnce.Do(func() {
		config := zap.Config{
			Level:            zap.NewAtomicLevelAt(zapcore.InfoLevel),
			Development:      false,
			Encoding:         "console",
			OutputPaths:      []string{"stderr"},
			ErrorOutputPaths: []string{"stderr"},
			EncoderConfig: zapcore.EncoderConfig{
				TimeKey:        "time",
				LevelKey:       "level",
				MessageKey:     "msg",
				EncodeTime:     zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05"),
				EncodeLevel:    zapcore.CapitalLevelEncoder,
				EncodeDuration: zapcore.StringDurationEncoder,
			},
		}

		var err error
		logger, err = config.Build(
			zap.AddCallerSkip(1), // 跳过 LogPrintf 调用层
		)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[LOGGER] Failed to init zap: %v, falling back to nop logger\n", err)
			logger = zap.NewNop()
		}

		sugar = logger.Sugar()
	})
}

// getLogger 获取 logger 实例（懒加载）
func getLogger() *zap.SugaredLogger {
	initLogger()
	return sugar
}

// ====================  公开函数 ====================

// LogPrintf 格式化日志输出
// 消息中包含 "ERROR:" 时以 Error 级别输出，包含 "WARN:" 时以 Warn 级别输出
// 消息原样输出，客户端 IP 需由调用方先经过 MaskIPv4
func LogPrintf(format string, args ...interface{}) {
	message := formatMessage(format, args...)

	switch {
	case strings.Contains(message, "ERROR:"):
		getLogger().Error(message)
	case strings.Contains(message, "WARN:"):
		getLogger().Warn(message)
	default:
		getLogger().Info(message)
	}
}

// LogFatalf 日志输出后退出进程（exit 1）
func LogFatalf(format string, args ...interface{}) {
	getLogger().Fatal(formatMessage(format, args...))
}

// SyncLogger 同步日志缓冲区（程序退出前调用）
func SyncLogger() {
	if logger != nil {
		_ = logger.Sync()
	}
}

// ====================  私有函数 ====================

// formatMessage 格式化日志消息（不做任何改写）
func formatMessage(format string, args ...interface{}) string {
	return fmt.Sprintf(format, args...)
}

// MaskIPv4 对 IPv4 地址进行脱敏处理
// 将 192.168.1.100 转换为 192.168.***.***
func MaskIPv4(ip string) string {
	if ip == "" {
		return ""
	}

	parts := strings.Split(ip, ".")
	if len(parts) != 4 {
		return "***.***.***"
	}

	return parts[0] + "." + parts[1] + ".***.***"
}

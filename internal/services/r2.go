/**
 * internal/services/r2.go
 * Cloudflare R2（S3 兼容）发布服务
 *
 * 功能：
 * - 将构建输出目录上传到 bucket（保持相对路径）
 * - 按 MIME 表设置 Content-Type，HTML 禁用缓存
 * - 跳过 .br 预压缩文件
 * - errgroup 限制并发，首个失败中止其余上传
 */

package services

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync/atomic"

	"rareskills-site/internal/config"
	"rareskills-site/internal/utils"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"golang.org/x/sync/errgroup"
)

// ErrPublishNotConfigured 发布服务未初始化
var ErrPublishNotConfigured = errors.New("publisher not configured")

const (
	// publishConcurrency 最大并发上传数
	publishConcurrency = 8

	// noCacheControl HTML 缓存策略（与静态服务器一致）
	noCacheControl = "no-cache, no-store, must-revalidate"
)

// ObjectPutter 上传接口（*s3.Client 满足该接口）
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Publisher 输出目录发布器
type Publisher struct {
	client ObjectPutter
	bucket string
	prefix string
}

// PublishResult 发布结果
type PublishResult struct {
	Files int64
	Bytes int64
}

// NewR2Publisher 根据配置创建 R2 发布器
func NewR2Publisher(ctx context.Context, cfg *config.PublishConfig) (*Publisher, error) {
	if cfg == nil {
		return nil, ErrPublishNotConfigured
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)),
		awsconfig.WithRegion(cfg.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load R2 config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.Endpoint)
		o.UsePathStyle = true
	})

	utils.LogPrintf("[R2] Publisher initialized: bucket=%s, prefix=%q", cfg.Bucket, cfg.Prefix)
	return NewPublisher(client, cfg.Bucket, cfg.Prefix), nil
}

// NewPublisher 使用任意 ObjectPutter 创建发布器
func NewPublisher(client ObjectPutter, bucket, prefix string) *Publisher {
	return &Publisher{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
	}
}

// ObjectKey 相对路径对应的对象 key（统一使用 /）
func ObjectKey(prefix, rel string) string {
	rel = filepath.ToSlash(rel)
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return rel
	}
	return path.Join(prefix, rel)
}

// PublishDir 上传目录下的所有文件
//
// 参数：
//   - ctx: 上下文（取消时中止剩余上传）
//   - dir: 构建输出目录
//
// 返回：
//   - PublishResult: 已上传文件数与字节数
//   - error: 首个上传失败
func (p *Publisher) PublishDir(ctx context.Context, dir string) (PublishResult, error) {
	var result PublishResult
	if p == nil || p.client == nil {
		return result, ErrPublishNotConfigured
	}

	var files []string
	err := filepath.WalkDir(dir, func(name string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasSuffix(name, ".br") {
			return nil
		}
		files = append(files, name)
		return nil
	})
	if err != nil {
		return result, fmt.Errorf("failed to walk %s: %w", dir, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(publishConcurrency)

	for _, file := range files {
		file := file
		g.Go(func() error {
			rel, err := filepath.Rel(dir, file)
			if err != nil {
				return err
			}

			size, err := p.upload(gctx, file, ObjectKey(p.prefix, rel))
			if err != nil {
				return fmt.Errorf("failed to upload %s: %w", rel, err)
			}

			atomic.AddInt64(&result.Files, 1)
			atomic.AddInt64(&result.Bytes, size)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return result, err
	}

	utils.LogPrintf("[R2] Published %d files (%d bytes) to bucket %s", result.Files, result.Bytes, p.bucket)
	return result, nil
}

// upload 上传单个文件，返回文件大小
func (p *Publisher) upload(ctx context.Context, file, key string) (int64, error) {
	f, err := os.Open(file)
	if err != nil {
		return 0, err
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return 0, err
	}

	contentType := utils.ContentTypeFor(file)
	input := &s3.PutObjectInput{
		Bucket:        aws.String(p.bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(info.Size()),
		ContentType:   aws.String(contentType),
	}
	if contentType == utils.ContentTypeHTML {
		input.CacheControl = aws.String(noCacheControl)
	}

	if _, err := p.client.PutObject(ctx, input); err != nil {
		return 0, err
	}
	return info.Size(), nil
}

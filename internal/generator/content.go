/**
 * internal/generator/content.go
 * 站点内容数据模型与加载
 *
 * 功能：
 * - 课程、学员评价、导航、站点元信息的数据结构
 * - 从 YAML 文件加载内容（未指定文件时使用内置默认内容）
 * - 使用 validator 校验必填字段与 URL 字段
 *
 * 依赖：
 * - gopkg.in/yaml.v2
 * - github.com/go-playground/validator/v10
 */

package generator

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v2"
)

// ====================  错误定义 ====================

var (
	// ErrContentInvalid 内容文件解析或校验失败
	ErrContentInvalid = errors.New("CONTENT_INVALID")
)

//go:embed content.yaml
var defaultContent []byte

// validate 全局校验器（validator 内部缓存结构体元数据，可并发使用）
var validate = validator.New()

// ====================  数据结构 ====================

// Content 生成页面所需的全部数据，顺序即渲染顺序
type Content struct {
	Site         Site          `yaml:"site"`
	Nav          []NavItem     `yaml:"nav" validate:"dive"`
	Courses      []Course      `yaml:"courses" validate:"min=1,dive"`
	Testimonials []Testimonial `yaml:"testimonials" validate:"dive"`
}

// Site 站点元信息（标题、统计 ID、Logo 等）
type Site struct {
	Lang            string `yaml:"lang" validate:"required"`
	Title           string `yaml:"title" validate:"required"`
	Description     string `yaml:"description" validate:"required"`
	URL             string `yaml:"url" validate:"required,url"`
	Domain          string `yaml:"domain" validate:"required,hostname"`
	Name            string `yaml:"name" validate:"required"`
	GTMID           string `yaml:"gtmId" validate:"required"`
	GTagID          string `yaml:"gtagId" validate:"required"`
	PlausibleDomain string `yaml:"plausibleDomain" validate:"required"`
	FontPreload     string `yaml:"fontPreload" validate:"omitempty,url"`
	FaviconBase     string `yaml:"faviconBase" validate:"required"`
	OGImage         string `yaml:"ogImage"`
	LogoLight       string `yaml:"logoLight" validate:"required"`
	LogoLightRemote string `yaml:"logoLightRemote" validate:"omitempty,url"`
	LogoDarkRemote  string `yaml:"logoDarkRemote" validate:"omitempty,url"`
	RatingLogo      string `yaml:"ratingLogo"`
	Headline        string `yaml:"headline" validate:"required"`
	CoursesURL      string `yaml:"coursesUrl" validate:"required,url"`
	ApplyURL        string `yaml:"applyUrl" validate:"required,url"`
}

// NavItem 导航菜单项，最多两级
type NavItem struct {
	ID       int       `yaml:"id" validate:"required"`
	Label    string    `yaml:"label" validate:"required"`
	URL      string    `yaml:"url" validate:"required,url"`
	External bool      `yaml:"external"`
	Children []NavItem `yaml:"children" validate:"dive"`
}

// Course 课程卡片
type Course struct {
	ID          string     `yaml:"id" validate:"required"`
	Title       string     `yaml:"title" validate:"required"`
	Duration    string     `yaml:"duration" validate:"required"`
	StartDate   string     `yaml:"startDate" validate:"required"`
	StartTime   string     `yaml:"startTime" validate:"required"`
	Description string     `yaml:"description" validate:"required"`
	Instructor  Instructor `yaml:"instructor"`
	Image       string     `yaml:"image" validate:"required"`
	URL         string     `yaml:"url" validate:"required,url"`
}

// Instructor 讲师
type Instructor struct {
	Name   string `yaml:"name" validate:"required"`
	Avatar string `yaml:"avatar" validate:"required"`
}

// Testimonial 学员评价头像
type Testimonial struct {
	Name    string `yaml:"name" validate:"required"`
	Avatar  string `yaml:"avatar" validate:"required"`
	Company string `yaml:"company,omitempty"`
}

// ====================  加载 ====================

// LoadContent 加载内容数据
//
// 参数：
//   - path: YAML 文件路径，为空时使用内置默认内容
//
// 返回：
//   - *Content: 校验通过的内容
//   - error: 读取失败，或 ErrContentInvalid
func LoadContent(path string) (*Content, error) {
	data := defaultContent
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read content file %s: %w", path, err)
		}
		data = raw
	}

	return ParseContent(data)
}

// ParseContent 解析并校验 YAML 内容
func ParseContent(data []byte) (*Content, error) {
	var content Content
	if err := yaml.UnmarshalStrict(data, &content); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrContentInvalid, err)
	}

	if err := validate.Struct(&content); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrContentInvalid, err)
	}

	return &content, nil
}

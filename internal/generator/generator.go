/**
 * internal/generator/generator.go
 * 首页 HTML 生成器
 *
 * 功能：
 * - 基于内置 html/template 模板与 Content 数据生成页面片段
 * - 每个方法返回一个完整片段（head / header / hero / 评价 / 课程 / footer / body）
 * - HTML() 拼接整页文档
 *
 * 模板只在 New() 时解析一次，之后的生成过程无 I/O，输出确定
 */

package generator

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strconv"
)

//go:embed templates/*.gohtml
var templateFS embed.FS

// ====================  模板函数 ====================

// navEntry 导航项渲染参数（桌面菜单带 id，移动菜单不带）
type navEntry struct {
	Item   NavItem
	Mobile bool
}

var funcs = template.FuncMap{
	"navEntry": func(item NavItem, mobile bool) navEntry {
		return navEntry{Item: item, Mobile: mobile}
	},
	"navClass": navClass,
}

// navClass 生成菜单项 class 列表
func navClass(item NavItem) string {
	class := "menu-item menu-item-type-post_type menu-item-object-page"
	if item.External {
		class = "menu-item menu-item-type-custom menu-item-object-custom"
	}
	if len(item.Children) > 0 {
		class += " menu-item-has-children"
	}
	return class + " menu-item-" + strconv.Itoa(item.ID) + " bricks-menu-item"
}

// ====================  生成器 ====================

// Generator 页面生成器
type Generator struct {
	content *Content
	tmpl    *template.Template
}

// New 创建生成器并解析内置模板
func New(content *Content) (*Generator, error) {
	if content == nil {
		return nil, fmt.Errorf("%w: nil content", ErrContentInvalid)
	}

	tmpl, err := template.New("site").Funcs(funcs).ParseFS(templateFS, "templates/*.gohtml")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	return &Generator{content: content, tmpl: tmpl}, nil
}

// render 执行指定模板
func (g *Generator) render(name string) (string, error) {
	var buf bytes.Buffer
	if err := g.tmpl.ExecuteTemplate(&buf, name, g.content); err != nil {
		return "", fmt.Errorf("failed to render %s: %w", name, err)
	}
	return buf.String(), nil
}

// Head 文档开头到 </head>：meta、样式表、统计脚本
func (g *Generator) Head() (string, error) {
	return g.render("head")
}

// Header 站点头部：Logo、桌面/移动导航、Apply 按钮
func (g *Generator) Header() (string, error) {
	return g.render("header")
}

// Hero 首屏标题区（打开 hero section，由 TestimonialSection 关闭）
func (g *Generator) Hero() (string, error) {
	return g.render("hero")
}

// TestimonialSection 学员头像滚动条，按数据顺序
func (g *Generator) TestimonialSection() (string, error) {
	return g.render("testimonials")
}

// CourseSection 课程卡片，按数据顺序
func (g *Generator) CourseSection() (string, error) {
	return g.render("courses")
}

// Footer 页脚
func (g *Generator) Footer() (string, error) {
	return g.render("footer")
}

// Body <body> 到文档结束：hero + 评价 + 课程 + footer + 第三方脚本
func (g *Generator) Body() (string, error) {
	return g.render("body")
}

// HTML 完整文档：head + header + body
func (g *Generator) HTML() (string, error) {
	return g.render("page")
}

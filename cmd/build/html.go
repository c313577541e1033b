/**
 * cmd/build/html.go
 * 首页 HTML 模块
 *
 * 功能：
 * - 读取 src/content.html（或由内容数据生成页面）
 * - 解析为 DOM 后处理：
 *   1. 删除各组件单独的样式表 <link>
 *   2. 在 GTM dns-prefetch 之后插入全局样式表
 *   3. 在 js/bricks.min.js 之前插入入口脚本 js/main.js
 * - 写入 <out>/index.html
 *
 * 依赖：
 * - golang.org/x/net/html
 */

package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"rareskills-site/internal/generator"
	"rareskills-site/internal/utils"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ErrTemplateNotFound src/content.html 不存在
var ErrTemplateNotFound = errors.New("html template not found")

const (
	globalStylesheetHref = "css/styles.css"
	globalStylesheetID   = "global-styles-css"
	stylesheetMarkerHref = "//www.googletagmanager.com"
	entryScriptSrc       = "js/main.js"
	vendorScriptSrc      = "js/bricks.min.js"
)

// removedStylesheets 合并进全局样式表的组件样式
var removedStylesheets = map[string]struct{}{
	"css/frontend-layer.min.css":              {},
	"css/font-awesome-6-brands-layer.min.css": {},
	"css/font-awesome-6-layer.min.css":        {},
	"css/ionicons-layer.min.css":              {},
	"css/style.css":                           {},
}

// ====================  构建步骤 ====================

// buildHTML 生成 <out>/index.html
func (b *Builder) buildHTML() error {
	utils.LogPrintf("[BUILD] Creating HTML file...")

	var (
		src    []byte
		source string
		err    error
	)

	if b.opts.Generate {
		src, err = b.generatePage()
		source = "content data"
	} else {
		source = b.rootPath("src", "content.html")
		src, err = os.ReadFile(source)
		if errors.Is(err, fs.ErrNotExist) {
			err = fmt.Errorf("%w: %s", ErrTemplateNotFound, source)
		}
	}
	if err != nil {
		return err
	}

	var out bytes.Buffer
	if err := processHTML(bytes.NewReader(src), &out); err != nil {
		return fmt.Errorf("failed to process html: %w", err)
	}

	dst := b.outPath("index.html")
	if err := b.writeFile(dst, out.Bytes()); err != nil {
		return err
	}

	utils.LogPrintf("[BUILD] HTML file created from %s (%s)", source, formatBytes(int64(out.Len())))
	return nil
}

// generatePage 由内容数据生成整页 HTML
func (b *Builder) generatePage() ([]byte, error) {
	content, err := generator.LoadContent(b.opts.ContentFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load content: %w", err)
	}

	gen, err := generator.New(content)
	if err != nil {
		return nil, err
	}

	page, err := gen.HTML()
	if err != nil {
		return nil, err
	}
	return []byte(page), nil
}

// ====================  DOM 处理 ====================

// processHTML 解析 HTML 并完成样式表 / 入口脚本替换
// 已处理过的文档再次处理不会重复插入
func processHTML(r io.Reader, w io.Writer) error {
	doc, err := html.Parse(r)
	if err != nil {
		return fmt.Errorf("failed to parse html: %w", err)
	}

	var head, body *html.Node
	var links, scripts []*html.Node
	walkElements(doc, func(n *html.Node) {
		switch n.DataAtom {
		case atom.Head:
			head = n
		case atom.Body:
			body = n
		case atom.Link:
			links = append(links, n)
		case atom.Script:
			scripts = append(scripts, n)
		}
	})

	// 1. 删除组件样式表，同时定位插入点
	var marker *html.Node
	hasGlobal := false
	for _, link := range links {
		href := getAttr(link, "href")
		if _, ok := removedStylesheets[href]; ok {
			link.Parent.RemoveChild(link)
			continue
		}
		if href == globalStylesheetHref {
			hasGlobal = true
		}
		if marker == nil && getAttr(link, "rel") == "dns-prefetch" && href == stylesheetMarkerHref {
			marker = link
		}
	}

	// 2. 全局样式表
	if !hasGlobal {
		link := newElement(atom.Link,
			html.Attribute{Key: "rel", Val: "stylesheet"},
			html.Attribute{Key: "id", Val: globalStylesheetID},
			html.Attribute{Key: "href", Val: globalStylesheetHref},
			html.Attribute{Key: "media", Val: "all"},
		)
		switch {
		case marker != nil:
			insertAfter(marker, link)
		case head != nil:
			head.AppendChild(link)
		default:
			return errors.New("document has no <head>")
		}
	}

	// 3. 入口脚本
	var vendor *html.Node
	hasEntry := false
	for _, script := range scripts {
		switch getAttr(script, "src") {
		case entryScriptSrc:
			hasEntry = true
		case vendorScriptSrc:
			if vendor == nil {
				vendor = script
			}
		}
	}

	if !hasEntry {
		script := newElement(atom.Script, html.Attribute{Key: "src", Val: entryScriptSrc})
		switch {
		case vendor != nil:
			vendor.Parent.InsertBefore(script, vendor)
			vendor.Parent.InsertBefore(&html.Node{Type: html.TextNode, Data: "\n"}, vendor)
		case body != nil:
			body.AppendChild(script)
		default:
			return errors.New("document has no <body>")
		}
	}

	return html.Render(w, doc)
}

// walkElements 深度优先遍历所有元素节点
func walkElements(n *html.Node, fn func(*html.Node)) {
	if n.Type == html.ElementNode {
		fn(n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walkElements(c, fn)
	}
}

// getAttr 获取属性值，不存在返回空字符串
func getAttr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val
		}
	}
	return ""
}

// newElement 创建元素节点
func newElement(a atom.Atom, attrs ...html.Attribute) *html.Node {
	return &html.Node{
		Type:     html.ElementNode,
		DataAtom: a,
		Data:     a.String(),
		Attr:     attrs,
	}
}

// insertAfter 在 ref 之后插入节点（中间留一个空行）
func insertAfter(ref, n *html.Node) {
	next := ref.NextSibling
	ref.Parent.InsertBefore(&html.Node{Type: html.TextNode, Data: "\n\n"}, next)
	ref.Parent.InsertBefore(n, next)
}

package main

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"rareskills-site/internal/config"

	"github.com/andybalholm/brotli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ====================  测试夹具 ====================

func writeFixture(t *testing.T, root, name string, data []byte) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(name))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func pngFixture(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for x := 0; x < 4; x++ {
		for y := 0; y < 4; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 60), G: uint8(y * 60), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// newProject 创建最小可构建项目
func newProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()

	writeFixture(t, root, "src/main.ts", []byte(`const greet = (name: string): string => "hello " + name;
document.addEventListener("DOMContentLoaded", () => console.log(greet("world")));
`))
	writeFixture(t, root, "src/content.html", []byte(templateFixture))
	writeFixture(t, root, "src/styles/global.css", []byte("body {\n  margin: 0;\n  color: #ffffff;\n}\n"))
	writeFixture(t, root, "fonts/inter.woff2", []byte("font-bytes"))
	writeFixture(t, root, "fonts/sub/mono.woff", []byte("mono-bytes"))
	writeFixture(t, root, "images/logo.png", pngFixture(t))
	return root
}

func newTestBuilder(t *testing.T, opts Options) *Builder {
	t.Helper()
	b, err := NewBuilder(opts)
	require.NoError(t, err)
	return b
}

// snapshot 读取目录下所有文件
func snapshot(t *testing.T, dir string) map[string][]byte {
	t.Helper()
	files := map[string][]byte{}
	require.NoError(t, filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		files[filepath.ToSlash(rel)] = data
		return nil
	}))
	return files
}

func readOut(t *testing.T, b *Builder, name string) string {
	t.Helper()
	data, err := os.ReadFile(b.outPath(filepath.FromSlash(name)))
	require.NoError(t, err)
	return string(data)
}

// ====================  构建流程 ====================

func TestNewBuilderResolvesPaths(t *testing.T) {
	root := t.TempDir()

	b := newTestBuilder(t, Options{Root: root})
	assert.Equal(t, filepath.Join(root, "dist"), b.out)

	abs := filepath.Join(t.TempDir(), "public")
	b = newTestBuilder(t, Options{Root: root, OutDir: abs})
	assert.Equal(t, abs, b.out)
}

func TestRunProducesOutputTree(t *testing.T) {
	root := newProject(t)
	b := newTestBuilder(t, Options{Root: root})

	require.NoError(t, b.Run())

	for _, name := range []string{"index.html", "css/styles.css", "js/main.js", "js/main.js.map"} {
		assert.FileExists(t, b.outPath(filepath.FromSlash(name)))
	}
	assert.Contains(t, readOut(t, b, "js/main.js"), "sourceMappingURL=main.js.map")
	assert.Equal(t, "body {\n  margin: 0;\n  color: #ffffff;\n}\n", readOut(t, b, "css/styles.css"))
	assert.NoFileExists(t, b.outPath("server.js"))

	stats := b.Stats()
	assert.Positive(t, stats.FilesProcessed)
	assert.Positive(t, stats.BytesWritten)
	assert.Zero(t, stats.Errors)
}

func TestRunCopiesAssetsByteIdentical(t *testing.T) {
	root := newProject(t)
	b := newTestBuilder(t, Options{Root: root})
	require.NoError(t, b.Run())

	for _, dir := range assetDirs {
		assert.Equal(t, snapshot(t, filepath.Join(root, dir)), snapshot(t, b.outPath(dir)), dir)
	}
}

func TestRunReplacesStaleAssets(t *testing.T) {
	root := newProject(t)
	b := newTestBuilder(t, Options{Root: root})
	writeFixture(t, b.out, "fonts/removed.woff2", []byte("stale"))

	require.NoError(t, b.Run())
	assert.NoFileExists(t, b.outPath("fonts", "removed.woff2"))
}

func TestRunKeepsOutputOnlyAssets(t *testing.T) {
	root := newProject(t)
	require.NoError(t, os.RemoveAll(filepath.Join(root, "images")))

	b := newTestBuilder(t, Options{Root: root})
	writeFixture(t, b.out, "images/kept.svg", []byte("<svg/>"))

	require.NoError(t, b.Run())
	assert.FileExists(t, b.outPath("images", "kept.svg"))
}

func TestRunWritesVendorScripts(t *testing.T) {
	root := newProject(t)
	b := newTestBuilder(t, Options{Root: root})
	require.NoError(t, b.Run())

	require.Len(t, vendorScripts, 4)
	for _, script := range vendorScripts {
		assert.Equal(t, script.Content, readOut(t, b, "js/"+script.Filename), script.Filename)
	}
}

func TestRunPostProcessesTemplate(t *testing.T) {
	root := newProject(t)
	b := newTestBuilder(t, Options{Root: root})
	require.NoError(t, b.Run())

	page := readOut(t, b, "index.html")
	for href := range removedStylesheets {
		assert.NotContains(t, page, `href="`+href+`"`)
	}
	assert.Equal(t, 1, strings.Count(page, `href="css/styles.css"`))
	assert.Equal(t, 1, strings.Count(page, `src="js/main.js"`))
	assert.Less(t, strings.Index(page, `src="js/main.js"`), strings.Index(page, `src="js/bricks.min.js"`))
}

func TestRunIsIdempotent(t *testing.T) {
	root := newProject(t)
	b := newTestBuilder(t, Options{Root: root, Brotli: true})

	require.NoError(t, b.Run())
	first := snapshot(t, b.out)

	require.NoError(t, b.Run())
	second := snapshot(t, b.out)

	assert.Equal(t, first, second)
}

func TestRunMissingTemplateFails(t *testing.T) {
	root := newProject(t)
	require.NoError(t, os.Remove(filepath.Join(root, "src", "content.html")))

	b := newTestBuilder(t, Options{Root: root})
	err := b.Run()
	require.ErrorIs(t, err, ErrTemplateNotFound)
	assert.NoFileExists(t, b.outPath("index.html"))
}

func TestRunMissingEntryPointFails(t *testing.T) {
	root := newProject(t)
	require.NoError(t, os.Remove(filepath.Join(root, "src", "main.ts")))

	err := newTestBuilder(t, Options{Root: root}).Run()
	require.ErrorIs(t, err, ErrEntryPointNotFound)
}

func TestRunCompileErrorFails(t *testing.T) {
	root := newProject(t)
	writeFixture(t, root, "src/main.ts", []byte("const = ;"))

	b := newTestBuilder(t, Options{Root: root})
	err := b.Run()
	require.ErrorIs(t, err, ErrBundleFailed)
	assert.Positive(t, b.Stats().Errors)
}

func TestRunMissingStylesheetIsWarning(t *testing.T) {
	root := newProject(t)
	require.NoError(t, os.RemoveAll(filepath.Join(root, "src", "styles")))

	b := newTestBuilder(t, Options{Root: root})
	require.NoError(t, b.Run())
	assert.NoFileExists(t, b.outPath("css", "styles.css"))
}

func TestRunMinifiesStylesheet(t *testing.T) {
	root := newProject(t)
	b := newTestBuilder(t, Options{Root: root, MinifyCSS: true})
	require.NoError(t, b.Run())

	css := readOut(t, b, "css/styles.css")
	assert.NotContains(t, css, "\n  ")
	assert.Contains(t, css, "margin:0")
}

func TestRunDevModeKeepsReadableBundle(t *testing.T) {
	root := newProject(t)
	b := newTestBuilder(t, Options{Root: root, Dev: true})
	require.NoError(t, b.Run())

	assert.Contains(t, readOut(t, b, "js/main.js"), "greet")
}

func TestRunServerBundle(t *testing.T) {
	root := newProject(t)
	writeFixture(t, root, "server.ts", []byte(`import express from "express";
const app = express();
app.listen(Number(process.env.PORT ?? 5000));
`))

	b := newTestBuilder(t, Options{Root: root, ServerBundle: true})
	require.NoError(t, b.Run())

	server := readOut(t, b, "server.js")
	assert.Contains(t, server, `require("express")`)
}

func TestRunServerBundleMissingEntry(t *testing.T) {
	root := newProject(t)
	err := newTestBuilder(t, Options{Root: root, ServerBundle: true}).Run()
	require.ErrorIs(t, err, ErrEntryPointNotFound)
}

// ====================  生成模式 ====================

func TestRunGenerateMode(t *testing.T) {
	root := newProject(t)
	require.NoError(t, os.Remove(filepath.Join(root, "src", "content.html")))

	b := newTestBuilder(t, Options{Root: root, Generate: true})
	require.NoError(t, b.Run())

	page := readOut(t, b, "index.html")
	assert.Equal(t, 1, strings.Count(page, `href="css/styles.css"`))
	assert.Equal(t, 1, strings.Count(page, `src="js/main.js"`))
	assert.Less(t, strings.Index(page, `src="js/main.js"`), strings.Index(page, `src="js/bricks.min.js"`))
	assert.Contains(t, page, "GTM-5SZKS4RW")
}

func TestRunGenerateModeInvalidContent(t *testing.T) {
	root := newProject(t)
	writeFixture(t, root, "content.yaml", []byte("site:\n  title: only\n"))

	err := newTestBuilder(t, Options{Root: root, Generate: true, ContentFile: filepath.Join(root, "content.yaml")}).Run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "html build failed")
}

// ====================  可选步骤 ====================

func TestRunBrotliSidecars(t *testing.T) {
	root := newProject(t)
	b := newTestBuilder(t, Options{Root: root, Brotli: true})
	require.NoError(t, b.Run())

	for _, name := range []string{"index.html", "css/styles.css", "js/main.js", "js/main.js.map", "js/gtm.js"} {
		original := readOut(t, b, name)

		f, err := os.Open(b.outPath(filepath.FromSlash(name + ".br")))
		require.NoError(t, err, name)
		decoded, err := io.ReadAll(brotli.NewReader(f))
		_ = f.Close()
		require.NoError(t, err, name)

		assert.Equal(t, original, string(decoded), name)
	}

	assert.NoFileExists(t, b.outPath("fonts", "inter.woff2.br"))
	assert.NoFileExists(t, b.outPath("images", "logo.png.br"))
}

func TestRunWithoutBrotliRemovesStaleSidecars(t *testing.T) {
	root := newProject(t)
	require.NoError(t, newTestBuilder(t, Options{Root: root, Brotli: true}).Run())

	writeFixture(t, root, "src/content.html", []byte(strings.Replace(templateFixture, "hello", "updated", 1)))
	writeFixture(t, root, "images/orphan.svg.br", []byte("no original"))

	b := newTestBuilder(t, Options{Root: root})
	writeFixture(t, b.out, "orphan.json.br", []byte("no original"))
	require.NoError(t, b.Run())

	assert.Contains(t, readOut(t, b, "index.html"), "updated")
	for _, name := range []string{"index.html.br", "css/styles.css.br", "js/main.js.br", "js/main.js.map.br", "js/gtm.js.br"} {
		assert.NoFileExists(t, b.outPath(filepath.FromSlash(name)), name)
	}
	// 没有原文件的 .br 不属于旁路文件
	assert.FileExists(t, b.outPath("orphan.json.br"))
	assert.FileExists(t, b.outPath("images", "orphan.svg.br"))
}

func TestBrotliFileRemovesSidecarOfEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.js")
	require.NoError(t, os.WriteFile(path, nil, 0o644))
	require.NoError(t, os.WriteFile(path+".br", []byte("old"), 0o644))

	_, compressed, err := brotliFile(path)
	require.NoError(t, err)
	assert.Zero(t, compressed)
	assert.NoFileExists(t, path+".br")
}

func TestBrotliFileSkipsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.js")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	original, compressed, err := brotliFile(path)
	require.NoError(t, err)
	assert.Zero(t, original)
	assert.Zero(t, compressed)
	assert.NoFileExists(t, path+".br")
}

func TestRunWebPSidecars(t *testing.T) {
	root := newProject(t)
	writeFixture(t, root, "images/photo.jpg.txt", []byte("not an image"))
	writeFixture(t, root, "images/hero.png", pngFixture(t))
	writeFixture(t, root, "images/hero.webp", []byte("existing"))

	b := newTestBuilder(t, Options{Root: root, WebP: true})
	require.NoError(t, b.Run())

	webp, err := os.ReadFile(b.outPath("images", "logo.webp"))
	require.NoError(t, err)
	assert.Equal(t, "RIFF", string(webp[:4]))
	assert.Equal(t, "WEBP", string(webp[8:12]))

	assert.Equal(t, "existing", readOut(t, b, "images/hero.webp"))
	assert.NoFileExists(t, filepath.Join(root, "images", "logo.webp"))
}

// ====================  命令行 ====================

func TestAppBuildCommand(t *testing.T) {
	root := newProject(t)

	require.NoError(t, newApp().Run([]string{"build", "--root", root, "--out", "public", "--brotli"}))
	assert.FileExists(t, filepath.Join(root, "public", "index.html"))
	assert.FileExists(t, filepath.Join(root, "public", "index.html.br"))
}

func TestAppReadsEnv(t *testing.T) {
	root := newProject(t)
	t.Setenv("SITE_ROOT", root)
	t.Setenv("SITE_OUT_DIR", "site")

	require.NoError(t, newApp().Run([]string{"build"}))
	assert.FileExists(t, filepath.Join(root, "site", "index.html"))
}

func TestAppBuildFailureReturnsError(t *testing.T) {
	root := t.TempDir()
	err := newApp().Run([]string{"build", "--root", root})
	require.ErrorIs(t, err, ErrEntryPointNotFound)
}

func TestAppPublishRequiresOutputDir(t *testing.T) {
	err := newApp().Run([]string{"build", "publish", "--out", filepath.Join(t.TempDir(), "missing")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run build first")
}

func TestAppPublishRequiresConfig(t *testing.T) {
	for _, key := range []string{"R2_ENDPOINT", "R2_ACCESS_KEY", "R2_SECRET_KEY", "R2_BUCKET"} {
		t.Setenv(key, "")
	}

	err := newApp().Run([]string{"build", "publish", "--out", t.TempDir()})
	require.ErrorIs(t, err, config.ErrMissingRequired)
}

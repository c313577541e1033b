package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const templateFixture = `<!DOCTYPE html>
<html lang="en-US">
<head>
<meta charset="UTF-8">
<link rel="stylesheet" id="bricks-frontend-css" href="css/frontend-layer.min.css" media="all">
<link rel="stylesheet" href="css/font-awesome-6-brands-layer.min.css" media="all">
<link rel="stylesheet" href="css/font-awesome-6-layer.min.css" media="all">
<link rel="stylesheet" href="css/ionicons-layer.min.css" media="all">
<link rel="stylesheet" href="css/style.css" media="all">
<link rel="dns-prefetch" href="//www.googletagmanager.com">
<title>RareSkills</title>
</head>
<body>
<main>hello</main>
<script src="js/bricks.min.js"></script>
<script src="js/l.js"></script>
</body>
</html>`

func process(t *testing.T, src string) string {
	t.Helper()
	var out bytes.Buffer
	require.NoError(t, processHTML(strings.NewReader(src), &out))
	return out.String()
}

func TestProcessHTMLRemovesComponentStylesheets(t *testing.T) {
	out := process(t, templateFixture)

	for href := range removedStylesheets {
		assert.NotContains(t, out, `href="`+href+`"`)
	}
	assert.Contains(t, out, `<title>RareSkills</title>`)
}

func TestProcessHTMLInsertsStylesheetAfterMarker(t *testing.T) {
	out := process(t, templateFixture)

	assert.Equal(t, 1, strings.Count(out, `href="css/styles.css"`))
	assert.Contains(t, out, `id="global-styles-css"`)

	marker := strings.Index(out, `href="//www.googletagmanager.com"`)
	link := strings.Index(out, `href="css/styles.css"`)
	require.NotEqual(t, -1, marker)
	assert.Greater(t, link, marker)
	assert.Less(t, link, strings.Index(out, "<title>"))
}

func TestProcessHTMLInsertsEntryBeforeVendor(t *testing.T) {
	out := process(t, templateFixture)

	assert.Equal(t, 1, strings.Count(out, `src="js/main.js"`))
	entry := strings.Index(out, `<script src="js/main.js"></script>`)
	vendor := strings.Index(out, `<script src="js/bricks.min.js"></script>`)
	require.NotEqual(t, -1, entry)
	assert.Less(t, entry, vendor)
}

func TestProcessHTMLIsIdempotent(t *testing.T) {
	once := process(t, templateFixture)
	twice := process(t, once)

	assert.Equal(t, once, twice)
	assert.Equal(t, 1, strings.Count(twice, `href="css/styles.css"`))
	assert.Equal(t, 1, strings.Count(twice, `src="js/main.js"`))
}

func TestProcessHTMLIgnoresAttributeOrder(t *testing.T) {
	src := strings.Replace(templateFixture,
		`<link rel="stylesheet" href="css/style.css" media="all">`,
		`<link media="all" href="css/style.css" rel="stylesheet">`, 1)
	src = strings.Replace(src,
		`<link rel="dns-prefetch" href="//www.googletagmanager.com">`,
		`<link href="//www.googletagmanager.com" rel="dns-prefetch">`, 1)

	out := process(t, src)
	assert.NotContains(t, out, `href="css/style.css"`)
	assert.Greater(t, strings.Index(out, `href="css/styles.css"`), strings.Index(out, `//www.googletagmanager.com`))
}

func TestProcessHTMLFallsBackWithoutMarkers(t *testing.T) {
	out := process(t, `<html><head><title>x</title></head><body><p>y</p></body></html>`)

	assert.Contains(t, out, `<link rel="stylesheet" id="global-styles-css" href="css/styles.css" media="all"/></head>`)
	assert.Contains(t, out, `<script src="js/main.js"></script></body>`)
}

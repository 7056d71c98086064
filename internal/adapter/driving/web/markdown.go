package web

import (
	"bytes"
	"sync"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

var (
	mdRenderer    goldmark.Markdown
	htmlSanitizer *bluemonday.Policy
)

func init() {
	mdRenderer = goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(html.WithUnsafe()),
	)

	htmlSanitizer = bluemonday.UGCPolicy()
}

// promptHelp is shown under the credential form.
const promptHelp = `Paste the access token for the configured service.

- **GitHub**: a personal access token. Create one under
  [Settings > Developer settings](https://github.com/settings/tokens).
- **Gateway**: the bot token issued by the gateway operator.

The token is stored in ` + "`config.db`" + ` in the data directory and is
reused on the next start. When reconnecting fails too many times in a row
you will be asked for a token again.`

// RenderMarkdown converts a markdown string to sanitized HTML.
// Returns empty string for empty input.
func RenderMarkdown(src string) string {
	if src == "" {
		return ""
	}

	var buf bytes.Buffer
	if err := mdRenderer.Convert([]byte(src), &buf); err != nil {
		return htmlSanitizer.Sanitize(src)
	}

	return htmlSanitizer.Sanitize(buf.String())
}

var promptHelpHTML = sync.OnceValue(func() string {
	return RenderMarkdown(promptHelp)
})

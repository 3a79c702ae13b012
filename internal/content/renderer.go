package content

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"

	"github.com/yuin/goldmark"
)

var ErrUnsupportedRenderer = errors.New("unsupported renderer")

// RendererType selects how a Body's raw text becomes HTML.
type RendererType string

const (
	RendererMarkdown RendererType = "markdown"
	RendererHTML     RendererType = "html"
)

// Body is a page fragment waiting to be embedded in an index page.
type Body struct {
	Renderer RendererType
	Raw      string
}

var md = goldmark.New()

// RenderHTML turns the body into an HTML fragment. HTML bodies are trusted
// and passed through unchanged.
func RenderHTML(body Body) (template.HTML, error) {
	switch body.Renderer {
	case RendererMarkdown:
		var buf bytes.Buffer
		if err := md.Convert([]byte(body.Raw), &buf); err != nil {
			return "", fmt.Errorf("convert markdown: %w", err)
		}
		return template.HTML(buf.String()), nil
	case RendererHTML:
		return template.HTML(body.Raw), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedRenderer, body.Renderer)
	}
}

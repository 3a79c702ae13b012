package content

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderHTML(t *testing.T) {
	tests := []struct {
		name      string
		body      Body
		contains  []string
		expectErr bool
	}{
		{
			name:     "markdown",
			body:     Body{Renderer: RendererMarkdown, Raw: "# Results\nSee **attached** files."},
			contains: []string{"<h1>Results</h1>", "<strong>attached</strong>"},
		},
		{
			name:     "html passthrough",
			body:     Body{Renderer: RendererHTML, Raw: "<p>raw <em>fragment</em></p>"},
			contains: []string{"<p>raw <em>fragment</em></p>"},
		},
		{
			name:      "unknown renderer",
			body:      Body{Renderer: "rst", Raw: "title\n====="},
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			html, err := RenderHTML(tt.body)
			if tt.expectErr {
				require.ErrorIs(t, err, ErrUnsupportedRenderer)
				return
			}
			require.NoError(t, err)
			for _, want := range tt.contains {
				assert.True(t, strings.Contains(string(html), want), "expected %q in %q", want, html)
			}
		})
	}
}

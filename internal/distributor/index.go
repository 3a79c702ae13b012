package distributor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"datadist/internal/content"
)

const (
	IndexFileName = "index.html"

	defaultIndexTitle = "Data"
	defaultIndexBody  = "<h1>Data Placeholder</h1>\n<p>This page was automatically generated.</p>\n"

	maxTemplateBytes = 8 << 20
)

var errNoTemplateURL = errors.New("no template url configured")

var fallbackTemplate = template.Must(template.New(IndexFileName).Parse(`<!DOCTYPE html>
<html lang="en">
  <head>
    <meta charset="utf-8">
    <meta name="robots" content="noindex, nofollow">
    <title>{{.Title}}</title>
  </head>
  <body>
{{.Body}}
  </body>
</html>
`))

// IndexSource tells where the content of a written index page came from.
type IndexSource string

const (
	IndexFromTemplate IndexSource = "template"
	IndexFallback     IndexSource = "fallback"
)

// IndexOptions feed the fallback page and the template request.
type IndexOptions struct {
	Verify TLSVerify
	// Title is HTML-escaped into <title>. Defaults to "Data".
	Title string
	// BodyHTML is embedded verbatim and wins over BodyMarkdown.
	BodyHTML string
	// BodyMarkdown is rendered to HTML when BodyHTML is empty.
	BodyMarkdown string
}

// IndexResult reports the written file and which branch produced it.
type IndexResult struct {
	Path   string      `json:"path"`
	Source IndexSource `json:"source"`
}

// templateFetch is the outcome of one template download attempt. When ok is
// false, reason says why and the caller falls back to the stub page.
type templateFetch struct {
	body   string
	ok     bool
	reason error
}

func (d *Distributor) fetchTemplate(ctx context.Context, verify TLSVerify) templateFetch {
	if d.cfg.TemplateURL == "" {
		return templateFetch{reason: errNoTemplateURL}
	}

	client, release, err := d.newClient(d.cfg.TemplateURL, d.templateTimeout, verify)
	if err != nil {
		return templateFetch{reason: err}
	}
	defer release()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.cfg.TemplateURL, nil)
	if err != nil {
		return templateFetch{reason: err}
	}
	resp, err := client.Do(req)
	if err != nil {
		return templateFetch{reason: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return templateFetch{reason: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTemplateBytes+1))
	if err != nil {
		return templateFetch{reason: fmt.Errorf("read body: %w", err)}
	}
	if len(body) > maxTemplateBytes {
		return templateFetch{reason: fmt.Errorf("template larger than %d bytes", maxTemplateBytes)}
	}
	return templateFetch{body: string(body), ok: true}
}

// ReadIndexTemplate downloads the configured template. It reports false
// instead of an error for every failure, including a missing template URL.
func (d *Distributor) ReadIndexTemplate(ctx context.Context, verify TLSVerify) (string, bool) {
	res := d.fetchTemplate(ctx, verify)
	if !res.ok {
		d.logger.Debug("index template unavailable", "url", d.cfg.TemplateURL, "reason", res.reason)
	}
	return res.body, res.ok
}

// WriteIndex writes dir/index.html from the remote template, or from the
// fallback page when the template cannot be fetched. Only filesystem
// problems are returned as errors.
func (d *Distributor) WriteIndex(ctx context.Context, dir string, opts IndexOptions) (IndexResult, error) {
	result := IndexResult{
		Path:   filepath.Join(dir, IndexFileName),
		Source: IndexFromTemplate,
	}

	page, ok := d.ReadIndexTemplate(ctx, opts.Verify)
	if !ok {
		fallback, err := renderFallback(opts)
		if err != nil {
			return IndexResult{}, err
		}
		page = fallback
		result.Source = IndexFallback
	}

	if err := writeFile(result.Path, []byte(page)); err != nil {
		return IndexResult{}, err
	}
	return result, nil
}

func renderFallback(opts IndexOptions) (string, error) {
	title := opts.Title
	if title == "" {
		title = defaultIndexTitle
	}

	src := content.Body{Renderer: content.RendererHTML, Raw: defaultIndexBody}
	switch {
	case opts.BodyHTML != "":
		src.Raw = opts.BodyHTML
	case opts.BodyMarkdown != "":
		src = content.Body{Renderer: content.RendererMarkdown, Raw: opts.BodyMarkdown}
	}
	body, err := content.RenderHTML(src)
	if err != nil {
		return "", fmt.Errorf("%w: index body: %w", ErrInvalidArgument, err)
	}

	var buf bytes.Buffer
	err = fallbackTemplate.Execute(&buf, struct {
		Title string
		Body  template.HTML
	}{Title: title, Body: body})
	if err != nil {
		return "", fmt.Errorf("render fallback index: %w", err)
	}
	return buf.String(), nil
}

// writeFile writes through a temp file and a rename so a reader never sees
// a partially written page.
func writeFile(path string, data []byte) error {
	tmpPath := path + ".tmp"

	file, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("%w: open temp file: %w", ErrFilesystem, err)
	}
	if _, err := file.Write(data); err != nil {
		_ = file.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("%w: write index: %w", ErrFilesystem, err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("%w: close temp file: %w", ErrFilesystem, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("%w: rename temp file: %w", ErrFilesystem, err)
	}
	return nil
}

package distributor

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"datadist/internal/slug"
)

const (
	defaultTemplateTimeout = 5 * time.Second
	defaultProbeTimeout    = 3 * time.Second

	// Below this many characters a slug can be found by enumeration.
	minRecommendedSlugLength = 16
)

// Config describes where distributions live on disk and where they are
// published.
type Config struct {
	BaseDir     string
	BaseURL     string
	TemplateURL string
	// SlugLength defaults to slug.DefaultLength when zero.
	SlugLength int
	// SuppressInsecureWarning silences the warning this Distributor logs
	// when a request skips TLS verification. Other instances are unaffected.
	SuppressInsecureWarning bool
}

// Distribution is one shareable location.
type Distribution struct {
	Slug string `json:"slug"`
	Path string `json:"path"`
	URL  string `json:"url"`
	// Index is set when Create wrote an index page.
	Index *IndexResult `json:"index,omitempty"`
}

// Distributor creates slug directories and maps them to public URLs.
// It holds no mutable state after New returns.
type Distributor struct {
	cfg             Config
	logger          *slog.Logger
	templateTimeout time.Duration
}

// Option configures a Distributor.
type Option func(*Distributor)

// WithLogger sets the logger. Nil is ignored.
func WithLogger(l *slog.Logger) Option {
	return func(d *Distributor) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithTemplateTimeout bounds the index template download. Non-positive
// values are ignored.
func WithTemplateTimeout(timeout time.Duration) Option {
	return func(d *Distributor) {
		if timeout > 0 {
			d.templateTimeout = timeout
		}
	}
}

// New validates and normalizes cfg. The base directory is resolved to an
// absolute path but not created.
func New(cfg Config, opts ...Option) (*Distributor, error) {
	if strings.TrimSpace(cfg.BaseDir) == "" {
		return nil, fmt.Errorf("%w: base directory is required", ErrInvalidArgument)
	}
	absDir, err := filepath.Abs(cfg.BaseDir)
	if err != nil {
		return nil, fmt.Errorf("%w: resolve base directory: %w", ErrInvalidArgument, err)
	}
	cfg.BaseDir = absDir

	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if err := validateURL(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("%w: base url: %w", ErrInvalidArgument, err)
	}

	cfg.TemplateURL = strings.TrimRight(strings.TrimSpace(cfg.TemplateURL), "/")
	if cfg.TemplateURL != "" {
		if err := validateURL(cfg.TemplateURL); err != nil {
			return nil, fmt.Errorf("%w: template url: %w", ErrInvalidArgument, err)
		}
	}

	switch {
	case cfg.SlugLength < 0, cfg.SlugLength > slug.MaxLength:
		return nil, fmt.Errorf("%w: slug length %d", ErrInvalidArgument, cfg.SlugLength)
	case cfg.SlugLength == 0:
		cfg.SlugLength = slug.DefaultLength
	}

	d := &Distributor{
		cfg:             cfg,
		logger:          slog.Default(),
		templateTimeout: defaultTemplateTimeout,
	}
	for _, opt := range opts {
		opt(d)
	}

	if cfg.SlugLength < minRecommendedSlugLength {
		d.logger.Warn("slug length is short enough to be guessed",
			"slug_length", cfg.SlugLength,
			"recommended", minRecommendedSlugLength,
		)
	}
	return d, nil
}

func validateURL(raw string) error {
	if raw == "" {
		return errors.New("empty url")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%q needs a scheme and a host", raw)
	}
	return nil
}

// Config returns the normalized configuration.
func (d *Distributor) Config() Config {
	return d.cfg
}

// MakeSlug returns a random slug of length characters, or of the configured
// length when length is zero. Lengths outside 1..slug.MaxLength are rejected
// before anything is allocated.
func (d *Distributor) MakeSlug(length int) (string, error) {
	if length == 0 {
		length = d.cfg.SlugLength
	}
	s, err := slug.New(length)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	return s, nil
}

// CreateDataDir creates BaseDir/slug. The call fails with ErrAlreadyExists
// when anything is already at that path; the parent must exist.
func (d *Distributor) CreateDataDir(slugID string) (string, error) {
	if !slug.Valid(slugID) {
		return "", fmt.Errorf("%w: slug %q", ErrInvalidArgument, slugID)
	}

	path := filepath.Join(d.cfg.BaseDir, slugID)
	if err := os.Mkdir(path, 0o755); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return "", fmt.Errorf("%w: %w", ErrAlreadyExists, err)
		}
		return "", fmt.Errorf("%w: create data dir: %w", ErrFilesystem, err)
	}
	return path, nil
}

// CreateDataURL joins the base URL and the slug.
func (d *Distributor) CreateDataURL(slugID string) string {
	return d.cfg.BaseURL + "/" + slugID
}

// CreateOptions controls a single Create call.
type CreateOptions struct {
	// Length overrides the configured slug length when non-zero.
	Length    int
	WithIndex bool
	Index     IndexOptions
}

// Create generates a slug, creates its directory, optionally writes an
// index page, and returns the new distribution.
//
// Nothing is rolled back. If the index cannot be written the directory
// stays on disk and the returned Distribution describes it alongside the
// error. ErrAlreadyExists is returned as is; callers decide whether to retry.
func (d *Distributor) Create(ctx context.Context, opts CreateOptions) (Distribution, error) {
	slugID, err := d.MakeSlug(opts.Length)
	if err != nil {
		return Distribution{}, err
	}

	path, err := d.CreateDataDir(slugID)
	if err != nil {
		return Distribution{}, err
	}

	dist := Distribution{
		Slug: slugID,
		Path: path,
		URL:  d.CreateDataURL(slugID),
	}

	if opts.WithIndex {
		res, err := d.WriteIndex(ctx, path, opts.Index)
		if err != nil {
			d.logger.Error("write index", "slug", slugID, "path", path, "error", err)
			return dist, err
		}
		d.logger.Debug("index written", "slug", slugID, "source", res.Source)
		dist.Index = &res
	}

	d.logger.Info("distribution created", "slug", slugID, "path", dist.Path, "url", dist.URL)
	return dist, nil
}

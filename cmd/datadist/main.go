package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"datadist/internal/config"
	"datadist/internal/distributor"
	"datadist/internal/logger"
	"datadist/internal/qrcode"
	"datadist/internal/server"
)

const usage = `usage: datadist <command> [flags]

commands:
  create   create a new distribution directory and print its URL
  check    report whether a distribution URL is reachable
  serve    serve distributions and the HTTP API
`

var errNotReachable = errors.New("not reachable")

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	var err error
	switch cmd, args := os.Args[1], os.Args[2:]; cmd {
	case "create":
		err = runCreate(args, os.Stdout)
	case "check":
		err = runCheck(args, os.Stdout)
	case "serve":
		err = runServe(args)
	case "-h", "--help", "help":
		fmt.Fprint(os.Stdout, usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage)
		os.Exit(2)
	}

	switch {
	case err == nil:
	case errors.Is(err, errNotReachable):
		os.Exit(1)
	case errors.Is(err, flag.ErrHelp):
		os.Exit(2)
	default:
		slog.Error("datadist failed", "error", err)
		os.Exit(1)
	}
}

// envFlags lets command line flags override environment settings before
// config.Load reads them.
type envFlags struct {
	values map[string]*string
}

func addEnvFlags(fs *flag.FlagSet) *envFlags {
	ef := &envFlags{values: map[string]*string{
		"DATADIST_BASE_DIR":     fs.String("base-dir", "", "override the base directory"),
		"DATADIST_BASE_URL":     fs.String("base-url", "", "override the public base URL"),
		"DATADIST_TEMPLATE_URL": fs.String("template-url", "", "override the index template URL"),
		"DATADIST_CA_BUNDLE":    fs.String("ca-bundle", "", "PEM bundle used to verify TLS certificates"),
		"LOG_LEVEL":             fs.String("log-level", "", "debug, info, warn or error"),
	}}
	return ef
}

func (ef *envFlags) apply() {
	for key, v := range ef.values {
		if *v != "" {
			_ = os.Setenv(key, *v)
		}
	}
}

type app struct {
	cfg    config.Config
	logger *slog.Logger
	dist   *distributor.Distributor
}

func setup(command string, ef *envFlags, insecure bool) (*app, error) {
	ef.apply()
	if insecure {
		_ = os.Setenv("DATADIST_TLS_SKIP_VERIFY", "true")
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	format, err := logger.ParseFormat(cfg.LogFormat)
	if err != nil {
		return nil, err
	}
	log := logger.New(
		logger.WithLevel(level),
		logger.WithFormat(format),
		logger.WithAttr(slog.String("command", command)),
	)
	slog.SetDefault(log)

	dist, err := distributor.New(cfg.Distributor(),
		distributor.WithLogger(log),
		distributor.WithTemplateTimeout(cfg.TemplateTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("init distributor: %w", err)
	}
	return &app{cfg: cfg, logger: log, dist: dist}, nil
}

func runCreate(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("create", flag.ContinueOnError)
	ef := addEnvFlags(fs)
	withIndex := fs.Bool("index", false, "write an index.html into the new directory")
	title := fs.String("title", "", "title of the fallback index page")
	body := fs.String("body", "", "HTML body of the fallback index page")
	markdownFile := fs.String("markdown", "", "Markdown file rendered as the fallback index body")
	length := fs.Int("length", 0, "slug length (default from DATADIST_SLUG_LENGTH)")
	insecure := fs.Bool("insecure", false, "skip TLS certificate verification")
	check := fs.Bool("check", true, "probe the new URL after creation")
	showQR := fs.Bool("qr", false, "print the URL as a QR code")
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := setup("create", ef, *insecure)
	if err != nil {
		return err
	}

	var bodyMarkdown string
	if *markdownFile != "" {
		raw, err := os.ReadFile(*markdownFile)
		if err != nil {
			return fmt.Errorf("read markdown body: %w", err)
		}
		bodyMarkdown = string(raw)
	}

	ctx := context.Background()
	dist, err := a.dist.Create(ctx, distributor.CreateOptions{
		Length:    *length,
		WithIndex: *withIndex,
		Index: distributor.IndexOptions{
			Verify:       a.cfg.TLSVerify(),
			Title:        *title,
			BodyHTML:     *body,
			BodyMarkdown: bodyMarkdown,
		},
	})
	if err != nil {
		if dist.Path != "" {
			fmt.Fprintf(out, "Directory (incomplete):\n%s\n", dist.Path)
		}
		return err
	}

	fmt.Fprintf(out, "Slug:\n%s\nDirectory:\n%s\nURL:\n%s\n", dist.Slug, dist.Path, dist.URL)
	if dist.Index != nil {
		fmt.Fprintf(out, "Index:\n%s (%s)\n", dist.Index.Path, dist.Index.Source)
	}
	if *check {
		reachable := a.dist.URLExists(ctx, dist.Slug, a.cfg.ProbeTimeout, a.cfg.TLSVerify())
		fmt.Fprintf(out, "URL reachable?\n%t\n", reachable)
	}
	if *showQR {
		qr, err := qrcode.Terminal(dist.URL)
		if err != nil {
			return err
		}
		fmt.Fprint(out, qr)
	}
	return nil
}

func runCheck(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	ef := addEnvFlags(fs)
	insecure := fs.Bool("insecure", false, "skip TLS certificate verification")
	timeout := fs.Duration("timeout", 0, "request timeout (default from DATADIST_PROBE_TIMEOUT)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(fs.Output(), "usage: datadist check [flags] <slug>")
		return flag.ErrHelp
	}

	a, err := setup("check", ef, *insecure)
	if err != nil {
		return err
	}
	if *timeout <= 0 {
		*timeout = a.cfg.ProbeTimeout
	}

	res := a.dist.Probe(context.Background(), fs.Arg(0), *timeout, a.cfg.TLSVerify())
	fmt.Fprintf(out, "%s\n%t\n", res.URL, res.Reachable())
	if !res.Reachable() {
		return errNotReachable
	}
	return nil
}

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	ef := addEnvFlags(fs)
	bind := fs.String("bind", "", "override bind address, e.g. :9090")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *bind != "" {
		_ = os.Setenv("BIND_ADDR", *bind)
	}

	a, err := setup("serve", ef, false)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(a.dist.Config().BaseDir, 0o755); err != nil {
		return fmt.Errorf("create base dir: %w", err)
	}

	s, err := server.New(a.cfg, a.dist, a.logger)
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              a.cfg.BindAddr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	a.logger.Info("starting server", "addr", a.cfg.BindAddr, "base_dir", a.dist.Config().BaseDir)

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server exited: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"oif/internal/config"
	"oif/internal/datasource/file"
	"oif/internal/datasource/httpds"
	"oif/internal/extract"
	"oif/internal/indicator"
	"oif/internal/objectstore"
	"oif/internal/pipeline"
	"oif/internal/schema"

	// built-in indicator transforms register themselves by theme.
	_ "oif/internal/indicator/air"
	// register all warehouse backends with the storage factory.
	_ "oif/internal/storage/all"
)

type options struct {
	cfgPath        string
	envFile        string
	theme          string
	indicator      string
	all            bool
	listPath       string
	validate       bool
	dryRun         string
	stageReport    bool
	metricsBackend string
	pushgatewayURL string
	statsdAddr     string
	verbose        bool
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var o options
	fs := flag.NewFlagSet("oif", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.cfgPath, "config", "configs/oif.yaml", "config file (YAML or JSON)")
	fs.StringVar(&o.envFile, "env-file", ".env", "dotenv file with OIF_* overrides; ignored when missing")
	fs.StringVar(&o.theme, "theme", "", "theme to run, e.g. air")
	fs.StringVar(&o.indicator, "indicator", "", "indicator to run within -theme, e.g. one")
	fs.BoolVar(&o.all, "all", false, "run every configured indicator")
	fs.StringVar(&o.listPath, "list", "", "file listing theme/indicator refs to run, one per line")
	fs.BoolVar(&o.validate, "validate", false, "lint the config and schema registry and exit")
	fs.StringVar(&o.dryRun, "dry-run", "", "upload into this local directory instead of the configured store")
	fs.BoolVar(&o.stageReport, "stage-report", false, "print per-stage timings after the run")
	fs.StringVar(&o.metricsBackend, "metrics-backend", "", "metrics backend: none, pushgateway or datadog (overrides config)")
	fs.StringVar(&o.pushgatewayURL, "pushgateway-url", "", "Pushgateway base URL")
	fs.StringVar(&o.statsdAddr, "statsd-addr", "", "DogStatsD address")
	fs.BoolVar(&o.verbose, "v", false, "enable verbose logs")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	return o, nil
}

// main loads the config, wires stores and metrics, and runs the selected
// indicators. The exit status is 1 on any config error or failed indicator.
func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	o, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if err := loadEnvFile(o.envFile); err != nil {
		fmt.Fprintf(stderr, "env file: %v\n", err)
		return 1
	}

	cfg, err := config.Load(o.cfgPath)
	if err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return 1
	}
	applyEnv(cfg)

	issues := config.ValidateConfig(*cfg)
	for _, iss := range issues {
		fmt.Fprintf(stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if config.Errors(issues) != nil {
		log.Printf("Configuration is invalid: %v", o.cfgPath)
		return 1
	}

	var reg *schema.Registry
	if cfg.Schemas != "" {
		if reg, err = schema.LoadRegistry(cfg.Schemas); err != nil {
			fmt.Fprintf(stderr, "%v\n", err)
			return 1
		}
	}

	if o.validate {
		if err := checkChains(cfg); err != nil {
			fmt.Fprintf(stderr, "%v\n", err)
			return 1
		}
		log.Printf("Configuration is valid: %v", o.cfgPath)
		return 0
	}

	refs, err := selectRefs(cfg, o)
	if err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return 1
	}

	flush := setupMetrics(cfg.Metrics, o)
	defer flush()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner, err := buildRunner(ctx, cfg, reg, o)
	if err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return 1
	}
	runner.Verbose = o.verbose

	start := time.Now()
	if o.verbose {
		log.Printf("oif: run=%s indicators=%d workers=%d storage=%s", runner.RunID, len(refs), runner.Workers, cfg.Storage.Kind)
	}
	results, err := runner.RunAll(ctx, refs)
	if o.stageReport {
		_ = pipeline.WriteReport(stdout, results)
	}
	if o.verbose {
		log.Printf("completed in %s", time.Since(start).Truncate(time.Millisecond))
	}
	if err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return 1
	}
	return 0
}

// buildRunner wires the extractor and uploader for cfg. An s3 storage
// config also serves s3:// extraction sources, even in a dry run.
func buildRunner(ctx context.Context, cfg *config.Config, reg *schema.Registry, o options) (*pipeline.Runner, error) {
	httpc := httpds.NewClient(httpds.Config{MaxRetries: 3})
	ex := &extract.Extractor{HTTP: httpc}

	var s3store *objectstore.S3
	if cfg.Storage.Kind == "s3" {
		var err error
		if s3store, err = objectstore.NewS3(ctx, cfg.Storage); err != nil {
			return nil, err
		}
		ex.S3 = s3store.Source
	}

	var store objectstore.Store
	switch {
	case o.dryRun != "":
		local, err := objectstore.NewLocal(o.dryRun)
		if err != nil {
			return nil, err
		}
		log.Printf("oif: dry run, uploads go to %s", local.Dir())
		store = local
	case s3store != nil:
		store = s3store
	default:
		var err error
		if store, err = objectstore.New(ctx, cfg.Storage); err != nil {
			return nil, err
		}
	}

	up := &objectstore.Uploader{Store: store, HTTP: httpc, Year: cfg.Year}
	return pipeline.New(cfg, reg, ex, up), nil
}

// selectRefs turns the selection flags into the indicators to run.
func selectRefs(cfg *config.Config, o options) ([]config.Ref, error) {
	switch {
	case o.all:
		return cfg.Refs(), nil
	case o.listPath != "":
		lines, err := file.ReadList(o.listPath)
		if err != nil {
			return nil, fmt.Errorf("read list: %w", err)
		}
		refs := make([]config.Ref, 0, len(lines))
		for i, l := range lines {
			ref, err := parseRef(l)
			if err != nil {
				return nil, fmt.Errorf("%s line %d: %w", o.listPath, i+1, err)
			}
			refs = append(refs, ref)
		}
		return refs, nil
	case o.theme != "" && o.indicator != "":
		return []config.Ref{{Theme: o.theme, Indicator: o.indicator}}, nil
	case o.theme != "":
		var refs []config.Ref
		for _, r := range cfg.Refs() {
			if r.Theme == o.theme {
				refs = append(refs, r)
			}
		}
		if len(refs) == 0 {
			return nil, fmt.Errorf("no indicators configured for theme %q", o.theme)
		}
		return refs, nil
	}
	return nil, fmt.Errorf("nothing to run: pass -theme/-indicator, -list or -all")
}

func parseRef(s string) (config.Ref, error) {
	theme, ind, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok || theme == "" || ind == "" || strings.Contains(ind, "/") {
		return config.Ref{}, fmt.Errorf("bad ref %q, want theme/indicator", s)
	}
	return config.Ref{Theme: theme, Indicator: ind}, nil
}

// checkChains builds every indicator's transform chain so a missing builtin
// or a bad step option fails -validate.
func checkChains(cfg *config.Config) error {
	var errs []error
	for _, ref := range cfg.Refs() {
		ind, err := cfg.Lookup(ref.Theme, ref.Indicator)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if _, err := indicator.Chain(ref, ind); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// loadEnvFile loads OIF_* variables from a dotenv file without replacing
// variables already set in the environment.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return godotenv.Load(path)
}

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/openclaw/qrbatch/api"
	"github.com/openclaw/qrbatch/bundle"
	"github.com/openclaw/qrbatch/config"
	"github.com/openclaw/qrbatch/encoder"
	"github.com/openclaw/qrbatch/metrics"
	"github.com/openclaw/qrbatch/service"
	"github.com/openclaw/qrbatch/store"
)

var version = "v0.1.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "qrbatch",
		Short: "Batch QR code generator with zip download",
	}

	// --- start command -------------------------------------------------------
	var configPath string
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the HTTP service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStart(configPath)
		},
	}
	startCmd.Flags().StringVarP(&configPath, "config", "c", "config.yaml", "Path to config file")
	root.AddCommand(startCmd)

	// --- generate command ----------------------------------------------------
	var gen generateFlags
	generateCmd := &cobra.Command{
		Use:   "generate [text...]",
		Short: "Encode texts locally and write a zip of QR codes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd, gen, args)
		},
	}
	gf := generateCmd.Flags()
	gf.StringVarP(&gen.configPath, "config", "c", "config.yaml", "Path to config file (for defaults)")
	gf.StringVarP(&gen.inputFile, "file", "f", "", `Read one text per line from file ("-" for stdin)`)
	gf.StringVarP(&gen.output, "output", "o", bundle.ArchiveName, "Output zip path")
	gf.StringVar(&gen.level, "level", "", "Error correction level: low, medium, quartile, high")
	gf.StringVar(&gen.mask, "mask", "", `Mask pattern 0-7 or "auto"`)
	gf.IntVar(&gen.margin, "margin", -1, "Quiet zone in modules")
	gf.IntVar(&gen.width, "width", 0, "Image width in pixels")
	gf.StringVar(&gen.dark, "dark", "", "Dark module colour (#rrggbb)")
	gf.StringVar(&gen.light, "light", "", "Light module colour (#rrggbb)")
	gf.StringVar(&gen.format, "format", "", "Output format: svg or png")
	root.AddCommand(generateCmd)

	// --- preview command -----------------------------------------------------
	var previewLevel string
	previewCmd := &cobra.Command{
		Use:   "preview [text]",
		Short: "Print a QR code to the terminal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			level, err := encoder.ParseLevel(previewLevel)
			if err != nil {
				return err
			}
			out, err := service.TerminalPreview(args[0], level)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), out)
			return nil
		},
	}
	previewCmd.Flags().StringVar(&previewLevel, "level", "medium", "Error correction level")
	root.AddCommand(previewCmd)

	// --- status command ------------------------------------------------------
	var statusAddr string
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Check the service status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(statusAddr)
		},
	}
	statusCmd.Flags().StringVar(&statusAddr, "addr", "http://localhost:8556", "Service HTTP address")
	root.AddCommand(statusCmd)

	// --- version command -----------------------------------------------------
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "qrbatch %s\n", version)
		},
	})

	return root
}

func newLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
}

// runStart is the main service entrypoint that wires all components together.
func runStart(configPath string) error {
	// 1. Load config
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.EnsureDataDir(); err != nil {
		return fmt.Errorf("ensure data dir: %w", err)
	}
	defaults, err := cfg.EncoderDefaults()
	if err != nil {
		return fmt.Errorf("encoder defaults: %w", err)
	}

	// 2. Setup logger
	log := newLogger(cfg.LogLevel)
	slog.SetDefault(log)
	log.Info("starting qrbatch", "version", version, "port", cfg.Port, "data_dir", cfg.DataDir)

	// 3. Open batch ledger and archive store
	batches, err := store.NewBatchStore(cfg.DBPath())
	if err != nil {
		return fmt.Errorf("open batch store: %w", err)
	}
	defer batches.Close()

	archives, err := bundle.NewStore(cfg.BatchDir())
	if err != nil {
		return fmt.Errorf("open archive store: %w", err)
	}

	// 4. Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// 5. Generator and webhook
	webhook := service.NewWebhookSender(cfg.WebhookURL, log)
	gen := service.NewGenerator(archives, batches, webhook, m, log, cfg.Workers, cfg.MaxPayloads, cfg.PublicURL)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 6. Retention sweep
	service.StartSweepLoop(ctx, gen, cfg.SweepInterval.Duration, cfg.Retention.Duration, log)

	// 7. Start HTTP server
	srv := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Port),
		Handler: api.NewRouter(&api.Server{
			Generator: gen,
			Defaults:  defaults,
			Metrics:   m,
			Log:       log,
			Version:   version,
			StartTime: time.Now(),
		}),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info("HTTP server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	log.Info("service is running", "form_url", fmt.Sprintf("http://localhost:%d/", cfg.Port))

	// 8. Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", "error", err)
	}

	log.Info("goodbye")
	return nil
}

type generateFlags struct {
	configPath string
	inputFile  string
	output     string
	level      string
	mask       string
	margin     int
	width      int
	dark       string
	light      string
	format     string
}

// options starts from the config defaults and applies any flags that were
// set on the command line.
func (f generateFlags) options(cmd *cobra.Command) (encoder.Options, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return encoder.Options{}, fmt.Errorf("load config: %w", err)
	}
	opts, err := cfg.EncoderDefaults()
	if err != nil {
		return encoder.Options{}, err
	}

	flags := cmd.Flags()
	if flags.Changed("level") {
		if opts.Level, err = encoder.ParseLevel(f.level); err != nil {
			return opts, err
		}
	}
	if flags.Changed("mask") {
		if opts.Mask, err = encoder.ParseMask(f.mask); err != nil {
			return opts, err
		}
	}
	if flags.Changed("format") {
		if opts.Format, err = encoder.ParseFormat(f.format); err != nil {
			return opts, err
		}
	}
	if flags.Changed("margin") {
		opts.Margin = f.margin
	}
	if flags.Changed("width") {
		opts.Width = f.width
	}
	if flags.Changed("dark") {
		opts.Color.Dark = f.dark
	}
	if flags.Changed("light") {
		opts.Color.Light = f.light
	}
	return opts, opts.Validate()
}

// runGenerate encodes locally and writes the archive of successful images.
// It fails only when nothing could be encoded.
func runGenerate(cmd *cobra.Command, f generateFlags, args []string) error {
	opts, err := f.options(cmd)
	if err != nil {
		return err
	}

	payloads := append([]string(nil), args...)
	if f.inputFile != "" {
		lines, err := readLines(cmd.InOrStdin(), f.inputFile)
		if err != nil {
			return err
		}
		payloads = append(payloads, lines...)
	}
	if len(payloads) == 0 {
		return service.ErrNoPayloads
	}

	results := encoder.EncodeAll(cmd.Context(), encoder.Batch(payloads, opts), 0)
	out := cmd.OutOrStdout()
	for _, r := range results {
		if r.OK() {
			fmt.Fprintf(out, "#%d ok     %s  %q\n", r.Index, r.Artifact.Filename(), r.Payload)
		} else {
			fmt.Fprintf(out, "#%d failed %s  %q: %v\n", r.Index, encoder.Kind(r.Err), r.Payload, r.Err)
		}
	}

	artifacts := encoder.Artifacts(results)
	if len(artifacts) == 0 {
		return errors.New("no payload could be encoded")
	}

	file, err := os.Create(f.output)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	if err := bundle.Write(file, artifacts); err != nil {
		file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close output: %w", err)
	}
	fmt.Fprintf(out, "wrote %d of %d codes to %s\n", len(artifacts), len(results), f.output)
	return nil
}

func readLines(stdin io.Reader, path string) ([]string, error) {
	var r io.Reader = stdin
	if path != "-" {
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open input: %w", err)
		}
		defer file.Close()
		r = file
	}

	var lines []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		// Blank lines stay in so they are reported as failed items.
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return lines, nil
}

// runStatus queries the service HTTP status endpoint.
func runStatus(addr string) error {
	resp, err := http.Get(addr + "/status")
	if err != nil {
		return fmt.Errorf("failed to reach service at %s: %w", addr, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return fmt.Errorf("read status: %w", err)
	}
	fmt.Println(string(body))
	return nil
}

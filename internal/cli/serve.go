package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"imaged/internal/catalog"
	"imaged/internal/config"
	"imaged/internal/httpapi"
	"imaged/internal/loader"
	"imaged/internal/manager"
)

const shutdownTimeout = 5 * time.Second

type serveFlags struct {
	addr            string
	modelsDir       string
	device          string
	forceCPU        bool
	plugins         string
	busyPolicy      string
	watch           bool
	skipInitialScan bool
	logFile         string
	corsOrigins     string
}

func newServeCmd(opts *Options) *cobra.Command {
	var sf serveFlags
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP daemon",
		Example: "  imaged serve --models-dir ~/models/image\n" +
			"  imaged serve --config imaged.yaml --watch",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(opts, cmd, sf)
			if err != nil {
				return err
			}
			log, closer := newLogger(cfg.LogLevel, cfg.LogFile, opts.Stderr)
			defer closer.Close()
			return fnServe(cmd.Context(), cfg, log)
		},
	}
	f := cmd.Flags()
	f.StringVar(&sf.addr, "addr", "", "HTTP listen address, e.g. :5000 (defaults IMAGED_ADDR)")
	f.StringVar(&sf.modelsDir, "models-dir", "", "Storage root to scan for artifacts (defaults IMAGED_MODELS_DIR)")
	f.StringVar(&sf.device, "device", "", "Device placement: auto|cuda|cpu")
	f.BoolVar(&sf.forceCPU, "force-cpu", false, "Run on cpu even when an accelerator is present")
	f.StringVar(&sf.plugins, "plugins", "", fmt.Sprintf("Comma-separated bundle plugins in dispatch order (available: %v)", loader.Available()))
	f.StringVar(&sf.busyPolicy, "busy-policy", "", "What a load does while another transition runs: block|fail")
	f.BoolVar(&sf.watch, "watch", false, "Rescan automatically when the storage root changes")
	f.BoolVar(&sf.skipInitialScan, "skip-initial-scan", false, "Serve the persisted index without scanning at start")
	f.StringVar(&sf.logFile, "log-file", "", "Also write JSON logs to this file (rotated)")
	f.StringVar(&sf.corsOrigins, "cors-origins", "", "Comma-separated allowed CORS origins (empty disables CORS)")
	return cmd
}

// resolveConfig layers file < environment < flags, then fills defaults.
func resolveConfig(opts *Options, cmd *cobra.Command, sf serveFlags) (config.Config, error) {
	var cfg config.Config
	if opts.ConfigPath != "" {
		c, err := config.Load(opts.ConfigPath)
		if err != nil {
			return cfg, err
		}
		cfg = c
	}
	cfg.ApplyEnv()

	f := cmd.Flags()
	if f.Changed("addr") {
		cfg.Addr = sf.addr
	}
	if f.Changed("models-dir") {
		cfg.ModelsDir = sf.modelsDir
	}
	if f.Changed("device") {
		cfg.Device = sf.device
	}
	if f.Changed("force-cpu") {
		cfg.ForceCPU = sf.forceCPU
	}
	if f.Changed("plugins") {
		cfg.Plugins = splitCSV(sf.plugins)
	}
	if f.Changed("busy-policy") {
		cfg.BusyPolicy = sf.busyPolicy
	}
	if f.Changed("watch") {
		cfg.Watch = sf.watch
	}
	if f.Changed("skip-initial-scan") {
		cfg.SkipInitialScan = sf.skipInitialScan
	}
	if f.Changed("log-file") {
		cfg.LogFile = sf.logFile
	}
	if f.Changed("cors-origins") {
		cfg.CORSOrigins = splitCSV(sf.corsOrigins)
	}
	if opts.LogLevel != "" {
		cfg.LogLevel = opts.LogLevel
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// fnServe is swapped in tests.
var fnServe = runServe

// daemon is the assembled server: catalog, loaders, manager and HTTP mux.
type daemon struct {
	cfg     config.Config
	log     zerolog.Logger
	catalog *catalog.Catalog
	mgr     *manager.Manager
	watcher *catalog.Watcher
	handler http.Handler
}

var accelerator = config.AcceleratorAvailable

func buildDaemon(ctx context.Context, cfg config.Config, log zerolog.Logger) (*daemon, error) {
	modelsDir, err := cfg.ResolveModelsDir()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(modelsDir, 0o755); err != nil {
		return nil, fmt.Errorf("models dir: %w", err)
	}
	indexPath := cfg.IndexPath(modelsDir)

	cat := catalog.New(catalog.Config{
		Root:      modelsDir,
		IndexPath: indexPath,
		Logger:    log.With().Str("component", "catalog").Logger(),
	})
	if err := cat.Open(); err != nil {
		return nil, err
	}

	dev := loader.Device{Name: cfg.ResolveDevice(accelerator), DType: cfg.DType, Xformers: cfg.UseXformers}
	if !dev.Accelerated() {
		dev = loader.CPU()
	}
	backend := loader.InertBackend{}
	reg, err := loader.BuildRegistry(cfg.Plugins, loader.Env{
		Backend:       backend,
		TranslatorDir: cfg.ResolveTranslatorDir(modelsDir),
	})
	if err != nil {
		return nil, err
	}

	mgr := manager.NewWithConfig(manager.ManagerConfig{
		Catalog:      cat,
		Dispatcher:   loader.NewDispatcher(reg, backend),
		Backend:      backend,
		Device:       dev,
		BusyPolicy:   cfg.BusyPolicy,
		DrainTimeout: time.Duration(cfg.DrainTimeoutMS) * time.Millisecond,
		MaxWait:      time.Duration(cfg.MaxWaitMS) * time.Millisecond,
		Generation: manager.GenerationDefaults{
			Steps:         cfg.DefaultSteps,
			Guidance:      cfg.DefaultGuidance,
			Width:         cfg.DefaultWidth,
			Height:        cfg.DefaultHeight,
			MaxResolution: cfg.MaxResolution,
		},
		Logger: log.With().Str("component", "manager").Logger(),
	})

	if !cfg.SkipInitialScan {
		if _, err := mgr.Rescan(ctx); err != nil {
			return nil, fmt.Errorf("initial scan: %w", err)
		}
	}

	d := &daemon{cfg: cfg, log: log, catalog: cat, mgr: mgr}
	if cfg.Watch {
		w, err := catalog.NewWatcher(modelsDir, d.autoRescan, log.With().Str("component", "watcher").Logger(), filepath.Base(indexPath))
		if err != nil {
			return nil, fmt.Errorf("watch %s: %w", modelsDir, err)
		}
		d.watcher = w
	}

	httpapi.SetLogger(log.With().Str("component", "http").Logger())
	httpapi.SetDefaultLogLevel(cfg.LogLevel)
	httpapi.SetCORSOptions(len(cfg.CORSOrigins) > 0, cfg.CORSOrigins, nil, nil)
	d.handler = httpapi.NewMux(mgr)

	log.Info().
		Str("models_dir", modelsDir).
		Str("index", indexPath).
		Str("device", dev.String()).
		Strs("plugins", reg.Names()).
		Int("artifacts", cat.Len()).
		Msg("daemon ready")
	return d, nil
}

func (d *daemon) autoRescan() {
	if _, err := d.mgr.Rescan(context.Background()); err != nil {
		d.log.Warn().Err(err).Msg("auto rescan failed")
	}
}

// close stops the watcher and releases the loaded model.
func (d *daemon) close(ctx context.Context) error {
	var errs []error
	if d.watcher != nil {
		errs = append(errs, d.watcher.Close())
	}
	errs = append(errs, d.mgr.Unload(ctx))
	return errors.Join(errs...)
}

func runServe(ctx context.Context, cfg config.Config, log zerolog.Logger) error {
	ctx, stop := signalContext(ctx)
	defer stop()

	d, err := buildDaemon(ctx, cfg, log)
	if err != nil {
		return err
	}
	httpapi.SetBaseContext(ctx)
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           d.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("imaged listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	case serveErr = <-errCh:
		log.Error().Err(serveErr).Msg("server error")
	}

	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.Warn().Err(err).Msg("graceful shutdown error")
	}
	if err := d.close(sctx); err != nil {
		log.Warn().Err(err).Msg("release error")
	}
	return serveErr
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/smkaiser/songfix/internal/api"
	"github.com/smkaiser/songfix/internal/cache"
	"github.com/smkaiser/songfix/internal/config"
	"github.com/smkaiser/songfix/internal/correction"
	"github.com/smkaiser/songfix/internal/database"
	"github.com/smkaiser/songfix/internal/logging"
	"github.com/smkaiser/songfix/internal/maintenance"
	"github.com/smkaiser/songfix/internal/provider"
	"github.com/smkaiser/songfix/internal/provider/musicbrainz"
	"github.com/smkaiser/songfix/internal/provider/openai"
	"github.com/smkaiser/songfix/internal/resolver"
	"github.com/smkaiser/songfix/internal/version"
)

func main() {
	var err error
	cmd := ""
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}
	switch cmd {
	case "", "serve":
		err = serve()
	case "fix":
		err = fix(os.Args[2:], os.Stdout)
	case "maintain":
		err = maintain(os.Args[2:], os.Stdout)
	case "version":
		fmt.Printf("songfix %s (%s)\n", version.Version, version.Commit)
	default:
		err = fmt.Errorf("unknown command %q: want serve, fix, maintain or version", cmd)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// app is the wiring shared by serve and fix.
type app struct {
	cfg      *config.Config
	logs     *logging.Manager
	logger   *slog.Logger
	resolver *resolver.Resolver
	closers  []func()

	// maint is nil unless the cache is SQLite.
	maint *maintenance.Service
}

func newApp(ctx context.Context, cfg *config.Config, logOut io.Writer) (*app, error) {
	// Set up structured logging via the logging Manager
	logs, err := logging.NewWithWriter(cfg.Logging, logOut)
	if err != nil {
		return nil, fmt.Errorf("configuring logging: %w", err)
	}
	logger := logs.Logger()
	slog.SetDefault(logger)

	a := &app{cfg: cfg, logs: logs, logger: logger}
	a.closers = append(a.closers, func() { _ = logs.Close() })

	store, err := a.openStore(ctx)
	if err != nil {
		a.close()
		return nil, err
	}

	// MusicBrainz allows one request per second per client; the gate is
	// shared by every resolution in the process.
	gate := provider.NewGate(cfg.MusicBrainz.MinInterval)
	mb := musicbrainz.New(gate, logger,
		musicbrainz.WithBaseURL(cfg.MusicBrainz.BaseURL),
		musicbrainz.WithThreshold(cfg.MusicBrainz.Threshold),
		musicbrainz.WithLimit(cfg.MusicBrainz.Limit),
		musicbrainz.WithTimeout(cfg.MusicBrainz.Timeout),
		musicbrainz.WithRetryDelay(cfg.MusicBrainz.RetryDelay),
	)

	aiOpts := []openai.Option{openai.WithModel(cfg.OpenAI.Model)}
	if cfg.OpenAI.BaseURL != "" {
		aiOpts = append(aiOpts, openai.WithBaseURL(cfg.OpenAI.BaseURL))
	}
	ai := openai.New(cfg.OpenAI.APIKey, logger, aiOpts...)
	if !ai.Enabled() {
		logger.Info("openai fallback disabled: no API key configured")
	}

	a.resolver = resolver.New(store, mb, ai, logger)
	return a, nil
}

// openStore opens the correction cache selected by the database driver.
func (a *app) openStore(ctx context.Context) (resolver.Store, error) {
	dbCfg := a.cfg.Database
	switch dbCfg.Driver {
	case config.DriverPostgres:
		store, err := cache.NewPostgres(ctx, dbCfg.DSN)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, store.Close)
		a.logger.Info("database ready", slog.String("driver", dbCfg.Driver))
		return store, nil
	default:
		db, err := database.Open(dbCfg.Path)
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
		a.closers = append(a.closers, func() {
			if err := db.Close(); err != nil {
				a.logger.Error("closing database", "error", err)
			}
		})
		if err := database.Migrate(db); err != nil {
			return nil, fmt.Errorf("running migrations: %w", err)
		}
		a.logger.Info("database ready", slog.String("driver", dbCfg.Driver), slog.String("path", dbCfg.Path))
		a.maint = maintenance.NewService(db, dbCfg.Path, a.logger)
		return cache.NewSQLite(db), nil
	}
}

// close releases resources in reverse order of acquisition.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func serve() error {
	// Load configuration
	configPath := config.PathFromEnv()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, os.Stdout)
	if err != nil {
		return err
	}
	defer a.close()
	logger := a.logger

	logger.Info("starting songfix",
		slog.String("version", version.Version),
		slog.String("commit", version.Commit),
	)

	// Set up HTTP router
	router := api.NewRouter(api.RouterDeps{
		Resolver:       a.resolver,
		Logger:         logger,
		ClientInterval: cfg.Server.ClientInterval,
		ClientBurst:    cfg.Server.ClientBurst,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router.Handler(ctx),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	if a.maint != nil && cfg.Database.MaintenanceInterval > 0 {
		go a.maint.StartScheduler(ctx, cfg.Database.MaintenanceInterval)
	}

	// Reapply the logging section when the config file changes. Other
	// sections take effect on restart.
	watcher := config.NewWatcher(configPath, func(next *config.Config) {
		if err := a.logs.Apply(next.Logging); err != nil {
			logger.Warn("ignoring logging change", "error", err)
			return
		}
		logger.Info("logging reconfigured",
			slog.String("level", next.Logging.Level),
			slog.String("format", next.Logging.Format))
	}, logger)
	go func() {
		if err := watcher.Run(ctx); err != nil {
			logger.Warn("config watcher stopped", "error", err)
		}
	}()

	errc := make(chan error, 1)
	go func() {
		logger.Info("server starting", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errc:
		return fmt.Errorf("server error: %w", err)
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}

// fix resolves one name and prints the result as JSON to out. Logs go to
// stderr so out stays machine-readable.
func fix(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("fix", flag.ContinueOnError)
	typFlag := fs.String("type", "auto", "type hint: artist, song or auto")
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "usage: songfix fix [-type artist|song|auto] NAME")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	name := strings.Join(fs.Args(), " ")
	if name == "" {
		fs.Usage()
		return errors.New("name is required")
	}
	typ, err := correction.ParseType(*typFlag)
	if err != nil {
		return err
	}

	cfg, err := config.Load(config.PathFromEnv())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, os.Stderr)
	if err != nil {
		return err
	}
	defer a.close()

	result := a.resolver.Resolve(ctx, name, typ)
	enc := json.NewEncoder(out)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// maintain optimizes the SQLite cache, optionally vacuums it, and prints its
// status as JSON to out.
func maintain(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("maintain", flag.ContinueOnError)
	vacuum := fs.Bool("vacuum", false, "rebuild the database file after optimizing")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(config.PathFromEnv())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.Database.Driver != config.DriverSQLite {
		return fmt.Errorf("maintain supports the sqlite driver only, configured %q", cfg.Database.Driver)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, os.Stderr)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.maint.Optimize(ctx); err != nil {
		return err
	}
	if *vacuum {
		if err := a.maint.Vacuum(ctx); err != nil {
			return err
		}
	}
	st, err := a.maint.Status(ctx)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(st)
}

// Command docintake serves the document intake and admin API.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"

	docintake "github.com/Skryldev/doc-intake"
	"github.com/Skryldev/doc-intake/adapters/storage"
	"github.com/Skryldev/doc-intake/config"
	"github.com/Skryldev/doc-intake/core"
	"github.com/Skryldev/doc-intake/hooks"
	"github.com/Skryldev/doc-intake/intake"
	"github.com/Skryldev/doc-intake/login"
	"github.com/Skryldev/doc-intake/notify"
	"github.com/Skryldev/doc-intake/records"
	"github.com/Skryldev/doc-intake/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "docintake:", err)
		os.Exit(1)
	}
}

func run() error {
	// ── 1. Config ─────────────────────────────────────────────────────────────
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel(cfg.LogLevel)}))
	slog.SetDefault(logger)
	coreLogger := hooks.NewSlogLogger(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ── 2. Observability ──────────────────────────────────────────────────────
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := server.NewMetrics(reg)

	// ── 3. Transformer ────────────────────────────────────────────────────────
	tr, err := docintake.NewTransformer(cfg)
	if err != nil {
		return err
	}
	shutdownCodec, err := installCodec(cfg, tr)
	if err != nil {
		return err
	}
	defer shutdownCodec()
	tr.SetLogger(coreLogger)
	tr.AddHook(hooks.NewLoggingHook(coreLogger))
	tr.AddHook(hooks.NewMetricsHook(hooks.NewPrometheusMetrics(reg)))

	// ── 4. Storage and records ────────────────────────────────────────────────
	googleOpts := googleClientOptions(ctx, cfg.Google)

	store, err := newBlobStore(ctx, cfg, googleOpts)
	if err != nil {
		return err
	}
	table, closeTable, err := newTable(ctx, cfg, googleOpts)
	if err != nil {
		return err
	}
	defer closeTable()
	repo := records.NewRepository(table)

	// ── 5. Notifications ──────────────────────────────────────────────────────
	var dispatcher intake.Dispatcher
	if cfg.LINE.ChannelAccessToken != "" {
		loc, err := cfg.Location()
		if err != nil {
			return err
		}
		line, err := notify.NewLINE(cfg.LINE.ChannelAccessToken, "", loc)
		if err != nil {
			return err
		}
		d := notify.NewDispatcher(line, cfg.NotifyWorkers, cfg.NotifyQueueSize, cfg.NotifyTimeout)
		d.SetLogger(coreLogger)
		d.SetObserver(metrics)
		d.Start()
		defer d.Stop()
		dispatcher = d
	} else {
		logger.Info("notifications disabled: LINE_CHANNEL_ACCESS_TOKEN not set")
	}

	// ── 6. HTTP ───────────────────────────────────────────────────────────────
	svc, err := intake.NewService(cfg, tr, store, repo, dispatcher)
	if err != nil {
		return err
	}
	svc.SetLogger(coreLogger)

	deps := server.Deps{
		Intake:   svc,
		Records:  repo,
		Metrics:  metrics,
		Gatherer: reg,
		Logger:   logger,
	}
	if cfg.LINE.ChannelID != "" && cfg.LINE.ChannelSecret != "" {
		deps.Login = login.NewLINE(cfg.LINE, login.DefaultEndpoints)
	}
	srv := server.New(cfg.HTTPAddr, server.Router(cfg, deps))

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http.listen", "addr", cfg.HTTPAddr, "storage", cfg.Storage, "records", cfg.Records, "id_mode", cfg.IDMode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("http.shutdown")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	// Deferred: drain notifications, close the table, stop the codec.
	return nil
}

func logLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// googleClientOptions authenticates Drive and Sheets with a stored refresh
// token when one is configured, and with application default credentials
// otherwise.
func googleClientOptions(ctx context.Context, g config.GoogleConfig) []option.ClientOption {
	if g.RefreshToken == "" {
		return nil
	}
	oc := &oauth2.Config{
		ClientID:     g.ClientID,
		ClientSecret: g.ClientSecret,
		Endpoint:     google.Endpoint,
	}
	ts := oc.TokenSource(ctx, &oauth2.Token{RefreshToken: g.RefreshToken})
	return []option.ClientOption{option.WithTokenSource(ts)}
}

func newBlobStore(ctx context.Context, cfg config.Config, googleOpts []option.ClientOption) (core.BlobStore, error) {
	switch cfg.Storage {
	case config.StorageS3:
		client, err := storage.NewS3Client(ctx, cfg.S3)
		if err != nil {
			return nil, err
		}
		return storage.NewS3(client, cfg.S3)
	case config.StorageDrive:
		return storage.NewDrive(ctx, cfg.Drive.FolderID, googleOpts...)
	}
	return storage.NewLocal(cfg.Local.RootDir, cfg.Local.BaseURL, os.FileMode(cfg.Local.Permissions))
}

func newTable(ctx context.Context, cfg config.Config, googleOpts []option.ClientOption) (records.Table, func(), error) {
	switch cfg.Records {
	case config.RecordsSheets:
		t, err := records.NewSheetsTable(ctx, cfg.Sheets.SpreadsheetID, cfg.Sheets.SheetName, googleOpts...)
		if err != nil {
			return nil, nil, err
		}
		if err := t.Migrate(ctx); err != nil {
			return nil, nil, err
		}
		return t, func() {}, nil
	case config.RecordsPostgres:
		pool, err := records.NewPool(ctx, cfg.Postgres.DSN)
		if err != nil {
			return nil, nil, err
		}
		t := records.NewPostgresTable(pool, cfg.Postgres.Table)
		if err := t.Migrate(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return t, pool.Close, nil
	}
	return records.NewMemoryTable(), func() {}, nil
}

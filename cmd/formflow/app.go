package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/goliatone/go-formflow/internal/config"
	"github.com/goliatone/go-formflow/pkg/form"
	"github.com/goliatone/go-formflow/pkg/mailer"
	"github.com/goliatone/go-formflow/pkg/metrics"
	"github.com/goliatone/go-formflow/pkg/render"
	"github.com/goliatone/go-formflow/pkg/schema"
	"github.com/goliatone/go-formflow/pkg/session"
	"github.com/goliatone/go-formflow/pkg/store/postgres"
	"github.com/goliatone/go-formflow/pkg/submission"
	"github.com/goliatone/go-formflow/pkg/upload"
)

// app holds the collaborators wired from the configuration.
type app struct {
	cfg     config.Config
	logger  *zap.SugaredLogger
	schemas *schema.FileProvider
	engine  *form.Engine
	metrics *metrics.Collector
	closers []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func newApp(ctx context.Context, cfg config.Config, logger *zap.SugaredLogger, registry prometheus.Registerer) (*app, error) {
	a := &app{cfg: cfg, logger: logger}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	schemas, err := schema.NewDirProvider(cfg.Forms.Dir, schema.WithProviderLogger(logger))
	if err != nil {
		return nil, err
	}
	a.schemas = schemas

	catalog := render.DefaultCatalog()
	if dir := strings.TrimSpace(cfg.Forms.Translations); dir != "" {
		if err := catalog.LoadFS(os.DirFS(dir)); err != nil {
			return nil, fmt.Errorf("translations: %w", err)
		}
	}

	a.metrics = metrics.New(metrics.WithRegistry(registry))

	sessions, err := a.sessionStore()
	if err != nil {
		return nil, err
	}

	uploads, err := a.uploadManager()
	if err != nil {
		return nil, err
	}

	opts := []form.Option{
		form.WithSchemaProvider(schemas),
		form.WithSessionStore(sessions),
		form.WithUploads(uploads),
		form.WithTranslator(catalog),
		form.WithTemplateDir(cfg.Forms.Templates),
		form.WithRecorder(a.metrics),
		form.WithLogger(logger),
		form.WithValueTTL(cfg.Session.ValueTTL),
		form.WithProcessorOptions(
			submission.WithSender(cfg.Mail.From, cfg.Mail.FromName),
			submission.WithStrictSinks(cfg.Server.StrictSinks),
			submission.WithBaseURL(cfg.Server.BaseURL),
			submission.WithSinkFailureObserver(a.metrics.SinkFailed),
		),
	}

	if host := strings.TrimSpace(cfg.Mail.Host); host != "" {
		smtpOpts := []mailer.SMTPOption{
			mailer.WithPort(cfg.Mail.Port),
			mailer.WithTimeout(cfg.Mail.Timeout),
			mailer.WithLogger(logger),
		}
		if cfg.Mail.Username != "" {
			smtpOpts = append(smtpOpts, mailer.WithAuth(cfg.Mail.Username, cfg.Mail.Password))
		}
		if cfg.Mail.RequireTLS {
			smtpOpts = append(smtpOpts, mailer.WithMandatoryTLS())
		}
		m, err := mailer.NewSMTPMailer(host, smtpOpts...)
		if err != nil {
			return nil, err
		}
		opts = append(opts, form.WithMailer(m))
	}

	if dsn := strings.TrimSpace(cfg.Database.DSN); dsn != "" {
		store, pool, err := postgres.Connect(ctx, dsn, postgres.WithTimeout(cfg.Database.Timeout), postgres.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, pool.Close)
		opts = append(opts, form.WithStore(store))
	}

	a.engine = form.New(opts...)
	ok = true
	return a, nil
}

func (a *app) sessionStore() (session.Store, error) {
	cfg := a.cfg.Session
	if strings.EqualFold(cfg.Backend, "redis") {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		a.closers = append(a.closers, func() {
			if err := client.Close(); err != nil {
				a.logger.Warnw("redis close failed", "error", err)
			}
		})
		return session.NewRedisStore(client,
			session.WithRedisPrefix(cfg.RedisPrefix),
			session.WithRedisTTL(cfg.TTL),
			session.WithRedisLogger(a.logger),
		), nil
	}
	return session.NewMemoryStore(session.WithMemoryTTL(cfg.TTL)), nil
}

func (a *app) uploadManager() (*upload.Manager, error) {
	cfg := a.cfg.Uploads
	var indexOpts []upload.IndexOption
	if cfg.Manifest != "" {
		indexOpts = append(indexOpts, upload.WithManifest(cfg.Manifest))
	}
	index, err := upload.NewFilesystemIndex(indexOpts...)
	if err != nil {
		return nil, err
	}
	opts := []upload.Option{
		upload.WithStagingDir(cfg.StagingDir),
		upload.WithMaxFileSize(cfg.MaxFileSize),
		upload.WithImageLimits(cfg.MaxImageWidth, cfg.MaxImageHeight),
		upload.WithRejectObserver(a.metrics.UploadRejected),
		upload.WithLogger(a.logger),
	}
	if len(cfg.Extensions) > 0 {
		opts = append(opts, upload.WithDefaultExtensions(cfg.Extensions...))
	}
	return upload.NewManager(index, opts...)
}

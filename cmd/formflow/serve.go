package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/goliatone/go-formflow/pkg/httpform"
	"github.com/goliatone/go-formflow/pkg/render"
	"github.com/goliatone/go-formflow/pkg/render/template/gotemplate"
)

func newServeCommand(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the forms over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_ = flags.v.BindPFlag("server.addr", cmd.Flags().Lookup("addr"))
			return runServe(cmd.Context(), flags)
		},
	}
	cmd.Flags().String("addr", ":8080", "listen address")
	return cmd
}

func runServe(ctx context.Context, flags *globalFlags) error {
	cfg, logger, err := flags.load()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	a, err := newApp(ctx, cfg, logger, registry)
	if err != nil {
		return err
	}
	defer a.Close()

	pages, err := gotemplate.New(
		gotemplate.WithBaseDir(cfg.Forms.Templates),
		gotemplate.WithFS(render.TemplatesFS()),
	)
	if err != nil {
		return err
	}
	handler := httpform.New(a.engine,
		httpform.WithCookieName(cfg.Server.CookieName),
		httpform.WithSecureCookie(cfg.Server.SecureCookie),
		httpform.WithMaxBodySize(cfg.Server.MaxBodySize),
		httpform.WithTempDir(cfg.Server.TempDir),
		httpform.WithPage(render.NewFormRenderer(pages), nil),
		httpform.WithLogger(logger),
	)

	router := chi.NewRouter()
	router.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	router.Handle(cfg.Server.MetricsPath, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	handler.Mount(router)

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	reload := make(chan os.Signal, 1)
	signal.Notify(reload, syscall.SIGHUP)
	defer signal.Stop(reload)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-reload:
				if err := a.schemas.Reload(); err == nil {
					logger.Infow("form definitions reloaded", "forms", a.schemas.IDs())
				}
			}
		}
	}()

	errs := make(chan error, 1)
	go func() {
		logger.Infow("formflow listening", "addr", cfg.Server.Addr, "forms", a.schemas.IDs())
		errs <- srv.ListenAndServe()
	}()

	select {
	case err := <-errs:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	logger.Infow("formflow shutting down")
	return srv.Shutdown(shutdownCtx)
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"review-auth/internal/config"
	"review-auth/internal/factory"
	"review-auth/internal/handler"
	tlsmgr "review-auth/internal/tls"
	"review-auth/internal/util"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := util.Init(cfg.Environment, cfg.Logging.Level, cfg.Logging.Format)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	f, err := factory.NewFactory(ctx, cfg)
	if err != nil {
		util.Fatal("Startup failed", zap.Error(err))
	}
	defer f.Close()

	health := func(w http.ResponseWriter, r *http.Request) {
		if err := f.HealthCheck(r.Context()); err != nil {
			util.Error("Health check failed", zap.Error(err))
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprintln(w, "unhealthy")
			return
		}
		fmt.Fprintln(w, "ok")
	}

	router := handler.NewRouter(cfg, f.Chain, f.AuthHandler, health)

	g, ctx := errgroup.WithContext(ctx)

	// Background pipelines: the audit recorder drains security events to
	// its sinks, the sweeper prunes expired revocation entries.
	g.Go(func() error {
		f.Recorder.Run(ctx)
		return nil
	})
	g.Go(func() error {
		f.Sweeper.Run(ctx)
		return nil
	})

	srv := &http.Server{
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	if cfg.Server.EnableTLS {
		manager := tlsmgr.NewManager(cfg.Server)
		srv.Addr = fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.TLSPort)
		srv.TLSConfig = manager.TLSConfig()

		// Plain HTTP answers ACME challenges and redirects everything else.
		if ac := manager.AutocertManager(); ac != nil {
			redirect := &http.Server{
				Addr: cfg.GetServerAddress(),
				Handler: ac.HTTPHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					target := "https://" + r.Host + r.URL.RequestURI()
					http.Redirect(w, r, target, http.StatusMovedPermanently)
				})),
			}
			g.Go(func() error {
				if err := redirect.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return redirect.Shutdown(shutdownCtx)
			})
		}

		g.Go(func() error {
			util.Info("HTTPS server listening", zap.String("addr", srv.Addr))
			if err := srv.ListenAndServeTLS("", ""); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	} else {
		srv.Addr = cfg.GetServerAddress()
		g.Go(func() error {
			util.Info("HTTP server listening", zap.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		util.Info("Shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		util.Error("Server exited with error", zap.Error(err))
		os.Exit(1)
	}
	util.Info("Server stopped")
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/hazyhaar/hcbot/courtfetch"
	"github.com/hazyhaar/hcbot/courtfetch/httpapi"
	"github.com/hazyhaar/hcbot/courtfetch/tesseract"
)

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP front end",
		Args:  cobra.NoArgs,
		RunE:  runServeCmd,
	}
	cmd.Flags().String("addr", "", "listen address (default: http.addr from the config)")
	return cmd
}

func runServeCmd(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.HTTP.Addr = addr
	}

	cat, err := loadCatalog(cfg)
	if err != nil {
		return err
	}
	engine, err := tesseract.New(tesseract.Config{
		Languages: cfg.Captcha.Languages,
		Whitelist: cfg.Captcha.Whitelist,
	})
	if err != nil {
		return err
	}
	defer engine.Close()

	history, err := courtfetch.OpenHistory(cfg.History.DB)
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	defer history.Close()

	sinks := append(courtfetch.SinksFromConfig(cfg, nil, logger), courtfetch.NewDirSink(cfg.Output.Dir))
	runner := courtfetch.NewRunner(cfg, logger,
		courtfetch.WithSinks(sinks...),
		courtfetch.WithRecognizer(engine),
		courtfetch.WithHistory(history),
	)
	defer runner.Close()

	ln, err := net.Listen("tcp", cfg.HTTP.Addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	srv := &http.Server{
		Handler:           httpapi.New(runner, cat, history, logger).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return serve(ctx, ln, srv, logger, 10*time.Second)
}

// serve runs srv on ln until ctx is done. Request contexts are cancelled
// when shutdown starts, so a run in progress stops, reports its remaining
// cases and returns before Shutdown completes.
func serve(ctx context.Context, ln net.Listener, srv *http.Server, logger *slog.Logger, grace time.Duration) error {
	reqCtx, cancelRequests := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelRequests()
	srv.BaseContext = func(net.Listener) context.Context { return reqCtx }

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("serve: listening", "addr", ln.Addr().String())
		if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("serve: shutting down")
		cancelRequests()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), grace)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("serve: shutdown: %w", err)
		}
		return nil
	})
	return g.Wait()
}

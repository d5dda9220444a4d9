package main

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/alnah/go-reportpdf/internal/server"
)

// shutdownTimeout bounds the graceful shutdown of in-flight requests.
const shutdownTimeout = 30 * time.Second

// runServe serves report assembly over HTTP until ctx is cancelled.
// listen opens the listener; nil listens on the configured address.
func runServe(ctx context.Context, args []string, env *Environment, listen func(addr string) (net.Listener, error)) error {
	flags, err := parseServeFlags(args, env.Stderr)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(flags.common, flags.render, flags.storage)
	if err != nil {
		return err
	}
	if flags.addr != "" {
		cfg.Server.Addr = flags.addr
	}

	a, err := newApp(ctx, cfg, env)
	if err != nil {
		return err
	}
	defer a.close()

	var gatherer prometheus.Gatherer
	if cfg.Metrics.Enabled && env.Registry != nil {
		gatherer = env.Registry
	}
	srv := server.New(server.Config{
		Address:      cfg.Server.Addr,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
		MetricsPath:  cfg.Metrics.Path,
		Gatherer:     gatherer,
	}, a.run, a.logger)

	if listen == nil {
		listen = func(addr string) (net.Listener, error) { return net.Listen("tcp", addr) }
	}
	ln, err := listen(cfg.Server.Addr)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return <-errCh
}

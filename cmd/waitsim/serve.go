package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/phuslu/log"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/sanjaysanjel019/serenity/limits"
	"github.com/sanjaysanjel019/serenity/stats"
)

var serveInterval time.Duration

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "run races continuously and expose the kernel metrics",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Path, promhttp.HandlerFor(stats.Registry, promhttp.HandlerOpts{}))
		srv := &http.Server{Addr: cfg.Metrics.ListenAddress, Handler: mux}

		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			log.Info().Str("addr", srv.Addr).Str("path", cfg.Metrics.Path).Msg("serving metrics")
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return errors.Wrap(err, "metrics server")
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(sctx)
		})
		g.Go(func() error {
			t := time.NewTicker(serveInterval)
			defer t.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-t.C:
				}
				if _, err := race(limits.Syslimit, 8, 4); err != nil {
					return err
				}
			}
		})
		return g.Wait()
	},
}

func init() {
	serveCmd.Flags().DurationVar(&serveInterval, "interval", time.Second, "time between races")
}

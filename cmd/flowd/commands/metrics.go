package commands

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/iov-one/flowtree/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

func (c *cli) newMetricsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Serve prometheus metrics, optionally ticking the state periodically",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			interval, _ := cmd.Flags().GetDuration("tick")

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			sig := make(chan os.Signal, 1)
			signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
			go func() {
				select {
				case <-sig:
					cancel()
				case <-ctx.Done():
				}
			}()
			return c.serveMetrics(ctx, c.config.Listen, interval)
		},
	}
	cmd.Flags().String("listen", c.config.Listen, "address to serve /metrics on")
	cmd.Flags().Duration("tick", 0, "settle streams at this interval, never when 0")
	return cmd
}

// serveMetrics blocks until ctx is cancelled or the server fails.
func (c *cli) serveMetrics(ctx context.Context, listen string, interval time.Duration) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: listen, Handler: mux}

	errc := make(chan error, 1)
	go func() {
		c.logger.Info("serving metrics", "listen", listen)
		errc <- srv.ListenAndServe()
	}()

	var tick <-chan time.Time
	if interval > 0 {
		t := time.NewTicker(interval)
		defer t.Stop()
		tick = t.C
	}

	for {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		case err := <-errc:
			return errors.Wrap(err, "metrics server")
		case now := <-tick:
			if err := c.tickOnce(now); err != nil {
				c.logger.Error("tick", "err", err)
			}
		}
	}
}

func (c *cli) tickOnce(now time.Time) error {
	a, err := c.openApp()
	if err != nil {
		return err
	}
	defer a.Close()
	_, id, err := a.Tick(now)
	if err != nil {
		return err
	}
	c.logger.Debug("ticked", "version", id.Version)
	return nil
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/dsa-planner/internal/api"
	"github.com/sells-group/dsa-planner/internal/monitoring"
	"github.com/sells-group/dsa-planner/internal/simulation"
)

const shutdownTimeout = 10 * time.Second

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the planner API with the live simulation",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		sess, err := initSession()
		if err != nil {
			return err
		}
		sim, err := simulation.New(sess, cfg.Simulation)
		if err != nil {
			return err
		}
		resets, err := simulation.NewResetScheduler(sess, cfg.Simulation.ResetSchedule)
		if err != nil {
			return err
		}
		checker := monitoring.NewChecker(sess, monitoring.NewAlerter(cfg.Planner, cfg.Monitoring), cfg.Monitoring)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		g, gctx := errgroup.WithContext(ctx)
		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           api.New(gctx, sess, sim, cfg.Planner, cfg.Server).Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		g.Go(func() error {
			zap.L().Info("starting server", zap.Int("port", port))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return eris.Wrap(err, "server listen")
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
		if cfg.Simulation.AutoStart {
			g.Go(func() error { return sim.Run(gctx) })
		} else {
			g.Go(func() error {
				<-gctx.Done()
				sim.Stop()
				return nil
			})
		}
		if resets.Enabled() {
			g.Go(func() error { return resets.Run(gctx) })
		}
		g.Go(func() error { return checker.Run(gctx) })

		return g.Wait()
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

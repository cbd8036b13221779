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

	"github.com/halcyon-research/market-cli/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the read-only API",
	Long:  "Exposes freshness, suspended entities, run history, and latest landed payloads over HTTP.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		pool, err := marketPool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		journal, err := openJournal(ctx, pool)
		if err != nil {
			return err
		}
		defer journal.Close()

		reg, _, err := buildRegistry()
		if err != nil {
			return err
		}

		srv := server.New(pool, journal, reg, server.Options{
			Staleness:      time.Duration(cfg.Extract.StalenessHours) * time.Hour,
			FailureCeiling: cfg.Extract.FailureCeiling,
		})

		httpSrv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           srv.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			zap.L().Info("api listening", zap.Int("port", cfg.Server.Port))
			errCh <- httpSrv.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if !errors.Is(err, http.ErrServerClosed) {
				return eris.Wrap(err, "serve")
			}
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := httpSrv.Shutdown(shutdownCtx); err != nil {
				return eris.Wrap(err, "serve: shutdown")
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

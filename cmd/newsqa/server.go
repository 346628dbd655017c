package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hyperjump/newsqa/internal/server"
	"github.com/hyperjump/newsqa/internal/watcher"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServerCmd(opts *rootOptions) *cobra.Command {
	var host string
	var port int
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Start the HTTP server and the seed directory watcher",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, resolvedConfigPath, err := loadConfig(opts.configPath)
			if err != nil {
				return err
			}
			if host != "" {
				cfg.Server.Host = host
			}
			if port != 0 {
				cfg.Server.Port = port
			}
			logger, err := opts.logger(cfg, true)
			if err != nil {
				return err
			}
			defer logger.Sync()
			logger.Info("config loaded",
				zap.String("config_path", resolvedConfigPath),
				zap.Bool("debug", cfg.Debug || opts.debug),
			)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			components, err := initializeComponents(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer components.Close()

			seeds := watcher.New(components.Importer, cfg.Seed.Directories, cfg.Seed.Extensions,
				cfg.Seed.RecursiveOrDefault(), watcher.WithLogger(logger))
			if err := seeds.Start(ctx); err != nil {
				return err
			}
			defer seeds.Stop()
			go seeds.SyncExistingFiles()

			srvOpts := []server.Option{
				server.WithVersion(version),
				server.WithSeedWatcher(seeds, resolvedConfigPath, cfg),
			}
			if components.Cache != nil {
				srvOpts = append(srvOpts, server.WithCache(components.Cache))
			}
			srv := server.NewServer(components.Pipeline, &cfg.Server, logger, srvOpts...)

			errCh := make(chan error, 1)
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
			}()

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
			select {
			case <-sigChan:
			case err := <-errCh:
				return err
			}

			logger.Info("Shutting down...")
			cancel()
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer shutdownCancel()
			return srv.Stop(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&host, "host", "", "listen host (overrides server.host)")
	cmd.Flags().IntVar(&port, "port", 0, "listen port (overrides server.port)")
	return cmd
}

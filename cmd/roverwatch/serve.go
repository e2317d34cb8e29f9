package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/OCAP2/roverwatch/internal/config"
	"github.com/OCAP2/roverwatch/internal/query"
	"github.com/OCAP2/roverwatch/internal/storage"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newServeCmd(configDir *string) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve stored runs over HTTP until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(*configDir, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}

// serve opens the configured backend for reading and runs the query API
// until ctx is done.
func (a *app) serve(ctx context.Context, addr string) error {
	storageCfg := config.GetStorageConfig()
	backend, err := storage.NewBackend(storageCfg, a.Zerolog("database"), a.Logger)
	if err != nil {
		return err
	}
	reader, ok := backend.(storage.Reader)
	if !ok {
		return fmt.Errorf("storage type %s cannot be queried", storageCfg.Type)
	}
	if err := backend.Init(); err != nil {
		return fmt.Errorf("failed to initialize %s storage: %w", storageCfg.Type, err)
	}
	defer func() {
		if err := backend.Close(); err != nil {
			a.Logger.Warn("Failed to close storage backend", "error", err)
		}
	}()

	serverCfg := config.GetServerConfig()
	if addr == "" {
		addr = serverCfg.Addr
	}
	srv := query.NewServer(reader, a.Logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.ListenAndServe(gctx, addr, serverCfg.ShutdownTimeout)
	})
	g.Go(func() error {
		<-gctx.Done()
		a.Logger.Info("Shutting down query API")
		return a.OTelProvider.Flush(context.Background())
	})
	return g.Wait()
}

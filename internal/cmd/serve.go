package cmd

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/demoai/go-trainer/internal/artifact"
	"github.com/danielpatrickdp/demoai/go-trainer/internal/query"
)

// DefaultAddr is where serve listens and query dials unless told otherwise.
const DefaultAddr = "127.0.0.1:7070"

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the exported artifacts over gRPC (SIGHUP reloads them)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadSettings()
		if err != nil {
			return err
		}
		b, err := artifact.Load(cfg.ExportDir)
		if err != nil {
			return err
		}
		srv, err := query.NewServer(b, cfg.ExportDir)
		if err != nil {
			return err
		}

		lis, err := net.Listen("tcp", serveAddr)
		if err != nil {
			return fmt.Errorf("listen %s: %w", serveAddr, err)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		go watchReload(ctx, srv)

		return query.Serve(ctx, lis, srv)
	},
}

func watchReload(ctx context.Context, srv *query.Server) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			if err := srv.Reload(); err != nil {
				log.Error().Err(err).Msg("Reload failed, keeping previous artifacts")
			}
		}
	}
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", DefaultAddr, "listen address")
	rootCmd.AddCommand(serveCmd)
}

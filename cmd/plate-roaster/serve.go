package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	plateroaster "github.com/menta2k/plate-roaster"
	"github.com/menta2k/plate-roaster/internal/log"
	"github.com/menta2k/plate-roaster/pkg/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve POST /roast so clients never see the model API key",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := plateroaster.NewRoastService(cfg)
		if err != nil {
			return err
		}

		sc := plateroaster.ServerConfig(cfg)
		if serveAddr != "" {
			sc.Addr = serveAddr
		}
		srv := server.NewServer(svc, sc)

		errCh := make(chan error, 1)
		go func() { errCh <- srv.Start() }()

		select {
		case err := <-errCh:
			return err
		case <-cmd.Context().Done():
		}

		log.Printf("[server] Shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Stop(ctx)
	},
}

func init() {
	serveCmd.Flags().StringVarP(&serveAddr, "addr", "a", "", "listen address (default from config, :8888)")
	rootCmd.AddCommand(serveCmd)
}

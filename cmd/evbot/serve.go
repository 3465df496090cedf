package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/zulandar/evbot/internal/server"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		port       int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP chat and booking API",
		Long:  "Serves the station directory, the chat endpoint, and the booking form API, and sweeps expired state on the configured schedule.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath, port)
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().IntVarP(&port, "port", "p", 0, "port to listen on (overrides server.port)")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string, port int) error {
	cfg, err := loadConfig(cmd, configPath)
	if err != nil {
		return err
	}
	if port == 0 {
		port = cfg.Server.Port
	}

	gormDB, err := openDB(cfg)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", describeDB(cfg.Database), err)
	}
	a, err := buildApp(cfg, gormDB)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(cmd.OutOrStdout())
	defer cancel()

	go a.sweeper.Run(ctx)

	return server.Start(ctx, server.StartOpts{
		Opts: server.Opts{
			Bot:        a.bot,
			Directory:  a.dir,
			Forms:      a.forms,
			RatePerMin: cfg.Server.RatePerMin,
			RateBurst:  cfg.Server.RateBurst,
		},
		Port: port,
		Out:  cmd.OutOrStdout(),
	})
}

package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/joho/godotenv/autoload"
	"github.com/ruteri/challenge-oracle-client/cmd/clientcommon"
	"github.com/ruteri/challenge-oracle-client/cmd/flags"
	"github.com/ruteri/challenge-oracle-client/httpserver"
	"github.com/urfave/cli/v2"
)

var listenAddrFlag = &cli.StringFlag{
	Name:    "listen-addr",
	Value:   "127.0.0.1:8080",
	EnvVars: []string{"GATEWAY_LISTEN_ADDR"},
	Usage:   "address to listen on for API",
}

func main() {
	allFlags := []cli.Flag{listenAddrFlag, flags.LogServiceFlagFn("oracle-gateway")}
	allFlags = append(allFlags, flags.LogFlags...)
	allFlags = append(allFlags, flags.ServerFlags...)
	allFlags = append(allFlags, flags.OracleFlags...)
	allFlags = append(allFlags, flags.FlowFlags...)

	app := &cli.App{
		Name:  "oracle-gateway",
		Usage: "Serve the challenge flow over HTTP",
		Flags: allFlags,
		Action: func(cCtx *cli.Context) error {
			logger := flags.SetupLogger(cCtx)

			c, err := clientcommon.Build(cCtx, logger)
			if err != nil {
				logger.Error("Failed to set up challenge flow", "err", err)
				return err
			}
			defer c.Close()

			cfg := flags.ConfigureServer(cCtx, logger, cCtx.String(listenAddrFlag.Name))
			handler := httpserver.NewHandler(c.Orchestrator, cfg.FlowTimeout, logger)

			server, err := httpserver.New(cfg, handler)
			if err != nil {
				logger.Error("Failed to create server", "err", err)
				return err
			}
			server.RunInBackground()

			exit := make(chan os.Signal, 1)
			signal.Notify(exit, os.Interrupt, syscall.SIGTERM)

			logger.Info("Server is running, press Ctrl+C to stop")
			<-exit
			logger.Info("Shutdown signal received")

			server.Shutdown()
			logger.Info("Server shutdown complete")
			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/creatorclaim/publisher/cmd/flags"
	"github.com/creatorclaim/publisher/royaltysim"
	"github.com/urfave/cli/v2"
)

var cliFlags []cli.Flag = []cli.Flag{
	&cli.StringFlag{
		Name:  "listen-addr",
		Value: "127.0.0.1:3001",
		Usage: "address to listen on for stream subscribers",
	},
	&cli.DurationFlag{
		Name:  "interval",
		Value: royaltysim.DefaultEventInterval,
		Usage: "how often to emit a synthetic royalty event",
	},
	&cli.Int64Flag{
		Name:  "drain-seconds",
		Value: 45,
		Usage: "seconds to wait in drain HTTP request",
	},
	flags.LogJsonFlag,
	flags.LogDebugFlag,
	flags.LogUidFlag,
	flags.LogServiceFlag,
}

func main() {
	app := &cli.App{
		Name:  "royaltysim",
		Usage: "Run the development royalty event stream server",
		Flags: cliFlags,
		Action: func(cCtx *cli.Context) error {
			logger := flags.SetupLogger(cCtx)

			srv := royaltysim.New(&royaltysim.Config{
				ListenAddr:               cCtx.String("listen-addr"),
				EventInterval:            cCtx.Duration("interval"),
				Log:                      logger,
				DrainDuration:            time.Duration(cCtx.Int64("drain-seconds")) * time.Second,
				GracefulShutdownDuration: 30 * time.Second,
			})

			exit := make(chan os.Signal, 1)
			signal.Notify(exit, os.Interrupt, syscall.SIGTERM)

			srv.RunInBackground()
			<-exit

			logger.Info("Shutting down...")
			srv.Shutdown()
			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

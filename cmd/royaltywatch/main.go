package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/creatorclaim/publisher/cmd/flags"
	"github.com/creatorclaim/publisher/interfaces"
	"github.com/creatorclaim/publisher/royaltystream"
	"github.com/urfave/cli/v2"
)

var cliFlags []cli.Flag = []cli.Flag{
	flags.StreamURLFlag,
	&cli.StringFlag{
		Name:     "wallet",
		Required: true,
		Usage:    "wallet address to watch royalty events for",
	},
	flags.LogJsonFlag,
	flags.LogDebugFlag,
	flags.LogUidFlag,
	flags.LogServiceFlag,
}

func main() {
	app := &cli.App{
		Name:  "royaltywatch",
		Usage: "Tail real-time royalty events for a wallet",
		Flags: cliFlags,
		Action: func(cCtx *cli.Context) error {
			logger := flags.SetupLogger(cCtx)
			wallet := cCtx.String("wallet")

			client := royaltystream.NewClient(royaltystream.Config{
				Endpoint: cCtx.String(flags.StreamURLFlag.Name),
				OnEvent: func(event interfaces.RoyaltyEvent) {
					fmt.Printf("%s  %.6f from %s for %q (%s)\n",
						event.Timestamp, event.Amount, event.Source,
						event.CertificateTitle, event.CertificateID)
				},
			}, logger)
			defer client.Close()

			client.SetWallet(wallet)
			logger.Info("Watching royalty events", "wallet", wallet)

			exit := make(chan os.Signal, 1)
			signal.Notify(exit, os.Interrupt, syscall.SIGTERM)
			<-exit

			logger.Info("Shutting down", "eventsSeen", len(client.Events()))
			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

package main

import (
	"fmt"
	"log"
	"math/big"
	"mime"
	"os"
	"path/filepath"

	"github.com/creatorclaim/publisher/bundler"
	"github.com/creatorclaim/publisher/chain"
	"github.com/creatorclaim/publisher/cmd/flags"
	"github.com/creatorclaim/publisher/interfaces"
	"github.com/creatorclaim/publisher/pipeline"
	"github.com/creatorclaim/publisher/records"
	"github.com/creatorclaim/publisher/signer"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/urfave/cli/v2"
)

var cliFlags []cli.Flag = []cli.Flag{
	flags.RpcAddrFlag,
	flags.BundlerURLFlag,
	flags.GatewayURLFlag,
	flags.TokenFlag,
	flags.SignerURIFlag,
	flags.ChainIDFlag,
	flags.RecordsURIFlag,
	flags.FactoryAddressFlag,
	&cli.StringFlag{
		Name:     "file",
		Required: true,
		Usage:    "asset file to publish",
	},
	&cli.StringFlag{
		Name:     "title",
		Required: true,
		Usage:    "certificate title",
	},
	&cli.StringFlag{
		Name:  "description",
		Usage: "asset description for the metadata document",
	},
	&cli.StringFlag{
		Name:  "licence",
		Value: "0x01",
		Usage: "licence template identifier recorded in the metadata attributes",
	},
	&cli.UintFlag{
		Name:  "royalty-bps",
		Value: 0,
		Usage: "royalty basis points for the certificate",
	},
	&cli.BoolFlag{
		Name:  "gate-on-verification",
		Value: false,
		Usage: "fail the publish when the metadata document is not fetchable",
	},
	flags.LogJsonFlag,
	flags.LogDebugFlag,
	flags.LogUidFlag,
	flags.LogServiceFlag,
}

func main() {
	app := &cli.App{
		Name:   "publisher",
		Usage:  "Publish a creator asset: upload, certify on chain, record locally",
		Flags:  cliFlags,
		Action: runPublish,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func runPublish(cCtx *cli.Context) error {
	logger := flags.SetupLogger(cCtx)
	ctx := cCtx.Context

	assetPath := cCtx.String("file")
	asset, err := os.ReadFile(assetPath)
	if err != nil {
		return fmt.Errorf("could not read asset file: %w", err)
	}
	contentType := mime.TypeByExtension(filepath.Ext(assetPath))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	client, err := ethclient.DialContext(ctx, cCtx.String("rpc-addr"))
	if err != nil {
		return fmt.Errorf("could not connect to RPC: %w", err)
	}
	defer client.Close()

	chainID := big.NewInt(cCtx.Int64("chain-id"))
	txSigner, err := signer.FromURI(ctx, cCtx.String("signer-uri"), chainID, logger)
	if err != nil {
		return fmt.Errorf("could not load signing key: %w", err)
	}
	logger.Info("Signer loaded", "wallet", txSigner.Address().Hex())

	balances := chain.NewBalanceReader(client, logger)
	transfer := chain.NewTransferor(client, txSigner, logger)

	session, err := bundler.NewSession(bundler.Config{
		NodeURL:    cCtx.String("bundler-url"),
		GatewayURL: cCtx.String("gateway-url"),
		Token:      cCtx.String("token"),
	}, txSigner, balances, transfer, logger)
	if err != nil {
		return fmt.Errorf("could not create storage session: %w", err)
	}

	factory := ethcommon.HexToAddress(cCtx.String("factory-address"))
	minter, err := chain.NewMinter(client, client, factory, txSigner, logger)
	if err != nil {
		return fmt.Errorf("could not bind certificate factory: %w", err)
	}

	kv, err := records.NewKVStoreFromURI(cCtx.String("records-uri"), logger)
	if err != nil {
		return fmt.Errorf("could not open record store: %w", err)
	}
	store := records.NewStore(kv, logger)
	if err := store.CheckAvailable(ctx); err != nil {
		return fmt.Errorf("record store is not reachable: %w", err)
	}

	publisher := pipeline.NewPublisher(pipeline.Config{
		GateOnVerification: cCtx.Bool("gate-on-verification"),
	}, session, balances, minter, store, txSigner, logger)
	defer publisher.Close()

	result, err := publisher.Publish(ctx, pipeline.Request{
		Asset:       asset,
		ContentType: contentType,
		Title:       cCtx.String("title"),
		Description: cCtx.String("description"),
		Attributes: []interfaces.AssetAttribute{
			{TraitType: "Licence Template", Value: cCtx.String("licence")},
		},
		RoyaltyBasisPoints: uint16(cCtx.Uint("royalty-bps")),
	}, func(update pipeline.StatusUpdate) {
		fmt.Printf("[%s] %s\n", update.Stage, update.Message)
	})
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Printf("Certificate:  %s\n", result.CertificateAddress.Hex())
	fmt.Printf("Asset URI:    %s\n", result.AssetReceipt.URI)
	fmt.Printf("Metadata URI: %s\n", result.MetadataReceipt.URI)
	for _, warning := range result.Warnings {
		fmt.Printf("Warning:      %s\n", warning)
	}
	return nil
}

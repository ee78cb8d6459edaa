// Package flags holds the CLI flags and logger bootstrap shared by the
// publisher binaries.
package flags

import (
	"log/slog"

	"github.com/creatorclaim/publisher/common"
	"github.com/google/uuid"
	"github.com/urfave/cli/v2"
)

func SetupLogger(cCtx *cli.Context) (log *slog.Logger) {
	logJSON := cCtx.Bool(LogJsonFlag.Name)
	logDebug := cCtx.Bool(LogDebugFlag.Name)
	logUID := cCtx.Bool(LogUidFlag.Name)
	logService := cCtx.String(LogServiceFlag.Name)

	logger := common.SetupLogger(&common.LoggingOpts{
		Debug:   logDebug,
		JSON:    logJSON,
		Service: logService,
		Version: common.Version,
	})

	if logUID {
		id := uuid.Must(uuid.NewRandom())
		logger = logger.With("uid", id.String())
	}
	return logger
}

var RpcAddrFlag = &cli.StringFlag{
	Name:  "rpc-addr",
	Value: "http://127.0.0.1:8545",
	Usage: "address to connect to RPC",
}

var BundlerURLFlag = &cli.StringFlag{
	Name:  "bundler-url",
	Value: "http://127.0.0.1:1984",
	Usage: "base URL of the funded bundler node",
}

var GatewayURLFlag = &cli.StringFlag{
	Name:  "gateway-url",
	Value: "https://arweave.net",
	Usage: "gateway base URL for uploaded content",
}

var TokenFlag = &cli.StringFlag{
	Name:  "token",
	Value: "ethereum",
	Usage: "payment token the bundler node is funded with",
}

var SignerURIFlag = &cli.StringFlag{
	Name:     "signer-uri",
	Required: true,
	Usage:    "signing key source URI: file://<path> or vault://<host:port>/<mount>/<path>?field=<name>",
}

var ChainIDFlag = &cli.Int64Flag{
	Name:  "chain-id",
	Value: 1,
	Usage: "chain id for transaction signing",
}

var RecordsURIFlag = &cli.StringFlag{
	Name:  "records-uri",
	Value: "file://.creatorclaim",
	Usage: "publish record store URI: file://<dir> or s3://<bucket>/<prefix>",
}

var FactoryAddressFlag = &cli.StringFlag{
	Name:     "factory-address",
	Required: true,
	Usage:    "certificate factory contract address",
}

var StreamURLFlag = &cli.StringFlag{
	Name:  "stream-url",
	Value: "ws://127.0.0.1:3001",
	Usage: "websocket URL of the royalty event stream",
}

var LogJsonFlag = &cli.BoolFlag{
	Name:  "log-json",
	Value: false,
	Usage: "log in JSON format",
}

var LogDebugFlag = &cli.BoolFlag{
	Name:  "log-debug",
	Value: false,
	Usage: "log debug messages",
}

var LogUidFlag = &cli.BoolFlag{
	Name:  "log-uid",
	Value: false,
	Usage: "generate a uuid and add to all log messages",
}

var LogServiceFlag = &cli.StringFlag{
	Name:  "log-service",
	Value: "creatorclaim-publisher",
	Usage: "add 'service' tag to logs",
}

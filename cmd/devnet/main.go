package main

import (
	"context"
	"flag"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/AmatanHead/points-game/pkg/game/constants"
	"github.com/AmatanHead/points-game/pkg/game/types"
	"github.com/AmatanHead/points-game/pkg/ledger/memory"
	"github.com/AmatanHead/points-game/pkg/ledger/rpc"
	"github.com/AmatanHead/points-game/pkg/log"
	"github.com/AmatanHead/points-game/pkg/version"
)

func main() {
	port := flag.Int("port", 8545, "Port to serve JSON-RPC on")
	blockInterval := flag.Duration("block-interval", time.Second, "How often pending transactions are mined")
	width := flag.Int("width", constants.FieldWidth, "Width of deployed game fields")
	rows := flag.Int("rows", constants.FieldHeight, "Height of deployed game fields")
	accounts := flag.String("accounts", "", "Comma separated accounts to fund; the first one is the coinbase")
	logLevel := flag.String("log-level", "info", "Log level")
	flag.Parse()

	parsedLogLevel, err := log.ParseLogLevel(*logLevel)
	if err != nil {
		panic(fmt.Sprintf("Failed to parse log level: %v", err))
	}

	logger := log.New(os.Stdout, "", log.DefaultLoggerFlag, parsedLogLevel)
	log.SetDefaultLogger(logger)
	log.Info("Log level set to %s", parsedLogLevel)

	log.Info("Starting devnet version %s", version.Get())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if *accounts == "" {
		*accounts = os.Getenv("POINTS_DEVNET_ACCOUNTS")
	}
	opts := memory.NewLedgerOptions{
		Width:    *width,
		Rows:     *rows,
		Balances: make(map[types.Address]*big.Int),
	}
	for i, account := range strings.Split(*accounts, ",") {
		address := types.ParseAddress(account)
		if address.IsZero() {
			continue
		}
		if i == 0 {
			opts.Coinbase = address
		}
		opts.Balances[address] = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	}
	l := memory.NewLedger(opts)
	coinbase, _ := l.Coinbase(ctx)
	log.Info("Coinbase is %s", coinbase)

	go l.Start(ctx, *blockInterval)

	server := rpc.NewServer(rpc.NewServerOptions{
		Port:    *port,
		Backend: l,
	})
	go server.Start()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	<-interrupt

	cancel()
	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()
	if err := server.Stop(stopCtx); err != nil {
		log.Error("Failed to stop server: %v", err)
	}
	if err := l.Verify(); err != nil {
		log.Error("Chain verification failed: %v", err)
	}
}

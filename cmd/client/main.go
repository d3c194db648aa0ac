package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/AmatanHead/points-game/pkg/api"
	"github.com/AmatanHead/points-game/pkg/game"
	"github.com/AmatanHead/points-game/pkg/game/types"
	"github.com/AmatanHead/points-game/pkg/ledger/rpc"
	"github.com/AmatanHead/points-game/pkg/log"
	"github.com/AmatanHead/points-game/pkg/network"
	"github.com/AmatanHead/points-game/pkg/repositories"
	"github.com/AmatanHead/points-game/pkg/state"
	"github.com/AmatanHead/points-game/pkg/version"
	"github.com/AmatanHead/points-game/pkg/workers"
	"github.com/pterm/pterm"
)

func main() {
	rpcURL := flag.String("rpc-url", "", "Ledger node URL, defaults to $POINTS_RPC_URL or http://localhost:8545")
	id := flag.String("id", "", "Local identity, defaults to $POINTS_ID or the node coinbase")
	apiPort := flag.Int("api-port", 8080, "Port to serve the API on, 0 disables it")
	migrationsDir := flag.String("migrations", "./migrations", "Directory holding the SQL migrations")
	opponent := flag.String("opponent", "", "Create a new game against this address")
	contract := flag.String("contract", "", "Join the game at this contract address")
	logLevel := flag.String("log-level", "info", "Log level")
	flag.Parse()

	parsedLogLevel, err := log.ParseLogLevel(*logLevel)
	if err != nil {
		panic(fmt.Sprintf("Failed to parse log level: %v", err))
	}

	logger := log.New(os.Stdout, "", log.DefaultLoggerFlag, parsedLogLevel)
	log.SetDefaultLogger(logger)
	log.Info("Log level set to %s", parsedLogLevel)

	log.Info("Starting client version %s", version.Get())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if *rpcURL == "" {
		*rpcURL = os.Getenv("POINTS_RPC_URL")
	}
	if *rpcURL == "" {
		*rpcURL = "http://localhost:8545"
	}
	client := rpc.NewClient(rpc.NewClientOptions{
		URL: *rpcURL,
	})

	listening, err := client.Listening(ctx)
	if err != nil || !listening {
		panic(fmt.Sprintf("Ledger node at %s is not reachable: %v", *rpcURL, err))
	}

	if *id == "" {
		*id = os.Getenv("POINTS_ID")
	}
	me := types.ParseAddress(*id)
	if me.IsZero() {
		me, err = client.Coinbase(ctx)
		if err != nil {
			panic(fmt.Sprintf("Failed to get coinbase: %v", err))
		}
		log.Info("No identity given, using the node coinbase")
	}
	balance, err := client.Balance(ctx, me)
	if err != nil {
		log.Warn("Failed to get balance of %s: %v", me, err)
	} else {
		log.Info("Playing as %s with balance %s", me, balance)
	}

	connStr := os.Getenv("POINTS_DATABASE_URL")
	if connStr == "" {
		connStr = "sqlite://points.db"
	}
	repository, err := repositories.New(ctx, connStr, *migrationsDir)
	if err != nil {
		panic(fmt.Sprintf("Failed to create repository: %v", err))
	}
	defer repository.Close(context.Background())

	stateManager := state.NewInMemoryStateManager()
	hub := network.NewWSHub(network.NewWSHubOptions{})
	terminal := newTerminalRenderer()

	session := game.NewSession(game.NewSessionOptions{
		Client:       client,
		Me:           me,
		Renderer:     multiRenderer{hub, terminal},
		AlertSink:    alertSinks{hub, terminal},
		StateManager: stateManager,
		Repository:   repository,
	})
	defer session.Close()
	hub.SetCurrent(session.View)

	saveCtx, saveCancel := context.WithCancel(ctx)
	saveDone := make(chan struct{})
	saveWorker := workers.NewSaveSnapshotWorker(workers.NewSaveSnapshotWorkerOptions{
		Repository:   repository,
		StateManager: stateManager,
	})
	go func() {
		defer close(saveDone)
		saveWorker.Start(saveCtx)
	}()

	var apiServer *api.APIServer
	if *apiPort > 0 {
		apiServer = api.NewAPIServer(api.NewAPIServerOptions{
			Port:      *apiPort,
			Session:   session,
			Renderers: hub,
		})
		go apiServer.Start()
	}

	switch {
	case *contract != "":
		if err := session.JoinGame(ctx, types.ParseAddress(*contract)); err != nil {
			log.Error("Failed to join game %s: %v", *contract, err)
		}
	case *opponent != "":
		created, err := session.CreateGame(ctx, types.ParseAddress(*opponent))
		if err != nil {
			log.Error("Failed to create game: %v", err)
		} else {
			pterm.Success.Printfln("Created game %s", created)
		}
	default:
		pterm.Info.Println("No game given, use 'create <opponent>' or 'join <contract>'")
	}

	commands := make(chan struct{})
	go func() {
		defer close(commands)
		runCommands(ctx, session, os.Stdin)
	}()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	select {
	case <-interrupt:
	case <-commands:
	}

	log.Info("Shutting down")
	saveCancel()
	<-saveDone
	if apiServer != nil {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer stopCancel()
		if err := apiServer.Stop(stopCtx); err != nil {
			log.Error("Failed to stop API server: %v", err)
		}
	}
}

// alertSinks fans one alert out to several sinks.
type alertSinks []game.AlertSink

func (s alertSinks) OnAlert(a *game.Alert) {
	for _, sink := range s {
		sink.OnAlert(a)
	}
}

// runCommands reads commands line by line until quit or EOF.
func runCommands(ctx context.Context, session *game.Session, in io.Reader) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if fields[0] == "quit" || fields[0] == "exit" {
			return
		}
		if err := runCommand(ctx, session, fields); err != nil {
			// failed submissions were already reported as alerts
			log.Debug("Command %q failed: %v", fields[0], err)
		}
	}
}

var errUsage = errors.New("commands: move <x> <y> | draw | resign | refresh | create <opponent> | join <contract> | quit")

func runCommand(ctx context.Context, session *game.Session, fields []string) error {
	switch fields[0] {
	case "move":
		if len(fields) != 3 {
			pterm.Warning.Println(errUsage)
			return errUsage
		}
		x, errX := strconv.Atoi(fields[1])
		y, errY := strconv.Atoi(fields[2])
		if errX != nil || errY != nil {
			pterm.Warning.Println("Coordinates must be integers")
			return errUsage
		}
		return session.SubmitMove(ctx, x, y)
	case "draw":
		return session.SubmitDrawToggle(ctx)
	case "resign":
		return session.SubmitResign(ctx)
	case "refresh":
		return session.RequestRefresh(ctx)
	case "create":
		if len(fields) != 2 {
			pterm.Warning.Println(errUsage)
			return errUsage
		}
		created, err := session.CreateGame(ctx, types.ParseAddress(fields[1]))
		if err != nil {
			return err
		}
		pterm.Success.Printfln("Created game %s", created)
		return nil
	case "join":
		if len(fields) != 2 {
			pterm.Warning.Println(errUsage)
			return errUsage
		}
		return session.JoinGame(ctx, types.ParseAddress(fields[1]))
	case "transactions":
		txs, err := session.Transactions(ctx)
		if err != nil {
			return err
		}
		for _, tx := range txs {
			pterm.Printfln("%s %s %s %s", tx.TxID, tx.Op, tx.Args, tx.Status)
		}
		return nil
	default:
		pterm.Warning.Println(errUsage)
		return errUsage
	}
}

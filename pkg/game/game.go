// Package game wires the state synchronization engine for one local player:
// snapshot fetching, refresh coalescing, change subscriptions and
// transaction confirmation.
package game

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/AmatanHead/points-game/pkg/game/constants"
	"github.com/AmatanHead/points-game/pkg/game/types"
	"github.com/AmatanHead/points-game/pkg/ledger"
	"github.com/AmatanHead/points-game/pkg/log"
	"github.com/AmatanHead/points-game/pkg/messages"
	"github.com/AmatanHead/points-game/pkg/queue"
	"github.com/AmatanHead/points-game/pkg/repositories"
	"github.com/AmatanHead/points-game/pkg/repositories/models"
	"github.com/AmatanHead/points-game/pkg/snapshot"
	"github.com/AmatanHead/points-game/pkg/state"
	"github.com/AmatanHead/points-game/pkg/view"
	"github.com/AmatanHead/points-game/pkg/workers"
)

var (
	ErrNoGame             = errors.New("no game joined")
	ErrSessionClosed      = errors.New("session closed")
	ErrNotYourMove        = errors.New("it is not your move")
	ErrSubmissionInFlight = errors.New("another submission is waiting for confirmation")
	ErrContractRequired   = errors.New("enter the contract address")
	ErrOpponentRequired   = errors.New("enter the opponent address")
	ErrSelfPlay           = errors.New("do not use your own id as an opponent id, create a new account instead")
)

// Renderer draws applied views. It may be handed the same view more than
// once and must not call back into the Session.
type Renderer interface {
	OnSnapshotApplied(v *types.DerivedView)
}

// Session is the engine for one local identity. At most one game is active
// at a time; joining another game stops the workers of the previous one.
type Session struct {
	client        ledger.Client
	me            types.Address
	width         int
	rows          int
	concurrency   int
	resubscribe   float64
	renderer      Renderer
	alertSink     AlertSink
	stateManager  state.StateManager
	alerts        queue.Queue
	repository    repositories.Repository
	confirmations *workers.ConfirmationWorker

	ctx    context.Context
	cancel context.CancelFunc

	lock sync.Mutex
	game *activeGame
}

type NewSessionOptions struct {
	Client ledger.Client
	// Me is the local identity; moves are submitted from it
	Me       types.Address
	Renderer Renderer
	// AlertSink is optional
	AlertSink AlertSink
	// StateManager and Alerts default to in-memory implementations
	StateManager state.StateManager
	Alerts       queue.Queue
	// Repository is optional; without it nothing is persisted
	Repository repositories.Repository
	// Width and Rows default to the standard field size
	Width int
	Rows  int
	// FetchConcurrency bounds the reads in flight during a fetch
	FetchConcurrency int
	// ReceiptInterval and ReceiptAttempts configure the confirmation watcher
	ReceiptInterval time.Duration
	ReceiptAttempts int
	// ResubscribeRate throttles resubscriptions, per second
	ResubscribeRate float64
}

func NewSession(opts NewSessionOptions) *Session {
	if opts.Width <= 0 {
		opts.Width = constants.FieldWidth
	}
	if opts.Rows <= 0 {
		opts.Rows = constants.FieldHeight
	}
	if opts.StateManager == nil {
		opts.StateManager = state.NewInMemoryStateManager()
	}
	if opts.Alerts == nil {
		opts.Alerts = queue.NewInMemoryQueue(constants.AlertQueueSize)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		client:       opts.Client,
		me:           types.ParseAddress(opts.Me.String()),
		width:        opts.Width,
		rows:         opts.Rows,
		concurrency:  opts.FetchConcurrency,
		resubscribe:  opts.ResubscribeRate,
		renderer:     opts.Renderer,
		alertSink:    opts.AlertSink,
		stateManager: opts.StateManager,
		alerts:       opts.Alerts,
		repository:   opts.Repository,
		confirmations: workers.NewConfirmationWorker(workers.NewConfirmationWorkerOptions{
			Receipts:    opts.Client,
			Interval:    opts.ReceiptInterval,
			MaxAttempts: opts.ReceiptAttempts,
		}),
		ctx:    ctx,
		cancel: cancel,
	}
}

// activeGame holds the workers serving one contract.
type activeGame struct {
	contract   types.Address
	fetcher    *snapshot.Fetcher
	refresher  *workers.RefreshWorker
	subscriber *workers.SubscriptionWorker
	logger     *log.Logger
	cancel     context.CancelFunc
	wg         sync.WaitGroup

	// inFlight is set while a submission to this game awaits confirmation
	inFlight atomic.Bool
}

func (g *activeGame) stop() {
	g.cancel()
	g.wg.Wait()
}

// Me returns the local identity.
func (s *Session) Me() types.Address {
	return s.me
}

// Contract returns the active game contract, or the empty address.
func (s *Session) Contract() types.Address {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.game == nil {
		return ""
	}
	return s.game.contract
}

// View returns the view of the latest applied snapshot.
func (s *Session) View(ctx context.Context) (*types.DerivedView, error) {
	gameState, err := s.stateManager.Get(ctx)
	if err != nil {
		return nil, err
	}
	return gameState.View, nil
}

// Transactions lists the transactions submitted to the active game.
func (s *Session) Transactions(ctx context.Context) ([]*models.Transaction, error) {
	g, err := s.activeGame()
	if err != nil {
		return nil, err
	}
	if s.repository == nil {
		return []*models.Transaction{}, nil
	}
	return s.repository.ListTransactions(ctx, g.contract.String())
}

func (s *Session) activeGame() (*activeGame, error) {
	if s.ctx.Err() != nil {
		return nil, ErrSessionClosed
	}
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.game == nil {
		return nil, ErrNoGame
	}
	return s.game, nil
}

// CreateGame deploys a new game against opponent, waits for the deployment
// to be confirmed and joins it.
func (s *Session) CreateGame(ctx context.Context, opponent types.Address) (types.Address, error) {
	opponent = types.ParseAddress(opponent.String())
	switch {
	case opponent.IsZero():
		return "", s.fail(AlertTitleCreate, &ledger.WriteError{Op: ledger.OpDeploy, Err: ErrOpponentRequired})
	case opponent.Equal(s.me):
		return "", s.fail(AlertTitleCreate, &ledger.WriteError{Op: ledger.OpDeploy, Err: ErrSelfPlay})
	}

	id, err := s.client.Deploy(ctx, opponent, s.me)
	if err != nil {
		return "", s.fail(AlertTitleCreate, &ledger.WriteError{Op: ledger.OpDeploy, Err: err})
	}
	log.Info("Deploying a game against %s in transaction %s", opponent, id)

	tx := &models.Transaction{
		TxID:   string(id),
		Op:     string(ledger.OpDeploy),
		Sender: s.me.String(),
		Args:   encodeArgs(opponent),
		Status: models.TransactionStatusPending,
	}
	s.saveTransaction(ctx, tx)

	receipt, err := s.confirm(ctx, tx, AlertTitleCreate)
	if err != nil {
		return "", err
	}
	tx.Contract = receipt.ContractAddress.String()
	s.saveTransaction(ctx, tx)

	if err := s.JoinGame(ctx, receipt.ContractAddress); err != nil {
		return receipt.ContractAddress, err
	}
	return receipt.ContractAddress, nil
}

// JoinGame makes contract the active game and returns once its first
// snapshot was applied. A snapshot cached by an earlier session is shown,
// marked stale, until then.
func (s *Session) JoinGame(ctx context.Context, contract types.Address) error {
	contract = types.ParseAddress(contract.String())
	if contract.IsZero() {
		return s.fail(AlertTitleCreate, ErrContractRequired)
	}
	if s.ctx.Err() != nil {
		return ErrSessionClosed
	}

	gameCtx, cancel := context.WithCancel(s.ctx)
	g := &activeGame{
		contract: contract,
		fetcher: snapshot.NewFetcher(snapshot.NewFetcherOptions{
			Reader:      s.client,
			Contract:    contract,
			Width:       s.width,
			Rows:        s.rows,
			Concurrency: s.concurrency,
		}),
		logger: log.Default().WithField("contract", contract.String()),
		cancel: cancel,
	}
	g.refresher = workers.NewRefreshWorker(workers.NewRefreshWorkerOptions{
		Refresh: s.refresh(g),
	})
	g.subscriber = workers.NewSubscriptionWorker(workers.NewSubscriptionWorkerOptions{
		Notifier:  s.client,
		Contract:  contract,
		Refresher: g.refresher,
		Rate:      s.resubscribe,
		OnFault: func(err error) {
			s.alert(AlertTitleUpdate, err)
		},
	})

	s.lock.Lock()
	previous := s.game
	s.game = g
	s.lock.Unlock()
	if previous != nil {
		previous.logger.Info("Leaving game")
		previous.stop()
	}

	s.showCached(ctx, g)

	g.wg.Add(2)
	go func() {
		defer g.wg.Done()
		g.refresher.Start(gameCtx)
	}()
	go func() {
		defer g.wg.Done()
		g.subscriber.Start(gameCtx)
	}()

	g.logger.Info("Joined game as %s", s.me)
	if err := g.refresher.Request().Wait(ctx); err != nil {
		return err
	}
	s.saveGame(ctx, g)
	return nil
}

func (s *Session) saveGame(ctx context.Context, g *activeGame) {
	if s.repository == nil {
		return
	}
	game := &models.Game{
		Contract: g.contract.String(),
		Me:       s.me.String(),
	}
	if gameState, err := s.stateManager.Get(ctx); err == nil && gameState.Contract.Equal(g.contract) {
		game.Player1 = gameState.Snapshot.Player1.String()
		game.Player2 = gameState.Snapshot.Player2.String()
	}
	if err := s.repository.SaveGame(ctx, game); err != nil {
		g.logger.Error("Failed to save game: %v", err)
	}
}

// showCached applies the latest stored snapshot of the game, if any.
func (s *Session) showCached(ctx context.Context, g *activeGame) {
	if s.repository == nil {
		return
	}
	stored, err := s.repository.LoadLatestSnapshot(ctx, g.contract.String())
	if err != nil {
		if !repositories.IsNotFound(err) {
			g.logger.Error("Failed to load cached snapshot: %v", err)
		}
		return
	}
	cached, err := messages.DeserializeSnapshot(stored.Data)
	if err != nil {
		g.logger.Error("Failed to decode cached snapshot: %v", err)
		return
	}
	g.logger.Debug("Showing cached snapshot at height %d", cached.Height)
	s.apply(ctx, g, cached, true)
}

// refresh fetches and applies one snapshot of g. A failed fetch is alerted
// and tears down the subscription so the subscriber retries.
func (s *Session) refresh(g *activeGame) workers.RefreshFunc {
	return func(ctx context.Context) error {
		snap, err := g.fetcher.Fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			s.alert(AlertTitleUpdate, err)
			g.subscriber.Fault(err)
			return err
		}
		s.apply(ctx, g, snap, false)
		return nil
	}
}

// apply replaces the current snapshot and hands the derived view to the
// renderer. Snapshots of a game that is no longer active, and snapshots
// older than a fresh one already shown, are dropped.
func (s *Session) apply(ctx context.Context, g *activeGame, snap *types.GameSnapshot, stale bool) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.game != g {
		return
	}
	if current, err := s.stateManager.Get(ctx); err == nil && current.Contract.Equal(g.contract) && current.View != nil {
		if !current.View.Stale && snap.Height < current.Snapshot.Height {
			g.logger.Debug("Dropping snapshot at height %d, %d is already applied", snap.Height, current.Snapshot.Height)
			return
		}
		if stale && !current.View.Stale {
			return
		}
	}

	v := view.Derive(snap, s.me)
	v.Stale = stale
	err := s.stateManager.Set(ctx, &types.GameState{
		Contract: g.contract,
		Snapshot: snap,
		View:     v,
	})
	if err != nil {
		g.logger.Error("Failed to set game state: %v", err)
		return
	}
	g.logger.Trace("Applied snapshot at height %d", snap.Height)

	if s.renderer != nil {
		s.renderer.OnSnapshotApplied(v)
	}
}

// RequestRefresh fetches the game again and returns once the result was
// applied.
func (s *Session) RequestRefresh(ctx context.Context) error {
	g, err := s.activeGame()
	if err != nil {
		return err
	}
	return g.refresher.Request().Wait(ctx)
}

// SubmitMove places a point at (x, y).
func (s *Session) SubmitMove(ctx context.Context, x, y int) error {
	if x < 0 || y < 0 || x >= s.width || y >= s.rows {
		err := fmt.Errorf("cell (%d, %d) is outside the %dx%d field", x, y, s.width, s.rows)
		return s.fail(AlertTitleMove, &ledger.WriteError{Op: ledger.OpMove, Err: err})
	}
	return s.submit(ctx, ledger.OpMove, AlertTitleMove, x, y)
}

// SubmitDrawToggle offers a draw, or revokes the offer the local player
// already made.
func (s *Session) SubmitDrawToggle(ctx context.Context) error {
	op := ledger.OpOfferDraw
	if v, err := s.View(ctx); err == nil && v.DrawOffered {
		op = ledger.OpRevokeDrawOffer
	}
	return s.submit(ctx, op, AlertTitleDraw)
}

// SubmitResign concedes the game.
func (s *Session) SubmitResign(ctx context.Context) error {
	return s.submit(ctx, ledger.OpResign, AlertTitleResign)
}

// submit sends op, waits for its receipt and returns once the resulting
// state was applied. Only one submission may be in flight, and only while
// it is the local player's move.
func (s *Session) submit(ctx context.Context, op ledger.Operation, title string, args ...interface{}) error {
	g, err := s.activeGame()
	if err != nil {
		return s.fail(title, &ledger.WriteError{Op: op, Err: err})
	}

	v, err := s.View(ctx)
	if err != nil || !v.Contract.Equal(g.contract) || !v.ActiveMove {
		return s.fail(title, &ledger.WriteError{Op: op, Err: ErrNotYourMove})
	}
	if !g.inFlight.CompareAndSwap(false, true) {
		return s.fail(title, &ledger.WriteError{Op: op, Err: ErrSubmissionInFlight})
	}
	defer g.inFlight.Store(false)

	id, err := s.client.Send(ctx, g.contract, op, s.me, args...)
	if err != nil {
		return s.fail(title, &ledger.WriteError{Op: op, Err: err})
	}
	g.logger.Debug("Submitted %s in transaction %s", op, id)

	tx := &models.Transaction{
		TxID:     string(id),
		Contract: g.contract.String(),
		Op:       string(op),
		Sender:   s.me.String(),
		Args:     encodeArgs(args...),
		Status:   models.TransactionStatusPending,
	}
	s.saveTransaction(ctx, tx)

	if _, err := s.confirm(ctx, tx, title); err != nil {
		return err
	}
	return g.refresher.Request().Wait(ctx)
}

// confirm waits for the receipt of tx and records the outcome.
func (s *Session) confirm(ctx context.Context, tx *models.Transaction, title string) (*ledger.Receipt, error) {
	op := ledger.Operation(tx.Op)

	receipt, err := s.confirmations.Wait(ctx, ledger.TxID(tx.TxID))
	if err != nil {
		tx.Status = models.TransactionStatusFailed
		tx.Reason = err.Error()
		s.saveTransaction(context.Background(), tx)
		if ctx.Err() != nil {
			return nil, err
		}
		if ledger.IsTimeout(err) {
			return nil, s.fail(AlertTitleTrack, err)
		}
		return nil, s.fail(title, err)
	}

	tx.BlockHeight = receipt.BlockHeight
	if receipt.Reverted {
		tx.Status = models.TransactionStatusReverted
		tx.Reason = receipt.Reason
		s.saveTransaction(ctx, tx)
		return nil, s.fail(title, &ledger.WriteError{Op: op, Err: fmt.Errorf("transaction %s reverted: %s", tx.TxID, receipt.Reason)})
	}

	tx.Status = models.TransactionStatusConfirmed
	s.saveTransaction(ctx, tx)
	return receipt, nil
}

func (s *Session) saveTransaction(ctx context.Context, tx *models.Transaction) {
	if s.repository == nil {
		return
	}
	if err := s.repository.SaveTransaction(ctx, tx); err != nil {
		log.Error("Failed to save transaction %s: %v", tx.TxID, err)
	}
}

// fail alerts err under title and returns it.
func (s *Session) fail(title string, err error) error {
	s.alert(title, err)
	return err
}

func encodeArgs(args ...interface{}) string {
	if len(args) == 0 {
		return "[]"
	}
	b, err := json.Marshal(args)
	if err != nil {
		return fmt.Sprintf("%v", args)
	}
	return string(b)
}

// Close stops the active game. The session cannot be used afterwards.
func (s *Session) Close() {
	s.cancel()

	s.lock.Lock()
	g := s.game
	s.lock.Unlock()
	if g != nil {
		g.stop()
	}
}

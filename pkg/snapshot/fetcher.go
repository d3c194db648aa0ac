// Package snapshot reads the complete state of a game contract at one block
// height.
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/AmatanHead/points-game/pkg/game/constants"
	"github.com/AmatanHead/points-game/pkg/game/types"
	"github.com/AmatanHead/points-game/pkg/ledger"
	"github.com/AmatanHead/points-game/pkg/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// FieldBlockHeight names the height read in ReadErrors.
const FieldBlockHeight = "blockNumber"

type Fetcher struct {
	reader      ledger.Reader
	contract    types.Address
	width       int
	rows        int
	concurrency int
}

type NewFetcherOptions struct {
	Reader   ledger.Reader
	Contract types.Address
	Width    int
	Rows     int
	// Concurrency bounds the reads in flight, 0 means constants.FetchConcurrency
	Concurrency int
}

func NewFetcher(opts NewFetcherOptions) *Fetcher {
	if opts.Width <= 0 {
		opts.Width = constants.FieldWidth
	}
	if opts.Rows <= 0 {
		opts.Rows = constants.FieldHeight
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = constants.FetchConcurrency
	}
	return &Fetcher{
		reader:      opts.Reader,
		contract:    opts.Contract,
		width:       opts.Width,
		rows:        opts.Rows,
		concurrency: opts.Concurrency,
	}
}

func (f *Fetcher) Contract() types.Address {
	return f.contract
}

// Fetch reads every field of the contract at the latest block height. Either
// all reads succeed and a complete snapshot is returned, or the first failure
// is returned as a *ledger.ReadError and no snapshot is produced.
func (f *Fetcher) Fetch(ctx context.Context) (*types.GameSnapshot, error) {
	height, err := f.reader.BlockHeight(ctx)
	if err != nil {
		return nil, &ledger.ReadError{Field: FieldBlockHeight, Err: err}
	}

	s := types.NewGameSnapshot(f.contract, height, f.width, f.rows)
	sem := semaphore.NewWeighted(int64(f.concurrency))
	g, gctx := errgroup.WithContext(ctx)

	var (
		players      []types.Address
		drawOffers   []bool
		finishOffers []bool
		stakes       []string
	)
	// the per-player reads start as soon as both players are known and
	// overlap the cell reads
	g.Go(func() error {
		pg, pctx := errgroup.WithContext(gctx)
		f.read(pctx, pg, sem, height, ledger.FieldPlayer1, &s.Player1)
		f.read(pctx, pg, sem, height, ledger.FieldPlayer2, &s.Player2)
		if err := pg.Wait(); err != nil {
			return err
		}

		players = []types.Address{s.Player1}
		if !s.Player2.Equal(s.Player1) {
			players = append(players, s.Player2)
		}
		drawOffers = make([]bool, len(players))
		finishOffers = make([]bool, len(players))
		stakes = make([]string, len(players))
		for i, player := range players {
			f.read(gctx, g, sem, height, ledger.FieldDrawOffers, &drawOffers[i], player)
			f.read(gctx, g, sem, height, ledger.FieldFinishOffers, &finishOffers[i], player)
			f.read(gctx, g, sem, height, ledger.FieldStakes, &stakes[i], player)
		}
		return nil
	})
	f.read(gctx, g, sem, height, ledger.FieldCurrentPlayer, &s.CurrentPlayer)
	f.read(gctx, g, sem, height, ledger.FieldWinner, &s.Winner)
	f.read(gctx, g, sem, height, ledger.FieldGameOver, &s.GameOver)
	for x := 0; x < f.width; x++ {
		for y := 0; y < f.rows; y++ {
			f.read(gctx, g, sem, height, ledger.FieldCell, &s.Field[x][y], x, y)
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i, player := range players {
		s.DrawOffers[player] = drawOffers[i]
		s.FinishOffers[player] = finishOffers[i]
		stake, ok := new(big.Int).SetString(stakes[i], 10)
		if !ok {
			return nil, &ledger.ReadError{Field: ledger.FieldStakes, Err: fmt.Errorf("invalid amount %q", stakes[i])}
		}
		s.Stakes[player] = stake
	}

	log.Trace("Fetched snapshot of %s at height %d", f.contract, height)
	return s, nil
}

// read schedules one pinned read decoding into dst. Every scheduled read
// writes to its own destination and holds one unit of sem while in flight.
func (f *Fetcher) read(ctx context.Context, g *errgroup.Group, sem *semaphore.Weighted, height uint64, field string, dst interface{}, args ...interface{}) {
	g.Go(func() error {
		if err := sem.Acquire(ctx, 1); err != nil {
			return err
		}
		defer sem.Release(1)

		raw, err := f.reader.Call(ctx, f.contract, field, height, args...)
		if err != nil {
			return &ledger.ReadError{Field: describe(field, args), Err: err}
		}
		if err := json.Unmarshal(raw, dst); err != nil {
			return &ledger.ReadError{Field: describe(field, args), Err: fmt.Errorf("failed to decode: %w", err)}
		}
		return nil
	})
}

func describe(field string, args []interface{}) string {
	if len(args) == 0 {
		return field
	}
	return fmt.Sprintf("%s%v", field, args)
}

// Package memory is an in-process, block-structured ledger hosting game
// contracts. It backs the devnet binary and the engine tests.
package memory

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/AmatanHead/points-game/pkg/game/constants"
	"github.com/AmatanHead/points-game/pkg/game/types"
	"github.com/AmatanHead/points-game/pkg/ledger"
	"github.com/AmatanHead/points-game/pkg/log"
	"github.com/google/uuid"
)

// Block is one entry of the chain.
type Block struct {
	Height    uint64
	Timestamp int64
	PrevHash  string
	Hash      string
	TxIDs     []ledger.TxID
}

type pendingTx struct {
	id       ledger.TxID
	contract types.Address
	op       ledger.Operation
	from     types.Address
	args     []interface{}
}

type version struct {
	height   uint64
	contract *Contract
}

type Ledger struct {
	lock sync.Mutex

	width    int
	rows     int
	coinbase types.Address

	blocks   []*Block
	pending  []*pendingTx
	receipts map[ledger.TxID]*ledger.Receipt
	// versions holds every stored state of a contract, oldest first
	versions      map[types.Address][]version
	balances      map[types.Address]*big.Int
	subscriptions map[types.Address]map[*subscription]struct{}
}

type NewLedgerOptions struct {
	Width    int
	Rows     int
	Coinbase types.Address
	// Balances seeds account balances
	Balances map[types.Address]*big.Int
}

// NewLedger creates a ledger holding only the genesis block.
func NewLedger(opts NewLedgerOptions) *Ledger {
	if opts.Width <= 0 {
		opts.Width = constants.FieldWidth
	}
	if opts.Rows <= 0 {
		opts.Rows = constants.FieldHeight
	}
	if opts.Coinbase.IsZero() {
		opts.Coinbase = NewAddress()
	}

	l := &Ledger{
		width:         opts.Width,
		rows:          opts.Rows,
		coinbase:      types.ParseAddress(opts.Coinbase.String()),
		receipts:      make(map[ledger.TxID]*ledger.Receipt),
		versions:      make(map[types.Address][]version),
		balances:      make(map[types.Address]*big.Int),
		subscriptions: make(map[types.Address]map[*subscription]struct{}),
	}
	for account, balance := range opts.Balances {
		l.balances[types.ParseAddress(account.String())] = new(big.Int).Set(balance)
	}

	genesis := &Block{
		Height:    0,
		Timestamp: time.Now().UnixMilli(),
		PrevHash:  "0",
	}
	genesis.Hash = calculateHash(genesis)
	l.blocks = append(l.blocks, genesis)

	return l
}

// NewAddress returns a fresh random address.
func NewAddress() types.Address {
	sum := sha256.Sum256([]byte(uuid.NewString()))
	return types.Address("0x" + hex.EncodeToString(sum[:20]))
}

func newTxID() ledger.TxID {
	sum := sha256.Sum256([]byte(uuid.NewString()))
	return ledger.TxID("0x" + hex.EncodeToString(sum[:]))
}

func calculateHash(b *Block) string {
	ids := make([]string, len(b.TxIDs))
	for i, id := range b.TxIDs {
		ids[i] = string(id)
	}
	data := fmt.Sprintf("%d%d%s%s", b.Height, b.Timestamp, b.PrevHash, strings.Join(ids, ","))
	sum := sha256.Sum256([]byte(data))
	return hex.EncodeToString(sum[:])
}

func (l *Ledger) head() *Block {
	return l.blocks[len(l.blocks)-1]
}

// Head returns the latest block.
func (l *Ledger) Head() Block {
	l.lock.Lock()
	defer l.lock.Unlock()
	return *l.head()
}

// Verify checks that every block links to its predecessor.
func (l *Ledger) Verify() error {
	l.lock.Lock()
	defer l.lock.Unlock()

	for i, b := range l.blocks {
		if b.Hash != calculateHash(b) {
			return fmt.Errorf("block %d: invalid hash", b.Height)
		}
		if i == 0 {
			continue
		}
		if b.PrevHash != l.blocks[i-1].Hash {
			return fmt.Errorf("block %d: invalid prev hash: expected %s, got %s", b.Height, l.blocks[i-1].Hash, b.PrevHash)
		}
	}
	return nil
}

// Pending returns the number of transactions waiting for the next block.
func (l *Ledger) Pending() int {
	l.lock.Lock()
	defer l.lock.Unlock()
	return len(l.pending)
}

func (l *Ledger) BlockHeight(ctx context.Context) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	l.lock.Lock()
	defer l.lock.Unlock()
	return l.head().Height, nil
}

// contractAt returns the contract as stored at height.
func (l *Ledger) contractAt(address types.Address, height uint64) (*Contract, error) {
	versions := l.versions[types.ParseAddress(address.String())]
	i := sort.Search(len(versions), func(i int) bool { return versions[i].height > height })
	if i == 0 {
		return nil, fmt.Errorf("no contract at %s at height %d", address, height)
	}
	return versions[i-1].contract, nil
}

func (l *Ledger) Call(ctx context.Context, contract types.Address, field string, height uint64, args ...interface{}) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.lock.Lock()
	if height > l.head().Height {
		l.lock.Unlock()
		return nil, fmt.Errorf("unknown block %d", height)
	}
	c, err := l.contractAt(contract, height)
	if err != nil {
		l.lock.Unlock()
		return nil, err
	}
	value, err := c.read(field, args)
	l.lock.Unlock()
	if err != nil {
		return nil, err
	}

	return json.Marshal(value)
}

func (l *Ledger) Send(ctx context.Context, contract types.Address, op ledger.Operation, from types.Address, args ...interface{}) (ledger.TxID, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	l.lock.Lock()
	defer l.lock.Unlock()

	if _, ok := l.versions[types.ParseAddress(contract.String())]; !ok {
		return "", fmt.Errorf("no contract at %s", contract)
	}

	id := newTxID()
	l.pending = append(l.pending, &pendingTx{
		id:       id,
		contract: types.ParseAddress(contract.String()),
		op:       op,
		from:     types.ParseAddress(from.String()),
		args:     args,
	})
	return id, nil
}

func (l *Ledger) Deploy(ctx context.Context, opponent types.Address, from types.Address) (ledger.TxID, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if opponent.IsZero() {
		return "", fmt.Errorf("opponent address is required")
	}

	l.lock.Lock()
	defer l.lock.Unlock()

	id := newTxID()
	l.pending = append(l.pending, &pendingTx{
		id:   id,
		op:   ledger.OpDeploy,
		from: types.ParseAddress(from.String()),
		args: []interface{}{types.ParseAddress(opponent.String())},
	})
	return id, nil
}

func (l *Ledger) Receipt(ctx context.Context, id ledger.TxID) (*ledger.Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.lock.Lock()
	defer l.lock.Unlock()

	receipt, ok := l.receipts[id]
	if !ok {
		return nil, &ledger.NotFoundError{TxID: id}
	}
	r := *receipt
	return &r, nil
}

// Mine includes every pending transaction in a new block and notifies the
// subscribers of the contracts that changed.
func (l *Ledger) Mine() Block {
	l.lock.Lock()

	prev := l.head()
	block := &Block{
		Height:    prev.Height + 1,
		Timestamp: time.Now().UnixMilli(),
		PrevHash:  prev.Hash,
	}

	touched := make(map[types.Address]*Contract)
	var order []types.Address
	for _, tx := range l.pending {
		block.TxIDs = append(block.TxIDs, tx.id)
		receipt := &ledger.Receipt{TxID: tx.id, BlockHeight: block.Height}

		if tx.op == ledger.OpDeploy {
			address := NewAddress()
			opponent, _ := tx.args[0].(types.Address)
			touched[address] = newContract(tx.from, opponent, l.width, l.rows)
			order = append(order, address)
			receipt.ContractAddress = address
			l.receipts[tx.id] = receipt
			continue
		}

		base, ok := touched[tx.contract]
		if !ok {
			latest, err := l.contractAt(tx.contract, prev.Height)
			if err != nil {
				receipt.Reverted = true
				receipt.Reason = err.Error()
				l.receipts[tx.id] = receipt
				continue
			}
			base = latest
		}
		// a reverted call leaves no trace in the contract
		next := base.clone()
		if err := next.apply(tx.op, tx.from, tx.args); err != nil {
			receipt.Reverted = true
			receipt.Reason = err.Error()
			l.receipts[tx.id] = receipt
			continue
		}
		if !ok {
			order = append(order, tx.contract)
		}
		touched[tx.contract] = next
		l.receipts[tx.id] = receipt
	}
	l.pending = nil

	for _, address := range order {
		l.versions[address] = append(l.versions[address], version{height: block.Height, contract: touched[address]})
	}

	block.Hash = calculateHash(block)
	l.blocks = append(l.blocks, block)
	l.notifyLocked(order, block.Height)

	mined := *block
	l.lock.Unlock()

	log.Debug("Mined block %d with %d transactions", mined.Height, len(mined.TxIDs))
	return mined
}

// Update applies fn to a copy of the latest state of contract and stores the
// result in a new block. It is how territory gets onto the board.
func (l *Ledger) Update(contract types.Address, fn func(c *Contract)) (uint64, error) {
	l.lock.Lock()
	defer l.lock.Unlock()

	address := types.ParseAddress(contract.String())
	prev := l.head()
	latest, err := l.contractAt(address, prev.Height)
	if err != nil {
		return 0, err
	}
	next := latest.clone()
	fn(next)

	block := &Block{
		Height:    prev.Height + 1,
		Timestamp: time.Now().UnixMilli(),
		PrevHash:  prev.Hash,
	}
	block.Hash = calculateHash(block)
	l.blocks = append(l.blocks, block)
	l.versions[address] = append(l.versions[address], version{height: block.Height, contract: next})
	l.notifyLocked([]types.Address{address}, block.Height)

	return block.Height, nil
}

// Start mines a block on every tick while transactions are pending.
func (l *Ledger) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if l.Pending() == 0 {
				continue
			}
			block := l.Mine()
			log.Info("Mined block %d (%s) with %d transactions", block.Height, block.Hash[:12], len(block.TxIDs))
		}
	}
}

func (l *Ledger) Listening(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return true, nil
}

func (l *Ledger) Coinbase(ctx context.Context) (types.Address, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return l.coinbase, nil
}

func (l *Ledger) Balance(ctx context.Context, account types.Address) (*big.Int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.lock.Lock()
	defer l.lock.Unlock()

	balance, ok := l.balances[types.ParseAddress(account.String())]
	if !ok {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(balance), nil
}

package workers

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/AmatanHead/points-game/pkg/game/types"
	"github.com/AmatanHead/points-game/pkg/ledger"
	"github.com/AmatanHead/points-game/pkg/ledger/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	alice types.Address = "0x00000000000000000000000000000000000000a1"
	bob   types.Address = "0x00000000000000000000000000000000000000b0"
)

type countingRefresher struct {
	lock     sync.Mutex
	requests int
}

func (c *countingRefresher) Request() *Refresh {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.requests++
	r := newRefresh()
	r.finish(nil)
	return r
}

func (c *countingRefresher) Requests() int {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.requests
}

type faultRecorder struct {
	lock   sync.Mutex
	faults []error
}

func (f *faultRecorder) record(err error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.faults = append(f.faults, err)
}

func (f *faultRecorder) Len() int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return len(f.faults)
}

func (f *faultRecorder) Get(i int) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.faults[i]
}

func deployGame(t *testing.T, l *memory.Ledger) types.Address {
	t.Helper()
	ctx := context.Background()
	id, err := l.Deploy(ctx, bob, alice)
	require.NoError(t, err)
	l.Mine()
	receipt, err := l.Receipt(ctx, id)
	require.NoError(t, err)
	return receipt.ContractAddress
}

func startSubscriber(t *testing.T, ctx context.Context, notifier ledger.Notifier, contract types.Address) (*SubscriptionWorker, *countingRefresher, *faultRecorder) {
	t.Helper()
	refresher := &countingRefresher{}
	faults := &faultRecorder{}
	w := NewSubscriptionWorker(NewSubscriptionWorkerOptions{
		Notifier:  notifier,
		Contract:  contract,
		Refresher: refresher,
		Rate:      1000,
		Burst:     10,
		OnFault:   faults.record,
	})
	go w.Start(ctx)
	require.Eventually(t, func() bool { return w.State() == SubscriptionSubscribed }, time.Second, time.Millisecond)
	return w, refresher, faults
}

func TestSubscriptionWorker_NotificationRequestsRefresh(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := memory.NewLedger(memory.NewLedgerOptions{Width: 3, Rows: 3})
	contract := deployGame(t, l)
	_, refresher, _ := startSubscriber(t, ctx, l, contract)

	// the initial subscription catches up once
	require.Eventually(t, func() bool { return refresher.Requests() == 1 }, time.Second, time.Millisecond)

	_, err := l.Send(ctx, contract, ledger.OpMove, alice, 0, 0)
	require.NoError(t, err)
	l.Mine()

	assert.Eventually(t, func() bool { return refresher.Requests() == 2 }, time.Second, time.Millisecond)
}

func TestSubscriptionWorker_ResubscribesAfterBrokenSubscription(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := memory.NewLedger(memory.NewLedgerOptions{Width: 3, Rows: 3})
	contract := deployGame(t, l)
	w, refresher, faults := startSubscriber(t, ctx, l, contract)
	require.Eventually(t, func() bool { return refresher.Requests() == 1 }, time.Second, time.Millisecond)

	l.FailSubscriptions(errors.New("connection reset"))

	require.Eventually(t, func() bool { return w.Subscriptions() == 2 }, time.Second, time.Millisecond)
	assert.Eventually(t, func() bool { return refresher.Requests() == 2 }, time.Second, time.Millisecond)
	assert.Eventually(t, func() bool { return l.Subscribers(contract) == 1 }, time.Second, time.Millisecond)
	// the resubscription succeeded, so nothing is reported
	assert.Equal(t, 0, faults.Len())

	// the new subscription delivers notifications
	_, err := l.Update(contract, func(c *memory.Contract) { c.Field[1][1].TerritoryOwner = bob })
	require.NoError(t, err)
	assert.Eventually(t, func() bool { return refresher.Requests() == 3 }, time.Second, time.Millisecond)
}

func TestSubscriptionWorker_FaultResubscribesAndRefreshes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := memory.NewLedger(memory.NewLedgerOptions{Width: 3, Rows: 3})
	contract := deployGame(t, l)
	w, refresher, faults := startSubscriber(t, ctx, l, contract)
	require.Eventually(t, func() bool { return refresher.Requests() == 1 }, time.Second, time.Millisecond)

	w.Fault(&ledger.ReadError{Field: ledger.FieldPlayer1, Err: errors.New("timeout")})

	require.Eventually(t, func() bool { return w.Subscriptions() == 2 }, time.Second, time.Millisecond)
	assert.Eventually(t, func() bool { return refresher.Requests() == 2 }, time.Second, time.Millisecond)
	// faults reported by the caller were already surfaced by the caller
	assert.Equal(t, 0, faults.Len())
}

// flakyNotifier fails the first n subscriptions.
type flakyNotifier struct {
	ledger.Notifier

	lock     sync.Mutex
	failures int
}

func (f *flakyNotifier) Subscribe(ctx context.Context, contract types.Address, event string) (ledger.Subscription, error) {
	f.lock.Lock()
	if f.failures > 0 {
		f.failures--
		f.lock.Unlock()
		return nil, errors.New("dial failed")
	}
	f.lock.Unlock()
	return f.Notifier.Subscribe(ctx, contract, event)
}

func TestSubscriptionWorker_RetriesFailedSubscribe(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := memory.NewLedger(memory.NewLedgerOptions{Width: 3, Rows: 3})
	contract := deployGame(t, l)
	_, _, faults := startSubscriber(t, ctx, &flakyNotifier{Notifier: l, failures: 2}, contract)

	assert.Equal(t, 2, faults.Len())
	assert.True(t, ledger.IsSubscriptionFault(faults.Get(0)))
}

func TestSubscriptionWorker_StopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	l := memory.NewLedger(memory.NewLedgerOptions{Width: 3, Rows: 3})
	contract := deployGame(t, l)
	w := NewSubscriptionWorker(NewSubscriptionWorkerOptions{
		Notifier:  l,
		Contract:  contract,
		Refresher: &countingRefresher{},
	})
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()
	require.Eventually(t, func() bool { return l.Subscribers(contract) == 1 }, time.Second, time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
	assert.Equal(t, 0, l.Subscribers(contract))
}

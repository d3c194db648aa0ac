package workers

import (
	"context"
	"errors"
	"sync"

	"github.com/AmatanHead/points-game/pkg/game/constants"
	"github.com/AmatanHead/points-game/pkg/game/types"
	"github.com/AmatanHead/points-game/pkg/ledger"
	"github.com/AmatanHead/points-game/pkg/log"
	"golang.org/x/time/rate"
)

var errEventsClosed = errors.New("event stream closed")

type SubscriptionState int

const (
	SubscriptionResubscribing SubscriptionState = iota
	SubscriptionSubscribed
)

func (s SubscriptionState) String() string {
	switch s {
	case SubscriptionResubscribing:
		return "resubscribing"
	case SubscriptionSubscribed:
		return "subscribed"
	default:
		return "unknown"
	}
}

// SubscriptionWorker keeps a live Update subscription on a game contract
// and turns every notification into a refresh request. A broken
// subscription, or a fault reported with Fault, is replaced by a new one
// followed by a refresh.
type SubscriptionWorker struct {
	notifier  ledger.Notifier
	contract  types.Address
	refresher Refresher
	limiter   *rate.Limiter
	onFault   func(err error)
	faults    chan error

	lock          sync.Mutex
	state         SubscriptionState
	subscriptions int
}

type NewSubscriptionWorkerOptions struct {
	Notifier  ledger.Notifier
	Contract  types.Address
	Refresher Refresher
	// Rate and Burst throttle resubscriptions, zero values mean the defaults
	// from constants
	Rate  float64
	Burst int
	// OnFault is called with a *ledger.SubscriptionFault when a subscription
	// could not be created. A subscription that breaks is replaced silently.
	OnFault func(err error)
}

func NewSubscriptionWorker(opts NewSubscriptionWorkerOptions) *SubscriptionWorker {
	if opts.Rate <= 0 {
		opts.Rate = constants.ResubscribeRate
	}
	if opts.Burst <= 0 {
		opts.Burst = constants.ResubscribeBurst
	}
	if opts.OnFault == nil {
		opts.OnFault = func(error) {}
	}
	return &SubscriptionWorker{
		notifier:  opts.Notifier,
		contract:  opts.Contract,
		refresher: opts.Refresher,
		limiter:   rate.NewLimiter(rate.Limit(opts.Rate), opts.Burst),
		onFault:   opts.OnFault,
		faults:    make(chan error, 1),
	}
}

// Fault tears down the current subscription and makes the worker
// resubscribe. It never blocks; faults reported while one is already
// queued are merged.
func (w *SubscriptionWorker) Fault(err error) {
	select {
	case w.faults <- err:
	default:
	}
}

func (w *SubscriptionWorker) State() SubscriptionState {
	w.lock.Lock()
	defer w.lock.Unlock()
	return w.state
}

// Subscriptions returns how many subscriptions were created so far.
func (w *SubscriptionWorker) Subscriptions() int {
	w.lock.Lock()
	defer w.lock.Unlock()
	return w.subscriptions
}

func (w *SubscriptionWorker) setState(state SubscriptionState) {
	w.lock.Lock()
	defer w.lock.Unlock()
	w.state = state
	if state == SubscriptionSubscribed {
		w.subscriptions++
	}
}

func (w *SubscriptionWorker) Start(ctx context.Context) {
	for {
		if err := w.limiter.Wait(ctx); err != nil {
			return
		}
		w.setState(SubscriptionResubscribing)

		// faults queued before this point belong to the subscription being replaced
		select {
		case <-w.faults:
		default:
		}

		sub, err := w.notifier.Subscribe(ctx, w.contract, ledger.EventUpdate)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			fault := &ledger.SubscriptionFault{Err: err}
			log.Error("Failed to subscribe to %s: %v", w.contract, err)
			w.onFault(fault)
			continue
		}
		w.setState(SubscriptionSubscribed)
		log.Debug("Subscribed to %s updates of %s", ledger.EventUpdate, w.contract)

		// catch up on whatever changed while there was no subscription
		w.refresher.Request()

		err = w.serve(ctx, sub)
		sub.Cancel()
		if ctx.Err() != nil {
			return
		}
		log.Warn("Resubscribing to %s: %v", w.contract, err)
	}
}

func (w *SubscriptionWorker) serve(ctx context.Context, sub ledger.Subscription) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-sub.Events():
			if !ok {
				return &ledger.SubscriptionFault{Err: errEventsClosed}
			}
			log.Trace("Received %s at height %d", event.Name, event.BlockHeight)
			w.refresher.Request()
		case err := <-sub.Err():
			return &ledger.SubscriptionFault{Err: err}
		case err := <-w.faults:
			return err
		}
	}
}

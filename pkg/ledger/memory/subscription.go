package memory

import (
	"context"
	"sync"

	"github.com/AmatanHead/points-game/pkg/game/types"
	"github.com/AmatanHead/points-game/pkg/ledger"
)

const subscriptionBufferSize = 16

type subscription struct {
	ledger   *Ledger
	contract types.Address
	event    string
	events   chan ledger.Event
	errs     chan error
	done     chan struct{}
	once     sync.Once
}

func (s *subscription) Events() <-chan ledger.Event {
	return s.events
}

func (s *subscription) Err() <-chan error {
	return s.errs
}

func (s *subscription) Cancel() {
	s.once.Do(func() {
		s.ledger.lock.Lock()
		s.ledger.removeLocked(s)
		s.ledger.lock.Unlock()
		close(s.events)
		close(s.done)
	})
}

func (l *Ledger) Subscribe(ctx context.Context, contract types.Address, event string) (ledger.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	address := types.ParseAddress(contract.String())
	s := &subscription{
		ledger:   l,
		contract: address,
		event:    event,
		events:   make(chan ledger.Event, subscriptionBufferSize),
		errs:     make(chan error, 1),
		done:     make(chan struct{}),
	}

	l.lock.Lock()
	if _, ok := l.subscriptions[address]; !ok {
		l.subscriptions[address] = make(map[*subscription]struct{})
	}
	l.subscriptions[address][s] = struct{}{}
	l.lock.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			s.Cancel()
		case <-s.done:
		}
	}()

	return s, nil
}

func (l *Ledger) removeLocked(s *subscription) {
	subs, ok := l.subscriptions[s.contract]
	if !ok {
		return
	}
	delete(subs, s)
	if len(subs) == 0 {
		delete(l.subscriptions, s.contract)
	}
}

// notifyLocked emits an Update event for every contract in contracts. Slow
// subscribers miss events rather than block the chain.
func (l *Ledger) notifyLocked(contracts []types.Address, height uint64) {
	for _, address := range contracts {
		for s := range l.subscriptions[address] {
			if s.event != ledger.EventUpdate {
				continue
			}
			select {
			case s.events <- ledger.Event{Contract: address, Name: ledger.EventUpdate, BlockHeight: height}:
			default:
			}
		}
	}
}

// Subscribers returns the number of live subscriptions on contract.
func (l *Ledger) Subscribers(contract types.Address) int {
	l.lock.Lock()
	defer l.lock.Unlock()
	return len(l.subscriptions[types.ParseAddress(contract.String())])
}

// FailSubscriptions breaks every live subscription with err, the way a
// dropped node connection would.
func (l *Ledger) FailSubscriptions(err error) {
	l.lock.Lock()
	defer l.lock.Unlock()

	for address, subs := range l.subscriptions {
		for s := range subs {
			select {
			case s.errs <- err:
			default:
			}
		}
		delete(l.subscriptions, address)
	}
}

package rpc

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/AmatanHead/points-game/pkg/game/types"
	"github.com/AmatanHead/points-game/pkg/ledger"
	"github.com/AmatanHead/points-game/pkg/log"
	"github.com/google/uuid"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const eventBufferSize = 16

type subscription struct {
	conn   *websocket.Conn
	cancel context.CancelFunc
	events chan ledger.Event
	errs   chan error
	once   sync.Once
}

func (s *subscription) Events() <-chan ledger.Event {
	return s.events
}

func (s *subscription) Err() <-chan error {
	return s.errs
}

func (s *subscription) Cancel() {
	s.once.Do(func() {
		s.cancel()
		s.conn.Close(websocket.StatusNormalClosure, "unsubscribed")
	})
}

func (c *Client) websocketURL() string {
	u := c.url
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u + "/ws"
}

// Subscribe opens a websocket to the node and waits for the subscription to
// be acknowledged before returning.
func (c *Client) Subscribe(ctx context.Context, contract types.Address, event string) (ledger.Subscription, error) {
	conn, _, err := websocket.Dial(ctx, c.websocketURL(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", c.websocketURL(), err)
	}

	params, err := marshalParams(&SubscribeArgs{Contract: contract, Event: event})
	if err != nil {
		conn.Close(websocket.StatusInternalError, "")
		return nil, err
	}
	req := &Request{
		JSONRPC: jsonrpcVersion,
		ID:      uuid.NewString(),
		Method:  MethodSubscribe,
		Params:  params,
	}
	if err := wsjson.Write(ctx, conn, req); err != nil {
		conn.Close(websocket.StatusInternalError, "")
		return nil, fmt.Errorf("failed to send subscription request: %w", err)
	}

	var ack Response
	if err := wsjson.Read(ctx, conn, &ack); err != nil {
		conn.Close(websocket.StatusInternalError, "")
		return nil, fmt.Errorf("failed to read subscription response: %w", err)
	}
	if ack.Error != nil {
		conn.Close(websocket.StatusNormalClosure, "")
		return nil, ack.Error
	}

	subCtx, cancel := context.WithCancel(context.Background())
	s := &subscription{
		conn:   conn,
		cancel: cancel,
		events: make(chan ledger.Event, eventBufferSize),
		errs:   make(chan error, 1),
	}
	go s.read(subCtx)
	go func() {
		select {
		case <-ctx.Done():
			s.Cancel()
		case <-subCtx.Done():
		}
	}()

	log.Debug("Subscribed to %s events of %s", event, contract)
	return s, nil
}

func (s *subscription) read(ctx context.Context) {
	for {
		var e ledger.Event
		if err := wsjson.Read(ctx, s.conn, &e); err != nil {
			if ctx.Err() == nil {
				s.errs <- err
			}
			return
		}
		select {
		case s.events <- e:
		case <-ctx.Done():
			return
		}
	}
}

package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/AmatanHead/points-game/pkg/game/types"
	"github.com/AmatanHead/points-game/pkg/ledger"
	"github.com/AmatanHead/points-game/pkg/log"
	"github.com/gorilla/mux"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// Backend is a ledger the server exposes.
type Backend interface {
	ledger.Client
	ledger.Node
}

type Server struct {
	backend Backend
	server  *http.Server
}

type NewServerOptions struct {
	Port    int
	Backend Backend
}

func NewServer(opts NewServerOptions) *Server {
	s := &Server{
		backend: opts.Backend,
	}
	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", opts.Port),
		Handler: s.Handler(),
	}
	return s
}

// Handler routes POST / to JSON-RPC and GET /ws to subscriptions.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/", s.handleRPC).Methods(http.MethodPost)
	r.HandleFunc("/ws", s.handleSubscribe).Methods(http.MethodGet)
	return r
}

// Start starts the Server
func (s *Server) Start() {
	log.Info("Ledger RPC server listening on %s", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			log.Info("Ledger RPC server closed")
			return
		}
		log.Error("Ledger RPC server error: %v", err)
	}
}

// Stop stops the Server
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeResponse(w, &Response{JSONRPC: jsonrpcVersion, Error: &Error{Code: CodeParseError, Message: err.Error()}})
		return
	}

	result, rpcErr := s.dispatch(r.Context(), &req)
	resp := &Response{JSONRPC: jsonrpcVersion, ID: req.ID, Error: rpcErr}
	if rpcErr == nil {
		b, err := json.Marshal(result)
		if err != nil {
			resp.Error = &Error{Code: CodeServerError, Message: err.Error()}
		} else {
			resp.Result = b
		}
	}
	writeResponse(w, resp)
}

func writeResponse(w http.ResponseWriter, resp *Response) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Error("Failed to encode RPC response: %v", err)
	}
}

func invalidParams(err error) *Error {
	return &Error{Code: CodeInvalidParams, Message: err.Error()}
}

func serverError(err error) *Error {
	if ledger.IsNotFound(err) {
		return &Error{Code: CodeUnknownTransaction, Message: MessageUnknownTransaction}
	}
	return &Error{Code: CodeServerError, Message: err.Error()}
}

// decodeParams unmarshals the positional params into dst, in order.
func decodeParams(params []json.RawMessage, dst ...interface{}) error {
	if len(params) != len(dst) {
		return fmt.Errorf("expected %d params, got %d", len(dst), len(params))
	}
	for i, p := range params {
		if err := json.Unmarshal(p, dst[i]); err != nil {
			return fmt.Errorf("param %d: %w", i, err)
		}
	}
	return nil
}

func (s *Server) dispatch(ctx context.Context, req *Request) (interface{}, *Error) {
	log.Trace("RPC %s", req.Method)

	switch req.Method {
	case MethodBlockNumber:
		height, err := s.backend.BlockHeight(ctx)
		if err != nil {
			return nil, serverError(err)
		}
		return height, nil
	case MethodCall:
		var args CallArgs
		var height uint64
		if err := decodeParams(req.Params, &args, &height); err != nil {
			return nil, invalidParams(err)
		}
		result, err := s.backend.Call(ctx, args.To, args.Field, height, args.Args...)
		if err != nil {
			return nil, serverError(err)
		}
		return result, nil
	case MethodSendTransaction:
		var args TransactionArgs
		if err := decodeParams(req.Params, &args); err != nil {
			return nil, invalidParams(err)
		}
		id, err := s.backend.Send(ctx, args.To, args.Op, args.From, args.Args...)
		if err != nil {
			return nil, serverError(err)
		}
		return id, nil
	case MethodDeploy:
		var args DeployArgs
		if err := decodeParams(req.Params, &args); err != nil {
			return nil, invalidParams(err)
		}
		id, err := s.backend.Deploy(ctx, args.Opponent, args.From)
		if err != nil {
			return nil, serverError(err)
		}
		return id, nil
	case MethodGetReceipt:
		var id ledger.TxID
		if err := decodeParams(req.Params, &id); err != nil {
			return nil, invalidParams(err)
		}
		receipt, err := s.backend.Receipt(ctx, id)
		if err != nil {
			return nil, serverError(err)
		}
		return receipt, nil
	case MethodListening:
		listening, err := s.backend.Listening(ctx)
		if err != nil {
			return nil, serverError(err)
		}
		return listening, nil
	case MethodCoinbase:
		coinbase, err := s.backend.Coinbase(ctx)
		if err != nil {
			return nil, serverError(err)
		}
		return coinbase, nil
	case MethodGetBalance:
		var account types.Address
		if err := decodeParams(req.Params, &account); err != nil {
			return nil, invalidParams(err)
		}
		balance, err := s.backend.Balance(ctx, account)
		if err != nil {
			return nil, serverError(err)
		}
		return balance.String(), nil
	default:
		return nil, &Error{Code: CodeMethodNotFound, Message: fmt.Sprintf("method %s not found", req.Method)}
	}
}

// handleSubscribe serves one subscription per websocket connection. The
// first frame is a ledger_subscribe request; after the acknowledgement every
// frame is a ledger.Event.
func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		log.Error("Failed to accept websocket connection: %v", err)
		return
	}
	defer conn.Close(websocket.StatusInternalError, "")

	ctx := r.Context()

	var req Request
	if err := wsjson.Read(ctx, conn, &req); err != nil {
		log.Debug("Failed to read subscription request: %v", err)
		return
	}
	var args SubscribeArgs
	if req.Method != MethodSubscribe {
		wsjson.Write(ctx, conn, &Response{JSONRPC: jsonrpcVersion, ID: req.ID, Error: &Error{Code: CodeMethodNotFound, Message: fmt.Sprintf("method %s not found", req.Method)}})
		conn.Close(websocket.StatusPolicyViolation, "expected "+MethodSubscribe)
		return
	}
	if err := decodeParams(req.Params, &args); err != nil {
		wsjson.Write(ctx, conn, &Response{JSONRPC: jsonrpcVersion, ID: req.ID, Error: invalidParams(err)})
		conn.Close(websocket.StatusPolicyViolation, "invalid params")
		return
	}

	// the peer never sends anything else; CloseRead ends ctx when it hangs up
	ctx = conn.CloseRead(ctx)

	sub, err := s.backend.Subscribe(ctx, args.Contract, args.Event)
	if err != nil {
		wsjson.Write(ctx, conn, &Response{JSONRPC: jsonrpcVersion, ID: req.ID, Error: serverError(err)})
		conn.Close(websocket.StatusInternalError, "subscription failed")
		return
	}
	defer sub.Cancel()

	if err := wsjson.Write(ctx, conn, &Response{JSONRPC: jsonrpcVersion, ID: req.ID, Result: json.RawMessage(`true`)}); err != nil {
		return
	}
	log.Debug("Websocket subscribed to %s events of %s", args.Event, args.Contract)

	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-sub.Events():
			if !ok {
				conn.Close(websocket.StatusGoingAway, "subscription closed")
				return
			}
			if err := wsjson.Write(ctx, conn, &e); err != nil {
				log.Debug("Failed to write event: %v", err)
				return
			}
		case err := <-sub.Err():
			conn.Close(websocket.StatusInternalError, err.Error())
			return
		}
	}
}

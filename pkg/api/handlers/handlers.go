package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/AmatanHead/points-game/pkg/game"
	"github.com/AmatanHead/points-game/pkg/game/types"
	"github.com/AmatanHead/points-game/pkg/ledger"
	"github.com/AmatanHead/points-game/pkg/log"
	"github.com/AmatanHead/points-game/pkg/repositories/models"
	"github.com/AmatanHead/points-game/pkg/state"
)

// Session is the part of game.Session the handlers drive.
type Session interface {
	View(ctx context.Context) (*types.DerivedView, error)
	RequestRefresh(ctx context.Context) error
	SubmitMove(ctx context.Context, x, y int) error
	SubmitDrawToggle(ctx context.Context) error
	SubmitResign(ctx context.Context) error
	CreateGame(ctx context.Context, opponent types.Address) (types.Address, error)
	JoinGame(ctx context.Context, contract types.Address) error
	Alerts() ([]*game.Alert, error)
	Transactions(ctx context.Context) ([]*models.Transaction, error)
}

var _ Session = (*game.Session)(nil)

// statusOf maps engine errors to HTTP status codes.
func statusOf(err error) int {
	switch {
	case errors.Is(err, state.ErrEmpty):
		return http.StatusNotFound
	case errors.Is(err, game.ErrSessionClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, game.ErrNoGame),
		errors.Is(err, game.ErrNotYourMove),
		errors.Is(err, game.ErrSubmissionInFlight):
		return http.StatusConflict
	case errors.Is(err, game.ErrContractRequired):
		return http.StatusBadRequest
	case ledger.IsTimeout(err):
		return http.StatusGatewayTimeout
	case ledger.IsReadError(err):
		return http.StatusBadGateway
	case ledger.IsWriteError(err):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		log.Error("request failed: %v", err)
	}
	http.Error(w, err.Error(), status)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("failed to encode response: %v", err)
	}
}

// writeView answers with the view applied last.
func writeView(w http.ResponseWriter, r *http.Request, session Session) {
	v, err := session.View(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func HandleGetView(session Session) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeView(w, r, session)
	}
}

func HandleRefresh(session Session) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := session.RequestRefresh(r.Context()); err != nil {
			writeError(w, err)
			return
		}
		writeView(w, r, session)
	}
}

func HandleMove(session Session) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		x, err := strconv.Atoi(r.FormValue("x"))
		if err != nil {
			http.Error(w, "Failed to parse x", http.StatusBadRequest)
			return
		}
		y, err := strconv.Atoi(r.FormValue("y"))
		if err != nil {
			http.Error(w, "Failed to parse y", http.StatusBadRequest)
			return
		}

		if err := session.SubmitMove(r.Context(), x, y); err != nil {
			writeError(w, err)
			return
		}
		writeView(w, r, session)
	}
}

func HandleDrawToggle(session Session) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := session.SubmitDrawToggle(r.Context()); err != nil {
			writeError(w, err)
			return
		}
		writeView(w, r, session)
	}
}

func HandleResign(session Session) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := session.SubmitResign(r.Context()); err != nil {
			writeError(w, err)
			return
		}
		writeView(w, r, session)
	}
}

func HandleCreateGame(session Session) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		opponent := types.ParseAddress(r.FormValue("opponent"))

		contract, err := session.CreateGame(r.Context(), opponent)
		if err != nil {
			writeError(w, err)
			return
		}
		log.Debug("created game %s", contract)
		w.Header().Set("Location", "/view")
		writeView(w, r, session)
	}
}

func HandleJoinGame(session Session) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		contract := types.ParseAddress(r.FormValue("contract"))

		if err := session.JoinGame(r.Context(), contract); err != nil {
			writeError(w, err)
			return
		}
		writeView(w, r, session)
	}
}

func HandleListAlerts(session Session) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		alerts, err := session.Alerts()
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, alerts)
	}
}

func HandleListTransactions(session Session) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		txs, err := session.Transactions(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, txs)
	}
}

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/AmatanHead/points-game/pkg/game"
	"github.com/AmatanHead/points-game/pkg/game/types"
	"github.com/AmatanHead/points-game/pkg/ledger"
	"github.com/AmatanHead/points-game/pkg/ledger/memory"
	"github.com/AmatanHead/points-game/pkg/repositories/models"
	"github.com/AmatanHead/points-game/pkg/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockSession struct {
	mock.Mock
}

func (m *mockSession) View(ctx context.Context) (*types.DerivedView, error) {
	args := m.Called()
	v, _ := args.Get(0).(*types.DerivedView)
	return v, args.Error(1)
}

func (m *mockSession) RequestRefresh(ctx context.Context) error {
	return m.Called().Error(0)
}

func (m *mockSession) SubmitMove(ctx context.Context, x, y int) error {
	return m.Called(x, y).Error(0)
}

func (m *mockSession) SubmitDrawToggle(ctx context.Context) error {
	return m.Called().Error(0)
}

func (m *mockSession) SubmitResign(ctx context.Context) error {
	return m.Called().Error(0)
}

func (m *mockSession) CreateGame(ctx context.Context, opponent types.Address) (types.Address, error) {
	args := m.Called(opponent)
	return args.Get(0).(types.Address), args.Error(1)
}

func (m *mockSession) JoinGame(ctx context.Context, contract types.Address) error {
	return m.Called(contract).Error(0)
}

func (m *mockSession) Alerts() ([]*game.Alert, error) {
	args := m.Called()
	alerts, _ := args.Get(0).([]*game.Alert)
	return alerts, args.Error(1)
}

func (m *mockSession) Transactions(ctx context.Context) ([]*models.Transaction, error) {
	args := m.Called()
	txs, _ := args.Get(0).([]*models.Transaction)
	return txs, args.Error(1)
}

func post(t *testing.T, h http.Handler, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestRouter_ErrorStatus(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"not your move", &ledger.WriteError{Op: ledger.OpMove, Err: game.ErrNotYourMove}, http.StatusConflict},
		{"in flight", &ledger.WriteError{Op: ledger.OpMove, Err: game.ErrSubmissionInFlight}, http.StatusConflict},
		{"no game", &ledger.WriteError{Op: ledger.OpMove, Err: game.ErrNoGame}, http.StatusConflict},
		{"reverted", &ledger.WriteError{Op: ledger.OpMove, Err: errors.New("reverted")}, http.StatusBadRequest},
		{"read failure", &ledger.ReadError{Field: ledger.FieldPlayer1, Err: errors.New("down")}, http.StatusBadGateway},
		{"timeout", &ledger.TimeoutError{TxID: "0x1", Attempts: 600, Interval: 500 * time.Millisecond}, http.StatusGatewayTimeout},
		{"closed", game.ErrSessionClosed, http.StatusServiceUnavailable},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session := &mockSession{}
			session.On("SubmitMove", 1, 2).Return(tt.err)

			rec := post(t, NewRouter(session, nil), "/move", url.Values{"x": {"1"}, "y": {"2"}})
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.err.Error())
			session.AssertExpectations(t)
		})
	}
}

func TestRouter_Move(t *testing.T) {
	session := &mockSession{}
	session.On("SubmitMove", 3, 4).Return(nil)
	session.On("View").Return(&types.DerivedView{Height: 9, TurnCaption: "Waiting"}, nil)
	r := NewRouter(session, nil)

	rec := post(t, r, "/move", url.Values{"x": {"3"}, "y": {"4"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	var v types.DerivedView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	assert.Equal(t, uint64(9), v.Height)

	rec = post(t, r, "/move", url.Values{"x": {"a"}, "y": {"4"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = get(t, r, "/move")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	session.AssertExpectations(t)
}

func TestRouter_ViewBeforeFirstSnapshot(t *testing.T) {
	session := &mockSession{}
	session.On("View").Return(nil, state.ErrEmpty)

	rec := get(t, NewRouter(session, nil), "/view")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_Alerts(t *testing.T) {
	session := &mockSession{}
	session.On("Alerts").Return([]*game.Alert{{Title: game.AlertTitleMove, Message: "nope", Time: 1}}, nil)

	rec := get(t, NewRouter(session, nil), "/alerts")
	require.Equal(t, http.StatusOK, rec.Code)
	var alerts []*game.Alert
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &alerts))
	require.Len(t, alerts, 1)
	assert.Equal(t, game.AlertTitleMove, alerts[0].Title)
}

func TestRouter_Game(t *testing.T) {
	const (
		red  types.Address = "0x00000000000000000000000000000000000000a1"
		blue types.Address = "0x00000000000000000000000000000000000000b0"
	)

	l := memory.NewLedger(memory.NewLedgerOptions{Width: 6, Rows: 6})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Start(ctx, 5*time.Millisecond)

	session := game.NewSession(game.NewSessionOptions{
		Client:          l,
		Me:              red,
		Width:           6,
		Rows:            6,
		ReceiptInterval: 5 * time.Millisecond,
	})
	defer session.Close()
	r := NewRouter(session, nil)

	rec := post(t, r, "/games", url.Values{"opponent": {red.String()}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = post(t, r, "/games", url.Values{"opponent": {blue.String()}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var v types.DerivedView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	assert.True(t, v.ActiveMove)

	rec = post(t, r, "/move", url.Values{"x": {"5"}, "y": {"5"}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	require.Len(t, v.RedCells, 1)
	assert.False(t, v.ActiveMove)

	rec = post(t, r, "/move", url.Values{"x": {"0"}, "y": {"0"}})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = post(t, r, "/refresh", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = get(t, r, "/transactions")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = get(t, r, "/alerts")
	require.Equal(t, http.StatusOK, rec.Code)
	var alerts []*game.Alert
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &alerts))
	require.Len(t, alerts, 2)
	assert.Equal(t, game.AlertTitleCreate, alerts[0].Title)
	assert.Equal(t, game.AlertTitleMove, alerts[1].Title)
}

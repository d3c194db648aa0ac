package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/AmatanHead/points-game/pkg/api/handlers"
	"github.com/AmatanHead/points-game/pkg/log"
	"github.com/gorilla/mux"
)

type APIServer struct {
	server *http.Server
	tls    *TLSConfig
}

type TLSConfig struct {
	CertFile string
	KeyFile  string
}

type NewAPIServerOptions struct {
	Port    int
	TLS     *TLSConfig
	Session handlers.Session
	// Renderers serves GET /ws, optional
	Renderers http.Handler
}

// NewRouter routes the game operations to session.
func NewRouter(session handlers.Session, renderers http.Handler) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/view", handlers.HandleGetView(session)).Methods(http.MethodGet)
	r.HandleFunc("/refresh", handlers.HandleRefresh(session)).Methods(http.MethodPost)
	r.HandleFunc("/move", handlers.HandleMove(session)).Methods(http.MethodPost)
	r.HandleFunc("/draw", handlers.HandleDrawToggle(session)).Methods(http.MethodPost)
	r.HandleFunc("/resign", handlers.HandleResign(session)).Methods(http.MethodPost)
	r.HandleFunc("/games", handlers.HandleCreateGame(session)).Methods(http.MethodPost)
	r.HandleFunc("/games/join", handlers.HandleJoinGame(session)).Methods(http.MethodPost)
	r.HandleFunc("/alerts", handlers.HandleListAlerts(session)).Methods(http.MethodGet)
	r.HandleFunc("/transactions", handlers.HandleListTransactions(session)).Methods(http.MethodGet)
	if renderers != nil {
		r.Handle("/ws", renderers).Methods(http.MethodGet)
	}
	r.Use(corsMiddleware)
	return r
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST")
		next.ServeHTTP(w, r)
	})
}

// NewAPIServer creates a new http.Server for handling API requests
func NewAPIServer(opts NewAPIServerOptions) *APIServer {
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", opts.Port),
		Handler: NewRouter(opts.Session, opts.Renderers),
	}
	return &APIServer{
		server: server,
		tls:    opts.TLS,
	}
}

// Start starts the APIServer
func (s *APIServer) Start() {
	var listenAndServe func() error
	if s.tls != nil {
		log.Info("API server listening on %s with TLS", s.server.Addr)
		listenAndServe = func() error {
			return s.server.ListenAndServeTLS(s.tls.CertFile, s.tls.KeyFile)
		}
	} else {
		log.Info("API server listening on %s", s.server.Addr)
		listenAndServe = s.server.ListenAndServe
	}
	if err := listenAndServe(); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			log.Info("API server closed")
			return
		}
		log.Error("API server error: %v", err)
	}
}

// Stop stops the APIServer
func (s *APIServer) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/cbodonnell/lockstep/pkg/api/handlers"
	"github.com/cbodonnell/lockstep/pkg/api/middleware"
	authproviders "github.com/cbodonnell/lockstep/pkg/auth/providers"
	"github.com/cbodonnell/lockstep/pkg/log"
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
	Port int
	TLS  *TLSConfig
	// AuthProvider, if set, guards every route with a bearer token.
	AuthProvider authproviders.AuthProvider
	Status       handlers.StatusProvider
}

// NewAPIServer creates a new http.Server serving the read-only status API
func NewAPIServer(opts NewAPIServerOptions) *APIServer {
	router := mux.NewRouter()
	router.Use(middleware.CORS, middleware.NewAuthMiddleware(opts.AuthProvider))
	router.HandleFunc("/session", handlers.HandleGetSession(opts.Status)).Methods(http.MethodGet, http.MethodOptions)
	router.HandleFunc("/peers", handlers.HandleListPeers(opts.Status)).Methods(http.MethodGet, http.MethodOptions)
	router.HandleFunc("/peers/{peerID:[0-9]+}", handlers.HandleGetPeer(opts.Status)).Methods(http.MethodGet, http.MethodOptions)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", opts.Port),
		Handler: router,
	}
	return &APIServer{
		server: server,
		tls:    opts.TLS,
	}
}

// Handler returns the router, for serving the API from another server.
func (s *APIServer) Handler() http.Handler {
	return s.server.Handler
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

// Package server exposes the account directory over a small JSON API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"circles/internal/core"
	"circles/internal/logging"
	"circles/internal/models"
	"circles/internal/storage"
	"circles/internal/wallet"

	"github.com/gorilla/mux"
)

const (
	Version = "1"

	defaultSearchLimit = 20
	maxSearchLimit     = 100
	maxBodySize        = 64 * 1024
)

type Server struct {
	httpServer *http.Server
	listener   net.Listener
	dir        *storage.Directory
	log        logging.Logger
	addr       string
}

func New(dir *storage.Directory, addr string, log logging.Logger) *Server {
	return &Server{
		dir:  dir,
		addr: addr,
		log:  log,
	}
}

func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.logRequests)

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	v1.HandleFunc("/users", s.handleSearch).Methods(http.MethodGet)
	v1.HandleFunc("/users", s.handleCreate).Methods(http.MethodPost)
	v1.HandleFunc("/users/{username}", s.handleGet).Methods(http.MethodGet)

	return r
}

func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         s.addr,
		Handler:      s.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error(context.Background(), "directory server stopped", "error", err)
		}
	}()

	s.log.Info(context.Background(), "directory server listening", "addr", listener.Addr().String())
	return nil
}

func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}

// Port is the bound TCP port, useful when listening on ":0".
func (s *Server) Port() int {
	if s.listener == nil {
		return 0
	}
	if addr, ok := s.listener.Addr().(*net.TCPAddr); ok {
		return addr.Port
	}
	return 0
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Debug(r.Context(), "request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, models.HealthResponse{Status: "ok", Version: Version})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")

	limit := defaultSearchLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, core.CodeInvalid, "limit must be a positive integer")
			return
		}
		limit = min(n, maxSearchLimit)
	}

	results, err := s.dir.Search(query, limit)
	if err != nil {
		s.log.Error(r.Context(), "search failed", "query", query, "error", err)
		writeError(w, http.StatusInternalServerError, "internal", "search failed")
		return
	}
	if results == nil {
		results = []models.Identity{}
	}
	writeJSON(w, http.StatusOK, results)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	username := mux.Vars(r)["username"]

	acc, err := s.dir.Get(username)
	if errors.Is(err, storage.ErrUserNotFound) {
		writeError(w, http.StatusNotFound, core.CodeNotFound, "no such user")
		return
	}
	if err != nil {
		s.log.Error(r.Context(), "lookup failed", "username", username, "error", err)
		writeError(w, http.StatusInternalServerError, "internal", "lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, acc.Identity())
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		writeError(w, http.StatusBadRequest, core.CodeInvalid, "failed to read body")
		return
	}

	var req models.AccountRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, core.CodeInvalid, "invalid JSON")
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, core.CodeInvalid, err.Error())
		return
	}
	if !wallet.IsAddress(req.SafeAddress) {
		writeError(w, http.StatusBadRequest, core.CodeInvalid, "safe address is not a valid address")
		return
	}

	acc := models.NewAccount(req)
	switch err := s.dir.Register(acc); {
	case errors.Is(err, storage.ErrUsernameTaken):
		writeError(w, http.StatusConflict, core.CodeUsernameTaken, err.Error())
		return
	case errors.Is(err, storage.ErrAddressTaken):
		writeError(w, http.StatusConflict, core.CodeAddressTaken, err.Error())
		return
	case err != nil:
		s.log.Error(r.Context(), "register failed", "username", req.Username, "error", err)
		writeError(w, http.StatusInternalServerError, "internal", "failed to create account")
		return
	}

	s.log.Info(r.Context(), "account created", "username", acc.Username, "address", acc.SafeAddress)
	writeJSON(w, http.StatusCreated, acc)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, core.APIError{Code: code, Message: message})
}

package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/golang/glog"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/yourusername/monster-battle/internal/catalog"
	"github.com/yourusername/monster-battle/internal/db"
	"github.com/yourusername/monster-battle/internal/game"
	"github.com/yourusername/monster-battle/internal/mcp"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP and MCP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := openApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		server := newServer(a)
		httpServer := &http.Server{
			Addr:              cfg.Addr(),
			Handler:           server.router,
			ReadHeaderTimeout: 10 * time.Second,
		}

		go server.sweepSessions(ctx, time.Minute)

		errc := make(chan error, 1)
		go func() {
			glog.Infof("Starting monster battle server on port %s", cfg.Port)
			glog.Infof("Database: %s", cfg.DBPath)
			errc <- httpServer.ListenAndServe()
		}()

		select {
		case err := <-errc:
			return errors.Wrap(err, "serve")
		case <-ctx.Done():
		}

		glog.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// CORS middleware to allow requests from the React frontend
func corsMiddleware(allowedOrigins []string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			// Check if origin is allowed
			allowed := false
			for _, o := range allowedOrigins {
				if o == "*" || o == origin {
					allowed = true
					break
				}
			}

			if allowed && origin != "" {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			}

			// Handle preflight requests
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

type Server struct {
	store     *db.DB
	mcpServer *mcp.Server
	router    *mux.Router
}

func newServer(a *app) *Server {
	s := &Server{
		store: a.store,
		mcpServer: mcp.NewServer(a.resolver, a.catalog,
			mcp.WithReports(a.store),
			mcp.WithDefaultParty(a.cfg.DefaultParty)),
		router: mux.NewRouter(),
	}
	s.setupRoutes(a.cfg.CORSOrigins)
	return s
}

func (s *Server) setupRoutes(allowedOrigins []string) {
	// Apply CORS middleware
	s.router.Use(corsMiddleware(allowedOrigins))

	// Health check
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET", "OPTIONS")

	// MCP endpoints
	s.router.HandleFunc("/mcp/tools", s.handleListTools).Methods("GET", "OPTIONS")
	s.router.HandleFunc("/mcp/call", s.handleCallTool).Methods("POST", "OPTIONS")

	// REST API endpoints
	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/battles", s.handleCreateBattle).Methods("POST", "OPTIONS")
	api.HandleFunc("/battles/{id}", s.handleGetBattle).Methods("GET", "OPTIONS")
	api.HandleFunc("/battles/{id}/turns", s.handleTurn).Methods("POST", "OPTIONS")
	api.HandleFunc("/skills", s.handleListSkills).Methods("GET", "OPTIONS")
	api.HandleFunc("/reports", s.handleListReports).Methods("GET", "OPTIONS")
}

// sweepSessions expires finished and idle battles until ctx is done
func (s *Server) sweepSessions(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.mcpServer.Sweep()
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		glog.Warningf("write response: %v", err)
	}
}

// writeError maps battle errors to HTTP statuses
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	message := "internal error"

	if rej, ok := game.IsRejection(err); ok {
		message = rej.Message
		switch {
		case errors.Is(err, game.ErrSessionTerminal):
			status = http.StatusConflict
		case errors.Is(err, game.ErrInternal):
			status = http.StatusInternalServerError
		default:
			status = http.StatusUnprocessableEntity
		}
	} else {
		switch {
		case errors.Is(err, mcp.ErrUnknownSession), errors.Is(err, db.ErrNotFound):
			status, message = http.StatusNotFound, err.Error()
		case errors.Is(err, catalog.ErrUnknownTemplate), errors.Is(err, errBadRequest):
			status, message = http.StatusUnprocessableEntity, err.Error()
		default:
			glog.Errorf("request failed: %+v", err)
		}
	}

	writeJSON(w, status, map[string]string{"error": message})
}

var errBadRequest = errors.New("bad request")

// Health check handler
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "healthy",
		"sessions": len(s.mcpServer.Sessions()),
	})
}

// MCP tool listing handler
func (s *Server) handleListTools(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"tools": s.mcpServer.ListTools(),
	})
}

// MCP tool call handler
func (s *Server) handleCallTool(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name      string                 `json:"name"`
		Arguments map[string]interface{} `json:"arguments"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := s.mcpServer.CallTool(r.Context(), req.Name, req.Arguments)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

type createBattleRequest struct {
	Party     []string              `json:"party"`
	Encounter catalog.EncounterKind `json:"encounter"`
}

type battleResponse struct {
	Battle *game.SessionSnapshot `json:"battle"`
	Lines  []string              `json:"lines"`
}

func (s *Server) handleCreateBattle(w http.ResponseWriter, r *http.Request) {
	var req createBattleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.Wrap(errBadRequest, err.Error()))
		return
	}
	if req.Encounter == "" {
		req.Encounter = catalog.EncounterWild
	}

	session, intro, err := s.mcpServer.Begin(r.Context(), req.Party, req.Encounter)
	if err != nil {
		if errors.Is(err, game.ErrEmptyParty) || errors.Is(err, mcp.ErrUnknownEncounter) {
			err = errors.Wrap(errBadRequest, err.Error())
		}
		writeError(w, err)
		return
	}

	snapshot, err := s.mcpServer.Status(session.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, battleResponse{Battle: snapshot, Lines: intro})
}

func (s *Server) handleGetBattle(w http.ResponseWriter, r *http.Request) {
	snapshot, err := s.mcpServer.Status(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, battleResponse{Battle: snapshot})
}

type turnResponse struct {
	Battle *game.SessionSnapshot `json:"battle"`
	Result *game.TurnResult      `json:"result"`
}

func (s *Server) handleTurn(w http.ResponseWriter, r *http.Request) {
	var action game.Action
	if err := json.NewDecoder(r.Body).Decode(&action); err != nil {
		writeError(w, errors.Wrap(errBadRequest, err.Error()))
		return
	}

	result, snapshot, err := s.mcpServer.Turn(r.Context(), mux.Vars(r)["id"], action)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, turnResponse{Battle: snapshot, Result: result})
}

func (s *Server) handleListSkills(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"skills": s.mcpServer.Skills(),
	})
}

func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, errors.Wrapf(errBadRequest, "invalid limit %q", raw))
			return
		}
		limit = n
	}

	reports, err := s.store.ListReports(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"reports": reports,
	})
}

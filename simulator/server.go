package simulator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"signaltap/logging"
)

// ServiceName is reported by the health endpoint.
const ServiceName = "SignalTap API"

// Server serves the scan/read API for a simulated PLC.
type Server struct {
	plc      *PLC
	router   chi.Router
	server   *http.Server
	listener net.Listener
	running  bool
	mu       sync.RWMutex
}

// NewServer creates a server for plc. A nil plc gets the default demo controller.
func NewServer(plc *PLC) *Server {
	if plc == nil {
		plc = NewPLC()
	}
	s := &Server{plc: plc}
	s.setupRoutes()
	return s
}

type readRequest struct {
	IP   string   `json:"ip"`
	Tags []string `json:"tags"`
	Slot int      `json:"slot"`
}

// validationDetail mirrors the list-shaped detail a request validator returns.
type validationDetail struct {
	Loc  []string `json:"loc"`
	Msg  string   `json:"msg"`
	Type string   `json:"type"`
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware)

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/scan-simple", s.handleScan)
		r.Post("/read-tags", s.handleRead)
	})

	s.router = r
}

// Handler returns the HTTP handler, for use with httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// PLC returns the simulated controller.
func (s *Server) PLC() *PLC {
	return s.plc
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Welcome to the " + ServiceName})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": ServiceName})
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ip := strings.TrimSpace(q.Get("ip"))
	if ip == "" {
		writeValidation(w, "query", "ip", "field required", "value_error.missing")
		return
	}

	slot := 0
	if raw := q.Get("slot"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeValidation(w, "query", "slot", "value is not a valid integer", "type_error.integer")
			return
		}
		slot = n
	}

	tags, err := s.plc.Scan(ip, slot)
	if err != nil {
		s.writePLCError(w, "Error scanning PLC tags", err)
		return
	}
	logging.DebugLog("simulator", "scan ip=%s slot=%d -> %d tags", ip, slot, len(tags))
	writeJSON(w, http.StatusOK, tags)
}

func (s *Server) handleRead(w http.ResponseWriter, r *http.Request) {
	var req readRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeValidation(w, "body", "", "invalid JSON body", "value_error.jsondecode")
		return
	}
	if strings.TrimSpace(req.IP) == "" {
		writeValidation(w, "body", "ip", "field required", "value_error.missing")
		return
	}

	values, err := s.plc.Read(req.IP, req.Tags)
	if err != nil {
		s.writePLCError(w, "Error reading tags", err)
		return
	}
	logging.DebugLog("simulator", "read ip=%s tags=%d", req.IP, len(req.Tags))
	writeJSON(w, http.StatusOK, values)
}

// writePLCError maps connection failures to 400 and everything else to 500.
func (s *Server) writePLCError(w http.ResponseWriter, prefix string, err error) {
	var connErr *ConnectError
	if errors.As(err, &connErr) {
		writeDetail(w, http.StatusBadRequest, "PLC connection failed: "+err.Error())
		return
	}
	writeDetail(w, http.StatusInternalServerError, fmt.Sprintf("%s: %v", prefix, err))
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"detail": message})
}

func writeValidation(w http.ResponseWriter, where, field, msg, typ string) {
	loc := []string{where}
	if field != "" {
		loc = append(loc, field)
	}
	writeJSON(w, http.StatusUnprocessableEntity, map[string][]validationDetail{
		"detail": {{Loc: loc, Msg: msg, Type: typ}},
	})
}

// debugLogWriter adapts logging.DebugLog to an io.Writer for use with log.Logger.
type debugLogWriter string

func (tag debugLogWriter) Write(p []byte) (n int, err error) {
	logging.DebugLog(string(tag), "%s", strings.TrimRight(string(p), "\n"))
	return len(p), nil
}

var _ io.Writer = debugLogWriter("")

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Start listens on addr and serves in the background. Use ":0" for an
// ephemeral port and Addr to find it.
func (s *Server) Start(addr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("simulator listen %s: %w", addr, err)
	}

	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          log.New(debugLogWriter("simulator"), "", 0),
	}
	s.server = srv
	s.listener = ln
	s.running = true

	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			logging.DebugError("simulator", "serve", err)
			s.mu.Lock()
			if s.server == srv {
				s.running = false
			}
			s.mu.Unlock()
		}
	}()

	logging.DebugLog("simulator", "listening on %s", ln.Addr())
	return nil
}

// Addr returns the listening address, or "" when stopped.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// BaseURL returns the API base URL for a backend client.
func (s *Server) BaseURL() string {
	addr := s.Addr()
	if addr == "" {
		return ""
	}
	return "http://" + addr + "/api"
}

// IsRunning returns whether the server is currently running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Stop halts the server gracefully.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running || s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := s.server.Shutdown(ctx)
	s.running = false
	s.server = nil
	s.listener = nil
	return err
}

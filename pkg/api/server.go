package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/vjranagit/chronoscope/internal/logger"
	"github.com/vjranagit/chronoscope/pkg/animator"
	"github.com/vjranagit/chronoscope/pkg/normalize"
	"github.com/vjranagit/chronoscope/pkg/registry"
	"github.com/vjranagit/chronoscope/pkg/types"
	"github.com/vjranagit/chronoscope/pkg/window"
)

// Server exposes the animator lifecycle and the visible windows of the
// registered attributes over HTTP
type Server struct {
	anim     *animator.Animator
	reg      *registry.Registry
	selector window.Selector
	addr     string
	timeout  time.Duration
	server   *http.Server
	upgrader websocket.Upgrader
}

// NewServer creates a new API server. width is the default window width in ms.
func NewServer(addr string, a *animator.Animator, reg *registry.Registry, width int64) *Server {
	return &Server{
		anim:     a,
		reg:      reg,
		selector: window.NewSelector(width),
		addr:     addr,
		timeout:  30 * time.Second,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// SetTimeout sets the read and write timeouts of plain HTTP requests
func (s *Server) SetTimeout(d time.Duration) {
	if d > 0 {
		s.timeout = d
	}
}

// Handler builds the router
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()

	v1 := r.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/clock", s.handleClock).Methods(http.MethodGet)
	v1.HandleFunc("/clock/start", s.handleStart).Methods(http.MethodPost)
	v1.HandleFunc("/clock/stop", s.handleStop).Methods(http.MethodPost)
	v1.HandleFunc("/clock/jump", s.handleJump).Methods(http.MethodPost)
	v1.HandleFunc("/clock/interval", s.handleInterval).Methods(http.MethodPut)
	v1.HandleFunc("/attributes", s.handleAttributes).Methods(http.MethodGet)
	v1.HandleFunc("/attributes/{id}/window", s.handleWindow).Methods(http.MethodGet)
	v1.HandleFunc("/stream", s.handleStream).Methods(http.MethodGet)

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	return r
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  s.timeout,
		WriteTimeout: s.timeout,
	}

	logger.Info("api server listening", "addr", s.addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

type changedResponse struct {
	Changed bool `json:"changed"`
}

type clockResponse struct {
	Running    bool  `json:"running"`
	Now        int64 `json:"now"`
	IntervalMs int64 `json:"interval_ms"`
}

type jumpRequest struct {
	Instant *int64 `json:"instant"`
}

type intervalRequest struct {
	IntervalMs int64 `json:"interval_ms"`
}

type attributeResponse struct {
	ID string `json:"id"`
	types.Attribute
	Samples int `json:"samples"`
}

type windowSample struct {
	Timestamp  int64    `json:"ts"`
	Value      float64  `json:"value"`
	Normalized *float64 `json:"normalized,omitempty"`
}

type windowResponse struct {
	ID        string          `json:"id"`
	Selection types.Selection `json:"selection"`
	Samples   []windowSample  `json:"samples"`
}

func (s *Server) handleClock(w http.ResponseWriter, r *http.Request) {
	st := s.anim.State()
	writeJSON(w, http.StatusOK, clockResponse{
		Running:    st.Running,
		Now:        st.Now,
		IntervalMs: st.Interval.Milliseconds(),
	})
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, changedResponse{Changed: s.anim.Start()})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, changedResponse{Changed: s.anim.Stop()})
}

func (s *Server) handleJump(w http.ResponseWriter, r *http.Request) {
	var req jumpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request: %v", err), http.StatusBadRequest)
		return
	}
	if req.Instant == nil {
		http.Error(w, "Missing instant", http.StatusBadRequest)
		return
	}

	s.anim.JumpTo(*req.Instant)
	s.handleClock(w, r)
}

func (s *Server) handleInterval(w http.ResponseWriter, r *http.Request) {
	var req intervalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request: %v", err), http.StatusBadRequest)
		return
	}

	if err := s.anim.SetTickInterval(time.Duration(req.IntervalMs) * time.Millisecond); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.handleClock(w, r)
}

func (s *Server) handleAttributes(w http.ResponseWriter, r *http.Request) {
	ids := s.reg.Find(selectors(r))

	out := make([]attributeResponse, 0, len(ids))
	for _, id := range ids {
		e, err := s.reg.Lookup(id)
		if err != nil {
			continue
		}
		out = append(out, attributeResponse{
			ID:        id.String(),
			Attribute: e.Attribute,
			Samples:   e.Index.Len(),
		})
	}

	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleWindow(w http.ResponseWriter, r *http.Request) {
	id, err := registry.ParseID(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	e, err := s.reg.Lookup(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	sel := s.selector
	if raw := r.URL.Query().Get("width"); raw != "" {
		width, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || width < 0 {
			http.Error(w, "Invalid width", http.StatusBadRequest)
			return
		}
		sel = window.NewSelector(width)
	}

	selection := sel.Selection(s.anim.Now())
	visible := window.Visible(e.Index, selection)
	norm := normalize.ForAttribute(e.Attribute)

	resp := windowResponse{
		ID:        id.String(),
		Selection: selection,
		Samples:   make([]windowSample, len(visible)),
	}
	for i, v := range visible {
		resp.Samples[i] = windowSample{Timestamp: v.Timestamp, Value: v.Value}
		if norm != nil {
			n := norm.Normalize(v.Value)
			resp.Samples[i].Normalized = &n
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

// selectors turns query parameters into label selectors
func selectors(r *http.Request) map[string]string {
	q := r.URL.Query()
	if len(q) == 0 {
		return nil
	}
	out := make(map[string]string, len(q))
	for k := range q {
		out[k] = q.Get(k)
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("failed to encode response", "error", err)
	}
}

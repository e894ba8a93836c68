package introspect

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/Kihui/minix/internal/klog"
)

// Server is the chi-routed HTTP/websocket front end onto a Trace and a
// kernel's snapshot accessors, grounded on the teacher's daemon.go request
// router (routes registered on an *http.ServeMux-compatible chi.Mux) and
// mini-loki's websocket log-tail handler for the live stream.
type Server struct {
	router *chi.Mux
	trace  *Trace
	log    *klog.Logger
	procs  func() []ProcView
	uptime func() int64

	upgrader websocket.Upgrader
}

// ProcView mirrors kernel.ProcSnapshot without importing the kernel
// package, so introspect stays a leaf dependency.
type ProcView struct {
	Nr          int    `json:"nr"`
	InUse       bool   `json:"in_use"`
	Priority    int    `json:"priority"`
	QuantumSize int    `json:"quantum_size"`
	Blocked     bool   `json:"blocked"`
	RTS         string `json:"rts,omitempty"`
}

// NewServer wires up the routes. procs and uptime are thin closures the
// caller supplies over its *kernel.Kernel (see cmd/kernelctl/serve.go).
func NewServer(trace *Trace, log *klog.Logger, procs func() []ProcView, uptime func() int64) *Server {
	if log == nil {
		log = klog.Nop()
	}

	s := &Server{
		trace:  trace,
		log:    log,
		procs:  procs,
		uptime: uptime,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Get("/procs", s.handleProcs)
	r.Get("/events", s.handleEvents)
	r.Get("/events/stream", s.handleEventStream)

	s.router = r

	return s
}

// ServeHTTP makes Server an http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{"status": "ok", "uptime_ticks": s.uptime()})
}

func (s *Server) handleProcs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.procs())
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.trace.Recent())
}

// handleEventStream upgrades to a websocket and pushes every new Event as
// it's recorded, until the client disconnects.
func (s *Server) handleEventStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warnf("Failed to upgrade event stream: %v", err)
		return
	}
	defer conn.Close()

	ch, unsubscribe := s.trace.Subscribe()
	defer unsubscribe()

	for ev := range ch {
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteJSON(ev); err != nil {
			return
		}
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

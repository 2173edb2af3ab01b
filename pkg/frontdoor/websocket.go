// Package frontdoor is the thin websocket adapter exposing the
// orchestrator's two operations to the outside world, porting
// websock.py's path-dispatch handler (json.loads one message, act, close
// with a status code). It deliberately does not reimplement
// registration/login/mail/HTML — those are out of scope per spec.md's
// Non-goals; every handler here only marshals a request into an
// orchestrator.Orchestrator call.
package frontdoor

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/arthurzam/securevote/pkg/orchestrator"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Close codes mirroring websock.py's ws.close(code=...) usage: 1000 normal,
// 1003 unsupported/invalid data, 1007 inconsistent data (bad field types),
// 1008 policy violation (rejected ballot).
const (
	closeNormal       = 1000
	closeUnsupported  = 1003
	closeInconsistent = 1007
	closePolicy       = 1008
)

// Server adapts an orchestrator.Orchestrator to websocket connections.
type Server struct {
	orch     *orchestrator.Orchestrator
	upgrader websocket.Upgrader
	logger   *log.Logger
}

// New returns a Server ready to be mounted on an http.ServeMux.
func New(orch *orchestrator.Orchestrator, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	return &Server{
		orch:     orch,
		upgrader: websocket.Upgrader{ReadBufferSize: 4096, WriteBufferSize: 4096},
		logger:   logger,
	}
}

// Mux returns an http.Handler with /elections/vote and /elections/stop
// registered.
func (s *Server) Mux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/elections/vote", s.handleVote)
	mux.HandleFunc("/elections/stop", s.handleStop)
	return mux
}

type voteRequest struct {
	ElectionID uuid.UUID `json:"election_id"`
	Email      string    `json:"email"`
	Ballot     []uint64  `json:"ballot"`
	DBStatus   uint64    `json:"db_status"`
}

type voteResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

func (s *Server) handleVote(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	_, raw, err := conn.ReadMessage()
	if err != nil {
		return
	}
	var req voteRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		s.logger.Printf("[frontdoor] badly formatted vote message: %v", err)
		_ = conn.WriteJSON(voteResponse{Error: "bad json"})
		_ = conn.Close()
		return
	}
	if req.Email == "" || len(req.Ballot) == 0 {
		_ = conn.WriteJSON(voteResponse{Error: "missing fields"})
		_ = closeWith(conn, closeInconsistent)
		return
	}

	err = s.orch.SubmitBallot(r.Context(), req.ElectionID, req.Email, req.Ballot, req.DBStatus)
	if err != nil {
		s.logger.Printf("[frontdoor] vote rejected for %s: %v", req.ElectionID, err)
		_ = conn.WriteJSON(voteResponse{Error: err.Error()})
		_ = closeWith(conn, closePolicy)
		return
	}
	_ = conn.WriteJSON(voteResponse{OK: true})
	_ = closeWith(conn, closeNormal)
}

type stopRequest struct {
	ElectionID uuid.UUID `json:"election_id"`
}

type stopResponse struct {
	Winners []string `json:"winners,omitempty"`
	Error   string   `json:"error,omitempty"`
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	_, raw, err := conn.ReadMessage()
	if err != nil {
		return
	}
	var req stopRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		s.logger.Printf("[frontdoor] badly formatted stop message: %v", err)
		_ = conn.WriteJSON(stopResponse{Error: "bad json"})
		_ = conn.Close()
		return
	}

	winners, err := s.orch.StopElection(r.Context(), req.ElectionID)
	if err != nil {
		s.logger.Printf("[frontdoor] stop failed for %s: %v", req.ElectionID, err)
		_ = conn.WriteJSON(stopResponse{Error: err.Error()})
		_ = closeWith(conn, closeUnsupported)
		return
	}
	_ = conn.WriteJSON(stopResponse{Winners: winners})
	_ = closeWith(conn, closeNormal)
}

func closeWith(conn *websocket.Conn, code int) error {
	msg := websocket.FormatCloseMessage(code, "")
	return conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
}

// Package server exposes the orchestration pipeline over HTTP.
//
// REST endpoints enqueue, cancel, and stop work; message history is read
// from the store; live session events stream over a per-project
// WebSocket. The stream carries only live frames. Clients reconstruct
// history from GET /messages and then attach to the stream.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/dmora/agentdeck"
	"github.com/dmora/agentdeck/broadcast"
	"github.com/dmora/agentdeck/orchestrator"
)

// MessageStore is the read surface for history reconstruction.
type MessageStore interface {
	ListProjectMessages(ctx context.Context, projectID string) ([]agentdeck.Message, error)
	ListToolUsages(ctx context.Context, sessionID string) ([]agentdeck.ToolUsage, error)
}

// Server wires the HTTP surface.
type Server struct {
	log  *zap.Logger
	orch *orchestrator.Orchestrator
	hub  *broadcast.Hub
	msgs MessageStore
}

// New creates a Server. A nil logger disables logging.
func New(log *zap.Logger, orch *orchestrator.Orchestrator, hub *broadcast.Hub, msgs MessageStore) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{log: log, orch: orch, hub: hub, msgs: msgs}
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Route("/api", func(r chi.Router) {
		r.Route("/projects/{projectID}", func(r chi.Router) {
			r.Post("/requests", s.handleEnqueue)
			r.Post("/stop", s.handleStop)
			r.Post("/input", s.handleInput)
			r.Get("/status", s.handleStatus)
			r.Get("/messages", s.handleMessages)
			r.Get("/stream", s.handleStream)
		})
		r.Delete("/requests/{requestID}", s.handleCancel)
		r.Get("/sessions/{sessionID}/tools", s.handleToolUsages)
	})
	return r
}

type enqueueBody struct {
	Prompt      string                 `json:"prompt"`
	Mode        agentdeck.RequestMode  `json:"mode,omitempty"`
	CLIType     agentdeck.CLIType      `json:"cliType"`
	Model       string                 `json:"model,omitempty"`
	CWD         string                 `json:"cwd,omitempty"`
	Attachments []agentdeck.Attachment `json:"attachments,omitempty"`
}

type enqueueResponse struct {
	RequestID string                  `json:"requestId"`
	SessionID string                  `json:"sessionId,omitempty"`
	Status    agentdeck.RequestStatus `json:"status"`
}

func (s *Server) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	var body enqueueBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.Prompt == "" {
		s.writeError(w, http.StatusBadRequest, "prompt is required")
		return
	}
	req, err := s.orch.Enqueue(r.Context(), orchestrator.EnqueueParams{
		ProjectID:   chi.URLParam(r, "projectID"),
		CWD:         body.CWD,
		Prompt:      body.Prompt,
		Mode:        body.Mode,
		CLIType:     body.CLIType,
		Model:       body.Model,
		Attachments: body.Attachments,
	})
	if err != nil {
		switch {
		case errors.Is(err, agentdeck.ErrQueueFull):
			s.writeError(w, http.StatusTooManyRequests, err.Error())
		case errors.Is(err, agentdeck.ErrUnavailable):
			s.writeError(w, http.StatusServiceUnavailable, err.Error())
		default:
			s.log.Error("enqueue failed", zap.Error(err))
			s.writeError(w, http.StatusInternalServerError, "enqueue failed")
		}
		return
	}
	s.writeJSON(w, http.StatusAccepted, enqueueResponse{
		RequestID: req.ID,
		SessionID: req.SessionID,
		Status:    req.Status,
	})
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	err := s.orch.CancelPending(r.Context(), chi.URLParam(r, "requestID"))
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, agentdeck.ErrRequestNotFound):
		s.writeError(w, http.StatusNotFound, "request not found")
	case errors.Is(err, agentdeck.ErrRequestDispatched):
		s.writeError(w, http.StatusConflict, "request already dispatched")
	default:
		s.log.Error("cancel failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "cancel failed")
	}
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	err := s.orch.Stop(r.Context(), chi.URLParam(r, "projectID"))
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, agentdeck.ErrSessionNotFound):
		s.writeError(w, http.StatusNotFound, "no active session")
	default:
		s.log.Error("stop failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "stop failed")
	}
}

type inputBody struct {
	Text string `json:"text"`
}

func (s *Server) handleInput(w http.ResponseWriter, r *http.Request) {
	var body inputBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Text == "" {
		s.writeError(w, http.StatusBadRequest, "text is required")
		return
	}
	err := s.orch.Send(r.Context(), chi.URLParam(r, "projectID"), body.Text)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, agentdeck.ErrSessionNotFound):
		s.writeError(w, http.StatusNotFound, "no active session")
	case errors.Is(err, agentdeck.ErrSendNotSupported):
		s.writeError(w, http.StatusConflict, "session does not accept input")
	default:
		s.log.Error("input failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "input failed")
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.orch.Status(chi.URLParam(r, "projectID")))
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	msgs, err := s.msgs.ListProjectMessages(r.Context(), chi.URLParam(r, "projectID"))
	if err != nil {
		s.log.Error("list messages failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "list messages failed")
		return
	}
	if msgs == nil {
		msgs = []agentdeck.Message{}
	}
	s.writeJSON(w, http.StatusOK, msgs)
}

func (s *Server) handleToolUsages(w http.ResponseWriter, r *http.Request) {
	usages, err := s.msgs.ListToolUsages(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		s.log.Error("list tool usages failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "list tool usages failed")
		return
	}
	if usages == nil {
		usages = []agentdeck.ToolUsage{}
	}
	s.writeJSON(w, http.StatusOK, usages)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn("write response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

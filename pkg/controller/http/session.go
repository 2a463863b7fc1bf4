package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/domain/types"
)

type createSessionRequest struct {
	UserID string `json:"user_id"`
}

type sessionResponse struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	CreatedAt    time.Time `json:"created_at"`
	LastActiveAt time.Time `json:"last_active_at"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(ctx, w, goerr.Wrap(err, "failed to decode session request"))
		return
	}
	owner := types.UserID(req.UserID)
	if err := owner.Validate(); err != nil {
		badRequest(ctx, w, err)
		return
	}

	sess, err := s.uc.CreateSession(ctx, owner)
	if err != nil {
		handleError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusCreated, sessionResponse{
		ID:           string(sess.ID),
		UserID:       string(sess.UserID),
		CreatedAt:    sess.CreatedAt,
		LastActiveAt: sess.LastActiveAt,
	})
}

type turnRequest struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	Text   string `json:"text"`
}

func (s *Server) handleCompleteTurn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID := types.SessionID(chi.URLParam(r, "sessionID"))

	var req turnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(ctx, w, goerr.Wrap(err, "failed to decode turn request"))
		return
	}
	owner := types.UserID(req.UserID)
	if err := owner.Validate(); err != nil {
		badRequest(ctx, w, err)
		return
	}
	role, err := types.ParseTurnRole(req.Role)
	if err != nil {
		badRequest(ctx, w, goerr.Wrap(err, "invalid turn role", goerr.V("role", req.Role)))
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		badRequest(ctx, w, goerr.New("turn text is required"))
		return
	}

	if err := s.uc.CompleteTurn(ctx, owner, sessionID, role, req.Text); err != nil {
		handleError(ctx, w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type contextResponse struct {
	SessionID string       `json:"session_id"`
	Turns     []model.Turn `json:"turns"`
}

func (s *Server) handleGetContext(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID := types.SessionID(chi.URLParam(r, "sessionID"))

	owner, ok := ownerFromQuery(w, r)
	if !ok {
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			badRequest(ctx, w, goerr.New("limit must be a non-negative integer",
				goerr.V("limit", raw)))
			return
		}
		limit = parsed
	}

	turns, err := s.uc.GetContext(ctx, owner, sessionID, limit)
	if err != nil {
		handleError(ctx, w, err)
		return
	}
	if turns == nil {
		turns = []model.Turn{}
	}

	respondJSON(ctx, w, http.StatusOK, contextResponse{
		SessionID: string(sessionID),
		Turns:     turns,
	})
}

func (s *Server) handleTouch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID := types.SessionID(chi.URLParam(r, "sessionID"))

	owner, ok := ownerFromQuery(w, r)
	if !ok {
		return
	}

	if err := s.uc.Touch(ctx, owner, sessionID); err != nil {
		handleError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleClearSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID := types.SessionID(chi.URLParam(r, "sessionID"))

	owner, ok := ownerFromQuery(w, r)
	if !ok {
		return
	}

	if err := s.uc.ClearSession(ctx, owner, sessionID); err != nil {
		handleError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ownerFromQuery reads and validates the user_id query parameter, writing
// the 400 itself when the parameter is unusable
func ownerFromQuery(w http.ResponseWriter, r *http.Request) (types.UserID, bool) {
	owner := types.UserID(r.URL.Query().Get("user_id"))
	if err := owner.Validate(); err != nil {
		badRequest(r.Context(), w, err)
		return "", false
	}
	return owner, true
}

package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/secmon-lab/mnemosyne/pkg/domain/types"
)

// handleForget deletes every memory tier of one user
func (s *Server) handleForget(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	owner := types.UserID(chi.URLParam(r, "userID"))
	if err := owner.Validate(); err != nil {
		badRequest(ctx, w, err)
		return
	}

	if err := s.uc.Forget(ctx, owner); err != nil {
		handleError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

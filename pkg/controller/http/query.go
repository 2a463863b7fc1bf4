package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/domain/types"
)

type queryRequest struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
	Query     string `json:"query"`
}

type resultResponse struct {
	DocID         string     `json:"doc_id"`
	CorpusID      string     `json:"corpus_id"`
	SemanticScore *float64   `json:"semantic_score,omitempty"`
	LexicalScore  *float64   `json:"lexical_score,omitempty"`
	FusedScore    float64    `json:"fused_score"`
	Snippet       string     `json:"snippet,omitempty"`
	Timestamp     *time.Time `json:"timestamp,omitempty"`
}

type queryResponse struct {
	Query     string           `json:"query"`
	Class     string           `json:"class"`
	Results   []resultResponse `json:"results"`
	Context   []model.Turn     `json:"context"`
	Summaries []string         `json:"summaries,omitempty"`
	Degraded  bool             `json:"degraded"`
	ElapsedMS int64            `json:"elapsed_ms"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(ctx, w, goerr.Wrap(err, "failed to decode query request"))
		return
	}

	owner := types.UserID(req.UserID)
	if err := owner.Validate(); err != nil {
		badRequest(ctx, w, err)
		return
	}
	sessionID := types.SessionID(req.SessionID)
	if err := sessionID.Validate(); err != nil {
		badRequest(ctx, w, err)
		return
	}

	bundle, err := s.uc.Ask(ctx, owner, sessionID, req.Query)
	if err != nil {
		handleError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, newQueryResponse(bundle))
}

func newQueryResponse(bundle *model.EvidenceBundle) queryResponse {
	results := make([]resultResponse, len(bundle.Results))
	for i, result := range bundle.Results {
		results[i] = resultResponse{
			DocID:         result.DocID,
			CorpusID:      string(result.CorpusID),
			SemanticScore: result.SemanticScore,
			LexicalScore:  result.LexicalScore,
			FusedScore:    result.FusedScore,
			Snippet:       result.Snippet,
		}
		if !result.Timestamp.IsZero() {
			ts := result.Timestamp
			results[i].Timestamp = &ts
		}
	}

	context := bundle.Context
	if context == nil {
		context = []model.Turn{}
	}

	return queryResponse{
		Query:     bundle.Query,
		Class:     string(bundle.Class),
		Results:   results,
		Context:   context,
		Summaries: bundle.Summaries,
		Degraded:  bundle.Degraded,
		ElapsedMS: bundle.RetrievedIn.Milliseconds(),
	}
}

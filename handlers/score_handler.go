package handlers

import (
	"net/http"

	"github.com/Dosada05/bracket-live/models"
	"github.com/Dosada05/bracket-live/services"
)

type ScoreHandler struct {
	scoreService services.ScoreService
}

func NewScoreHandler(scoreService services.ScoreService) *ScoreHandler {
	return &ScoreHandler{scoreService: scoreService}
}

type updateScoreRequest struct {
	MatchID      int                 `json:"match_id"`
	TournamentID int                 `json:"tournament_id"`
	Score        string              `json:"score"`
	Final        bool                `json:"final"`
	Outcome      models.MatchOutcome `json:"outcome"`
	WinnerTeamID *int                `json:"winner_team_id"`
}

// UpdateScore handles POST /update-score, the bracket-advancement entry
// point. Validation failures report 400/404 before anything is written;
// a success response reflects the committed state.
func (h *ScoreHandler) UpdateScore(w http.ResponseWriter, r *http.Request) {
	var input updateScoreRequest
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	result, err := h.scoreService.SubmitResult(r.Context(), input.MatchID, input.TournamentID, services.ScoreSubmission{
		Score:        input.Score,
		Final:        input.Final,
		Outcome:      input.Outcome,
		WinnerTeamID: input.WinnerTeamID,
	})
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, result, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ListMatchScores handles GET /matches/{matchID}/scores.
func (h *ScoreHandler) ListMatchScores(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	scores, err := h.scoreService.ListMatchScores(r.Context(), matchID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"scores": scores}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

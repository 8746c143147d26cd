package handlers

import (
	"net/http"

	"github.com/Dosada05/playoff-scoring/services"
)

type ScoreHandler struct {
	scoreService services.ScoreService
}

func NewScoreHandler(scoreService services.ScoreService) *ScoreHandler {
	return &ScoreHandler{scoreService: scoreService}
}

// PutPerformanceScore создаёт или обновляет результат заезда команды.
func (h *ScoreHandler) PutPerformanceScore(w http.ResponseWriter, r *http.Request) {
	tournamentID, teamNumber, runNumber, err := scoreKeyFromURL(r)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input services.PerformanceScoreInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	input.TournamentID = tournamentID
	input.TeamNumber = teamNumber
	input.RunNumber = runNumber

	score, err := h.scoreService.InsertOrUpdatePerformanceScore(r.Context(), input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"score": score}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *ScoreHandler) GetPerformanceScore(w http.ResponseWriter, r *http.Request) {
	tournamentID, teamNumber, runNumber, err := scoreKeyFromURL(r)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	score, err := h.scoreService.GetPerformanceScore(r.Context(), tournamentID, teamNumber, runNumber)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"score": score}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *ScoreHandler) DeletePerformanceScore(w http.ResponseWriter, r *http.Request) {
	tournamentID, teamNumber, runNumber, err := scoreKeyFromURL(r)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.scoreService.DeletePerformanceScore(r.Context(), tournamentID, teamNumber, runNumber); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

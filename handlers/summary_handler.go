package handlers

import (
	"net/http"

	"github.com/Dosada05/playoff-scoring/services"
)

type SummaryHandler struct {
	summarizer services.SummarizerService
}

func NewSummaryHandler(summarizer services.SummarizerService) *SummaryHandler {
	return &SummaryHandler{summarizer: summarizer}
}

// Summarize пересчитывает все результаты турнира и перезаписывает сводные таблицы.
func (h *SummaryHandler) Summarize(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	report, err := h.summarizer.RecomputeAll(r.Context(), tournamentID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	summary, err := h.summarizer.Summarize(r.Context(), tournamentID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"recompute": report, "summary": summary}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

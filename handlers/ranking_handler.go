package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/Dosada05/playoff-scoring/scoring"
	"github.com/Dosada05/playoff-scoring/services"
)

type RankingHandler struct {
	rankingService services.RankingService
}

func NewRankingHandler(rankingService services.RankingService) *RankingHandler {
	return &RankingHandler{rankingService: rankingService}
}

func (h *RankingHandler) GetTeamRankings(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	rankings, err := h.rankingService.GetTeamRankings(r.Context(), tournamentID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, rankings, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// GetPlayoffSeedingOrder принимает ?award_group=&tiebreak=team|random&seed=.
// Жеребьёвка без seed получает случайный seed, он возвращается в ответе.
func (h *RankingHandler) GetPlayoffSeedingOrder(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	q := r.URL.Query()
	tieBreak, err := scoring.ParseTieBreak(q.Get("tiebreak"))
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	opts := scoring.SeedingOptions{TieBreak: tieBreak}
	if s := q.Get("seed"); s != "" {
		seed, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			badRequestResponse(w, r, fmt.Errorf("invalid seed %q", s))
			return
		}
		opts.Seed = seed
	} else if tieBreak == scoring.TieBreakRandomDraw {
		opts.Seed = uint64(time.Now().UnixNano())
	}

	result, err := h.rankingService.GetPlayoffSeedingOrder(r.Context(), tournamentID, q.Get("award_group"), opts)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, result, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

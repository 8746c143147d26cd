package services

import (
	"errors"

	"github.com/Dosada05/playoff-scoring/brackets"
	"github.com/Dosada05/playoff-scoring/challenge"
	"github.com/Dosada05/playoff-scoring/repositories"
	"github.com/Dosada05/playoff-scoring/scoring"
)

// Общие ошибки, используемые в разных сервисах и маппинге HTTP.
var (
	// Ошибки валидации
	ErrValidationFailed = errors.New("validation failed")

	// Ресурс не найден
	ErrTournamentNotFound       = repositories.ErrTournamentNotFound
	ErrPerformanceScoreNotFound = repositories.ErrPerformanceScoreNotFound
	ErrBracketNotFound          = repositories.ErrBracketNotFound

	// Конфликты бизнес-правил
	ErrDownstreamScoresExist = errors.New("cannot update: would invalidate subsequent playoff rounds; delete the downstream scores first")
	ErrSerializationFailure  = repositories.ErrSerializationFailure

	// Структурные ошибки сетки: повреждённые данные или ошибка программы
	ErrTeamNotInBracket = repositories.ErrTeamNotInBracket
	ErrSlotNotFound     = repositories.ErrSlotNotFound
	ErrMalformedRound   = brackets.ErrMalformedRound
)

// IsUserError reports whether err is caused by the request and can be fixed by
// the operator.
func IsUserError(err error) bool {
	return errors.Is(err, ErrValidationFailed) ||
		errors.Is(err, scoring.ErrInvalidRawScore) ||
		errors.Is(err, ErrDownstreamScoresExist)
}

// IsInternal reports whether err means a corrupted bracket, a broken rubric
// or a programming defect.
func IsInternal(err error) bool {
	return errors.Is(err, ErrTeamNotInBracket) ||
		errors.Is(err, repositories.ErrTeamInTwoSlots) ||
		errors.Is(err, ErrSlotNotFound) ||
		errors.Is(err, ErrMalformedRound) ||
		errors.Is(err, challenge.ErrInvalidChallenge)
}

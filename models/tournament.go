package models

// Tournament parameter names stored in tournament_parameters.
const (
	ParamSeedingRounds     = "SeedingRounds"
	ParamStandardizedMean  = "StandardizedMean"
	ParamStandardizedSigma = "StandardizedSigma"
)

const (
	DefaultSeedingRounds     = 3
	DefaultStandardizedMean  = 100.0
	DefaultStandardizedSigma = 20.0
)

type Tournament struct {
	ID               int    `json:"id" db:"tournament_id"`
	Name             string `json:"name" db:"name"`
	NextTournamentID *int   `json:"next_tournament_id,omitempty" db:"next_tournament_id"`

	// Set whenever a seeding run changes; cleared by the summarizer.
	PerformanceSeedingModified bool `json:"performance_seeding_modified" db:"performance_seeding_modified"`
}

// TournamentParameters holds the numeric parameters the scoring core reads.
type TournamentParameters struct {
	SeedingRounds     int     `json:"seeding_rounds"`
	StandardizedMean  float64 `json:"standardized_mean"`
	StandardizedSigma float64 `json:"standardized_sigma"`
}

func DefaultTournamentParameters() TournamentParameters {
	return TournamentParameters{
		SeedingRounds:     DefaultSeedingRounds,
		StandardizedMean:  DefaultStandardizedMean,
		StandardizedSigma: DefaultStandardizedSigma,
	}
}

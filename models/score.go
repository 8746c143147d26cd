package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// RawScore holds the values entered for a score sheet, keyed by goal name.
// Enumerated goals keep their raw string value in Enums.
type RawScore struct {
	Values map[string]float64 `json:"values,omitempty"`
	Enums  map[string]string  `json:"enums,omitempty"`
}

func (r RawScore) Value() (driver.Value, error) {
	return json.Marshal(r)
}

func (r *RawScore) Scan(src interface{}) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*r = RawScore{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into RawScore", src)
	}
	if len(data) == 0 {
		*r = RawScore{}
		return nil
	}
	if err := json.Unmarshal(data, r); err != nil {
		return errors.Join(errors.New("invalid raw score json"), err)
	}
	return nil
}

// Clone returns a deep copy so callers can mutate maps freely.
func (r RawScore) Clone() RawScore {
	out := RawScore{}
	if r.Values != nil {
		out.Values = make(map[string]float64, len(r.Values))
		for k, v := range r.Values {
			out.Values[k] = v
		}
	}
	if r.Enums != nil {
		out.Enums = make(map[string]string, len(r.Enums))
		for k, v := range r.Enums {
			out.Enums[k] = v
		}
	}
	return out
}

// PerformanceScore is one row of the performance table.
type PerformanceScore struct {
	TournamentID  int       `json:"tournament_id" db:"tournament_id"`
	TeamNumber    int       `json:"team_number" db:"team_number"`
	RunNumber     int       `json:"run_number" db:"run_number"`
	Raw           RawScore  `json:"raw" db:"raw_values"`
	ComputedTotal *float64  `json:"computed_total,omitempty" db:"computed_total"` // nil until computed or for a no-show
	NoShow        bool      `json:"no_show" db:"no_show"`
	Bye           bool      `json:"bye" db:"bye"`
	Verified      bool      `json:"verified" db:"verified"`
	Timestamp     time.Time `json:"timestamp" db:"ts"`
}

// SubjectiveScore is one judge's score sheet for a team in one category.
type SubjectiveScore struct {
	TournamentID  int      `json:"tournament_id" db:"tournament_id"`
	Category      string   `json:"category" db:"category"`
	TeamNumber    int      `json:"team_number" db:"team_number"`
	JudgeID       string   `json:"judge_id" db:"judge_id"`
	Raw           RawScore `json:"raw" db:"raw_values"`
	ComputedTotal *float64 `json:"computed_total,omitempty" db:"computed_total"`
	NoShow        bool     `json:"no_show" db:"no_show"`
}

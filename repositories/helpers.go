package repositories

import (
	"database/sql"
	"fmt"

	"github.com/Dosada05/playoff-scoring/models"
)

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func checkAffectedRows(result sql.Result, notFoundError error) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if rowsAffected == 0 {
		return notFoundError // Возвращаем переданную ошибку "не найдено"
	}
	return nil
}

// teamToNull stores the empty-slot sentinel as SQL NULL.
func teamToNull(team int) sql.NullInt64 {
	if team == models.TeamNull {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(team), Valid: true}
}

func teamFromNull(n sql.NullInt64) int {
	if !n.Valid {
		return models.TeamNull
	}
	return int(n.Int64)
}

func floatPtr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Dosada05/playoff-scoring/models"
)

// SummaryArchive keeps a JSON copy of every tournament summary in object storage.
type SummaryArchive struct {
	uploader ObjectUploader
}

func NewSummaryArchive(uploader ObjectUploader) *SummaryArchive {
	return &SummaryArchive{uploader: uploader}
}

// SummaryKey is the object key of a summary computed at the given time.
func SummaryKey(tournamentID int, computedAt time.Time) string {
	return fmt.Sprintf("summaries/tournament-%d/%s.json", tournamentID, computedAt.UTC().Format("20060102T150405Z"))
}

func (a *SummaryArchive) Archive(ctx context.Context, summary *models.TournamentSummary) (*UploadResult, error) {
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode summary: %w", err)
	}
	return a.uploader.Upload(ctx, SummaryKey(summary.TournamentID, summary.ComputedAt), "application/json", bytes.NewReader(data))
}

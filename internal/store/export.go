package store

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/pavelanni/eqarena/internal/model"
)

// ExportResponses builds the export document for every archived response.
func (s *Store) ExportResponses(ctx context.Context) (model.ResponseExport, error) {
	responses, err := s.ListResponses(ctx)
	if err != nil {
		return model.ResponseExport{}, fmt.Errorf("list responses: %w", err)
	}
	info, err := s.GetSurveyInfo(ctx)
	if err != nil {
		return model.ResponseExport{}, fmt.Errorf("get survey info: %w", err)
	}
	return model.ResponseExport{
		ExportedAt:   time.Now().UTC(),
		Survey:       info,
		NumResponses: len(responses),
		Responses:    responses,
	}, nil
}

// WriteCSV writes responses as spreadsheet rows. The header is sized for the
// response with the most questions.
func WriteCSV(w io.Writer, responses []model.Response) error {
	n := 0
	for _, r := range responses {
		n = max(n, len(r.Questions))
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(model.SheetHeader(n)); err != nil {
		return err
	}
	for _, r := range responses {
		if err := cw.Write(r.SheetRow()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

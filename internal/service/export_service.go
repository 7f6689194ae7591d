package service

import (
	"bytes"
	"context"

	"github.com/spec-kit/letter-service/internal/export"
)

// Report is a generated spreadsheet ready for download.
type Report struct {
	Filename    string
	ContentType string
	Body        []byte
	Rows        int
}

// ExportService renders the scoped, filtered letter set as a spreadsheet.
type ExportService struct {
	query    *LetterQueryService
	exporter *export.Exporter
	clock    Clock
}

// NewExportService constructs the service.
func NewExportService(query *LetterQueryService, exporter *export.Exporter, clock Clock) *ExportService {
	return &ExportService{query: query, exporter: exporter, clock: orNow(clock)}
}

// Export applies the same scope and search as the dashboard, without paging.
func (s *ExportService) Export(ctx context.Context, q LetterQuery) (*Report, error) {
	letters, applied, err := s.query.All(ctx, q)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := s.exporter.Write(&buf, letters); err != nil {
		return nil, err
	}
	return &Report{
		Filename:    export.Filename(applied.Query, s.clock()),
		ContentType: export.ContentType,
		Body:        buf.Bytes(),
		Rows:        len(letters),
	}, nil
}

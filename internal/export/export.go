// Package export renders letter listings as xlsx reports.
package export

import (
	"fmt"
	"io"
	"strings"
	"time"
	"unicode"

	"github.com/xuri/excelize/v2"

	"github.com/spec-kit/letter-service/internal/domain"
)

// ContentType is the MIME type of generated reports.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Labels maps stored codes to display names.
type Labels struct {
	Sectors  map[domain.Sector]string
	Officers map[domain.OfficerRole]string
}

// DefaultLabels returns the built-in sector and officer display names.
func DefaultLabels() Labels {
	return Labels{Sectors: domain.SectorLabels(), Officers: domain.OfficerRoleLabels()}
}

func (l Labels) sector(s domain.Sector) string {
	if v, ok := l.Sectors[s]; ok {
		return v
	}
	return string(s)
}

func (l Labels) officer(r domain.OfficerRole) string {
	if v, ok := l.Officers[r]; ok {
		return v
	}
	return string(r)
}

var headers = []string{
	"Serial Number",
	"Date Received",
	"Sender Name",
	"Sender Address",
	"Letter Type",
	"Target Sector",
	"Administered By",
	"Accepting Officer",
	"Status",
	"Replied At",
	"Attachments",
}

var columnWidths = []float64{18, 14, 28, 40, 28, 16, 26, 18, 12, 20, 12}

// Exporter writes letters to a single-sheet workbook.
type Exporter struct {
	sheet  string
	labels Labels
}

// NewExporter builds an exporter; an empty sheet name defaults to "Letters".
func NewExporter(sheet string, labels Labels) *Exporter {
	if strings.TrimSpace(sheet) == "" {
		sheet = "Letters"
	}
	return &Exporter{sheet: sheet, labels: labels}
}

// Write renders letters in the given order and streams the workbook to w.
func (e *Exporter) Write(w io.Writer, letters []domain.Letter) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), e.sheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"1F4E78"}},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}

	row := make([]interface{}, len(headers))
	for i, h := range headers {
		row[i] = h
	}
	if err := f.SetSheetRow(e.sheet, "A1", &row); err != nil {
		return err
	}
	lastCol, _ := excelize.ColumnNumberToName(len(headers))
	if err := f.SetCellStyle(e.sheet, "A1", lastCol+"1", headerStyle); err != nil {
		return err
	}
	for i, width := range columnWidths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(e.sheet, col, col, width); err != nil {
			return err
		}
	}

	for i := range letters {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		values := e.rowValues(&letters[i])
		if err := f.SetSheetRow(e.sheet, cell, &values); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if err := f.SetPanes(e.sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return err
	}
	if len(letters) > 0 {
		if err := f.AutoFilter(e.sheet, fmt.Sprintf("A1:%s%d", lastCol, len(letters)+1), nil); err != nil {
			return err
		}
	}

	_, err = f.WriteTo(w)
	return err
}

func (e *Exporter) rowValues(l *domain.Letter) []interface{} {
	status := "Pending"
	repliedAt := ""
	if at, ok := l.Reply.At(); ok {
		status = "Replied"
		repliedAt = at.Format("2006-01-02 15:04")
	}
	return []interface{}{
		l.SerialNumber,
		l.DateReceived.Format("2006-01-02"),
		l.SenderName,
		l.SenderAddress,
		l.LetterType,
		e.labels.sector(l.TargetSector),
		e.labels.officer(l.AdministeredBy),
		l.AcceptingOfficerID,
		status,
		repliedAt,
		len(l.Attachments),
	}
}

// Filename derives the download name from the active search query, falling back to a
// yearly report name when nothing usable remains after sanitizing.
func Filename(query string, now time.Time) string {
	if clean := SanitizeQuery(query); clean != "" {
		return fmt.Sprintf("Search_%s.xlsx", clean)
	}
	return fmt.Sprintf("Letters_Report_%d.xlsx", now.Year())
}

// SanitizeQuery keeps letters, digits, spaces, hyphens and underscores.
func SanitizeQuery(query string) string {
	var b strings.Builder
	for _, r := range query {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' || r == '-' || r == '_' {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

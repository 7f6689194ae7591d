package repository

import (
	"fmt"
	"strings"

	"github.com/spec-kit/letter-service/internal/domain"
)

// SearchType selects how a letter search query is matched.
type SearchType string

const (
	SearchAll    SearchType = "all"
	SearchSerial SearchType = "serial"
	SearchDate   SearchType = "date"
)

// ParseSearchType maps a raw selector onto a known mode, defaulting to SearchAll.
func ParseSearchType(raw string) SearchType {
	switch SearchType(strings.ToLower(strings.TrimSpace(raw))) {
	case SearchSerial:
		return SearchSerial
	case SearchDate:
		return SearchDate
	default:
		return SearchAll
	}
}

// LetterFilter narrows letter listings. A nil Sector with AllSectors false matches nothing.
type LetterFilter struct {
	AllSectors bool
	Sector     *domain.Sector
	Search     string
	SearchType SearchType
	Limit      int
	Offset     int
}

const letterOrder = "ORDER BY date_received DESC, serial_number ASC"

// buildLetterWhere renders the WHERE clause and positional arguments for filter.
func buildLetterWhere(filter LetterFilter) (string, []any) {
	clauses := []string{}
	args := []any{}

	switch {
	case filter.AllSectors:
	case filter.Sector != nil:
		args = append(args, string(*filter.Sector))
		clauses = append(clauses, fmt.Sprintf("target_sector=$%d", len(args)))
	default:
		clauses = append(clauses, "FALSE")
	}

	if term := strings.TrimSpace(filter.Search); term != "" {
		switch filter.SearchType {
		case SearchSerial:
			args = append(args, strings.ToLower(term))
			clauses = append(clauses, fmt.Sprintf("LOWER(serial_number)=$%d", len(args)))
		case SearchDate:
			args = append(args, "%"+escapeLike(term)+"%")
			clauses = append(clauses, fmt.Sprintf(`to_char(date_received, 'YYYY-MM-DD') LIKE $%d ESCAPE '\'`, len(args)))
		default:
			args = append(args, "%"+escapeLike(strings.ToLower(term))+"%")
			p := fmt.Sprintf("$%d", len(args))
			clauses = append(clauses, fmt.Sprintf(
				`(LOWER(serial_number) LIKE %[1]s ESCAPE '\' OR LOWER(sender_name) LIKE %[1]s ESCAPE '\' OR LOWER(letter_type) LIKE %[1]s ESCAPE '\')`, p))
		}
	}

	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func buildLetterPaging(filter LetterFilter) string {
	if filter.Limit <= 0 {
		return ""
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	return fmt.Sprintf(" LIMIT %d OFFSET %d", filter.Limit, offset)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

package service

import (
	"context"
	"strings"

	"github.com/spec-kit/letter-service/internal/domain"
	"github.com/spec-kit/letter-service/internal/policy"
	"github.com/spec-kit/letter-service/internal/repository"
)

// PageSize is the fixed number of letters per dashboard page.
const PageSize = 20

// LetterQuery describes one dashboard or admin listing request.
type LetterQuery struct {
	Actor      domain.Actor
	View       policy.View
	Sector     string
	Query      string
	SearchType string
	Page       int
}

// AppliedFilters echoes the filters that were actually used.
type AppliedFilters struct {
	Sector     string
	Query      string
	SearchType repository.SearchType
}

// LetterPage is one page of a scoped listing plus counts over the whole filtered set.
type LetterPage struct {
	Letters    []domain.Letter
	Page       int
	PageSize   int
	TotalPages int
	Counts     domain.ReplyCounts
	Filters    AppliedFilters
}

// LetterQueryService builds scoped, searchable letter views.
type LetterQueryService struct {
	letters repository.LetterRepository
}

// NewLetterQueryService constructs the service.
func NewLetterQueryService(letters repository.LetterRepository) *LetterQueryService {
	return &LetterQueryService{letters: letters}
}

// Dashboard returns the requested page, clamped into [1, TotalPages].
func (s *LetterQueryService) Dashboard(ctx context.Context, q LetterQuery) (*LetterPage, error) {
	filter, applied, err := s.resolve(q)
	if err != nil {
		return nil, err
	}

	page := &LetterPage{Letters: []domain.Letter{}, Page: 1, PageSize: PageSize, TotalPages: 1, Filters: applied}
	if filter == nil {
		return page, nil
	}

	counts, err := s.letters.Count(ctx, *filter)
	if err != nil {
		return nil, err
	}
	page.Counts = counts
	page.TotalPages = totalPages(counts.Total)
	page.Page = clampPage(q.Page, page.TotalPages)
	if counts.Total == 0 {
		return page, nil
	}

	filter.Limit = PageSize
	filter.Offset = (page.Page - 1) * PageSize
	letters, err := s.letters.List(ctx, *filter)
	if err != nil {
		return nil, err
	}
	page.Letters = letters
	return page, nil
}

// All returns every letter matching q without paging, in dashboard order.
func (s *LetterQueryService) All(ctx context.Context, q LetterQuery) ([]domain.Letter, AppliedFilters, error) {
	filter, applied, err := s.resolve(q)
	if err != nil {
		return nil, AppliedFilters{}, err
	}
	if filter == nil {
		return []domain.Letter{}, applied, nil
	}
	letters, err := s.letters.List(ctx, *filter)
	if err != nil {
		return nil, AppliedFilters{}, err
	}
	return letters, applied, nil
}

// Get loads one letter and checks read access. Missing letters are NOT_FOUND, letters outside
// the actor's scope are ACCESS_DENIED.
func (s *LetterQueryService) Get(ctx context.Context, actor domain.Actor, serial string) (*domain.Letter, error) {
	letter, err := s.letters.GetBySerial(ctx, strings.TrimSpace(serial))
	if err != nil {
		return nil, mapRepoError(err, "letter")
	}
	if err := policy.AuthorizeRead(actor, letter); err != nil {
		return nil, err
	}
	return letter, nil
}

// resolve returns a nil filter when the scope is empty.
func (s *LetterQueryService) resolve(q LetterQuery) (*repository.LetterFilter, AppliedFilters, error) {
	view := q.View
	if view == "" {
		view = policy.ViewDashboard
	}
	scope, err := policy.ResolveScope(q.Actor, q.Sector, view)
	if err != nil {
		return nil, AppliedFilters{}, err
	}

	applied := AppliedFilters{
		Sector:     scope.Label(),
		Query:      strings.TrimSpace(q.Query),
		SearchType: repository.ParseSearchType(q.SearchType),
	}
	if scope.Empty() {
		return nil, applied, nil
	}
	return &repository.LetterFilter{
		AllSectors: scope.All,
		Sector:     scope.Sector,
		Search:     applied.Query,
		SearchType: applied.SearchType,
	}, applied, nil
}

func totalPages(total int) int {
	if total <= 0 {
		return 1
	}
	return (total + PageSize - 1) / PageSize
}

func clampPage(page, last int) int {
	if page < 1 {
		return 1
	}
	if page > last {
		return last
	}
	return page
}

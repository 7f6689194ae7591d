package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/letter-service/internal/domain"
	"github.com/spec-kit/letter-service/internal/policy"
	"github.com/spec-kit/letter-service/internal/repository"
	apperrors "github.com/spec-kit/letter-service/pkg/util/errorutil"
)

func seedLetters(sector domain.Sector, n, replied int, prefix string) []*domain.Letter {
	out := make([]*domain.Letter, 0, n)
	for i := 0; i < n; i++ {
		l := letter(fmt.Sprintf("%s/%06d", prefix, i), sector, day(2024, 1, 1).AddDate(0, 0, i))
		if i < replied {
			l.Reply = domain.RepliedAt(day(2024, 6, 1))
		}
		out = append(out, l)
	}
	return out
}

func TestDashboard_CountsOverFilteredSet(t *testing.T) {
	letters := append(seedLetters(domain.SectorHealth, 10, 4, "2024/A"), seedLetters(domain.SectorIncome, 7, 7, "2024/B")...)
	svc := NewLetterQueryService(newFakeLetterRepo(letters...))

	page, err := svc.Dashboard(context.Background(), LetterQuery{Actor: sectorActor(domain.SectorHealth)})
	require.NoError(t, err)
	assert.Equal(t, domain.ReplyCounts{Total: 10, Resolved: 4, Pending: 6}, page.Counts)
	assert.Len(t, page.Letters, 10)
	assert.Equal(t, "HEALTH", page.Filters.Sector)
}

func TestDashboard_SectorActorCannotWidenScope(t *testing.T) {
	letters := append(seedLetters(domain.SectorHealth, 3, 0, "2024/A"), seedLetters(domain.SectorIncome, 5, 0, "2024/B")...)
	svc := NewLetterQueryService(newFakeLetterRepo(letters...))

	for _, override := range []string{"ALL", "INCOME", "bogus", ""} {
		page, err := svc.Dashboard(context.Background(), LetterQuery{Actor: sectorActor(domain.SectorHealth), Sector: override})
		require.NoError(t, err, override)
		assert.Equal(t, 3, page.Counts.Total, override)
		for _, l := range page.Letters {
			assert.Equal(t, domain.SectorHealth, l.TargetSector)
		}
	}
}

func TestDashboard_SuperuserSelectsSector(t *testing.T) {
	letters := append(seedLetters(domain.SectorHealth, 3, 1, "2024/A"), seedLetters(domain.SectorIncome, 5, 0, "2024/B")...)
	svc := NewLetterQueryService(newFakeLetterRepo(letters...))

	page, err := svc.Dashboard(context.Background(), LetterQuery{Actor: superActor(), Sector: "all"})
	require.NoError(t, err)
	assert.Equal(t, 8, page.Counts.Total)
	assert.Equal(t, domain.SectorAll, page.Filters.Sector)

	page, err = svc.Dashboard(context.Background(), LetterQuery{Actor: superActor(), Sector: "income"})
	require.NoError(t, err)
	assert.Equal(t, 5, page.Counts.Total)

	_, err = svc.Dashboard(context.Background(), LetterQuery{Actor: superActor(), Sector: "PARKS"})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
}

func TestDashboard_NoneActorSeesNothing(t *testing.T) {
	svc := NewLetterQueryService(newFakeLetterRepo(seedLetters(domain.SectorHealth, 3, 1, "2024/A")...))

	page, err := svc.Dashboard(context.Background(), LetterQuery{Actor: domain.Actor{UserID: "x"}, Sector: "ALL"})
	require.NoError(t, err)
	assert.Empty(t, page.Letters)
	assert.Equal(t, domain.ReplyCounts{}, page.Counts)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 1, page.TotalPages)
}

func TestDashboard_AdminViewRequiresSuperuser(t *testing.T) {
	svc := NewLetterQueryService(newFakeLetterRepo())
	_, err := svc.Dashboard(context.Background(), LetterQuery{Actor: sectorActor(domain.SectorHealth), View: policy.ViewAdmin})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeAccessDenied))
}

func TestDashboard_PageClamping(t *testing.T) {
	svc := NewLetterQueryService(newFakeLetterRepo(seedLetters(domain.SectorAccounts, 45, 0, "2024/C")...))
	actor := sectorActor(domain.SectorAccounts)

	page, err := svc.Dashboard(context.Background(), LetterQuery{Actor: actor, Page: 99})
	require.NoError(t, err)
	assert.Equal(t, 3, page.TotalPages)
	assert.Equal(t, 3, page.Page)
	assert.Len(t, page.Letters, 5)

	page, err = svc.Dashboard(context.Background(), LetterQuery{Actor: actor, Page: -2})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Len(t, page.Letters, PageSize)
	assert.Equal(t, 45, page.Counts.Total)
}

func TestDashboard_OrderIsNewestFirstThenSerial(t *testing.T) {
	same := day(2024, 2, 2)
	svc := NewLetterQueryService(newFakeLetterRepo(
		letter("B", domain.SectorHealth, same),
		letter("A", domain.SectorHealth, same),
		letter("C", domain.SectorHealth, day(2024, 3, 3)),
	))
	page, err := svc.Dashboard(context.Background(), LetterQuery{Actor: sectorActor(domain.SectorHealth)})
	require.NoError(t, err)
	serials := []string{}
	for _, l := range page.Letters {
		serials = append(serials, l.SerialNumber)
	}
	assert.Equal(t, []string{"C", "A", "B"}, serials)
}

func TestDashboard_SerialSearchIsScoped(t *testing.T) {
	repo := newFakeLetterRepo(
		letter("2024/A/000123", domain.SectorDevelopment, day(2024, 1, 1)),
		letter("2024/A/000124", domain.SectorHealth, day(2024, 1, 1)),
	)
	svc := NewLetterQueryService(repo)
	dev := sectorActor(domain.SectorDevelopment)

	page, err := svc.Dashboard(context.Background(), LetterQuery{Actor: dev, Query: "2024/a/000123", SearchType: "serial"})
	require.NoError(t, err)
	require.Len(t, page.Letters, 1)
	assert.Equal(t, "2024/A/000123", page.Letters[0].SerialNumber)
	assert.Equal(t, repository.SearchSerial, page.Filters.SearchType)

	page, err = svc.Dashboard(context.Background(), LetterQuery{Actor: dev, Query: "2024/A/000124", SearchType: "serial"})
	require.NoError(t, err)
	assert.Empty(t, page.Letters)
	assert.Zero(t, page.Counts.Total)
}

func TestDashboard_UnknownSearchTypeFallsBackToAll(t *testing.T) {
	l := letter("2024/D/000001", domain.SectorIncome, day(2024, 1, 1))
	l.SenderName = "Nimal Silva"
	svc := NewLetterQueryService(newFakeLetterRepo(l))

	page, err := svc.Dashboard(context.Background(), LetterQuery{Actor: superActor(), Query: "SILVA", SearchType: "weird"})
	require.NoError(t, err)
	assert.Len(t, page.Letters, 1)
	assert.Equal(t, repository.SearchAll, page.Filters.SearchType)
}

func TestGet_DistinguishesDeniedFromMissing(t *testing.T) {
	svc := NewLetterQueryService(newFakeLetterRepo(letter("S1", domain.SectorIncome, time.Now())))

	_, err := svc.Get(context.Background(), sectorActor(domain.SectorHealth), "S1")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeAccessDenied))

	_, err = svc.Get(context.Background(), sectorActor(domain.SectorHealth), "S2")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))

	got, err := svc.Get(context.Background(), superActor(), "S1")
	require.NoError(t, err)
	assert.Equal(t, "S1", got.SerialNumber)
}
